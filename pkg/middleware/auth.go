package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"petfeed/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Set("user_name", claims.Name)
		c.Set("token_id", claims.ID)
		if claims.ExpiresAt != nil {
			c.Set("token_expires_at", claims.ExpiresAt.Time)
		}
		c.Next()
	}
}

// RevokedTokenKey is the Redis key marking a signed-out token.
func RevokedTokenKey(tokenID string) string {
	return fmt.Sprintf("token_revoked:%s", tokenID)
}

// RevocationMiddleware rejects tokens that were signed out. It must run after
// AuthMiddleware. A nil client disables the check.
func RevocationMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenID := c.GetString("token_id")
		if redisClient == nil || tokenID == "" {
			c.Next()
			return
		}

		n, err := redisClient.Exists(c.Request.Context(), RevokedTokenKey(tokenID)).Result()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Token check failed"})
			c.Abort()
			return
		}
		if n > 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token revoked"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// TokenRevoker writes sign-out markers read by RevocationMiddleware.
type TokenRevoker struct {
	Client *redis.Client
}

func (r TokenRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if r.Client == nil {
		return errors.New("token revocation store unavailable")
	}
	if ttl <= 0 {
		return nil
	}
	return r.Client.Set(ctx, RevokedTokenKey(tokenID), "1", ttl).Err()
}
