package main

import (
	"petfeed/pkg/config"
	app "petfeed/services/notification/internal/app"

	_ "petfeed/services/notification/docs" // Swagger docs

	"github.com/gin-gonic/gin"
)

// @title           Notification Service API
// @version         1.0
// @description     Like notifications for post owners
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8003
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if cfg.JWTSecret == "your-secret-key-change-in-production" || cfg.JWTSecret == "" {
		panic("JWT_SECRET must be set in environment variables")
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		panic(err)
	}

	if err := application.Run(); err != nil {
		panic(err)
	}

	application.Wait()

	if err := application.Shutdown(); err != nil {
		panic(err)
	}
}
