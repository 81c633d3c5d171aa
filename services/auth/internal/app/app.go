package internal

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petfeed/pkg/cache"
	"petfeed/pkg/config"
	"petfeed/pkg/database"
	"petfeed/pkg/jwt"
	"petfeed/pkg/logger"
	"petfeed/pkg/middleware"
	"petfeed/pkg/s3"
	authHTTP "petfeed/services/auth/internal/controller/http"
	"petfeed/services/auth/internal/repo/persistent"
	"petfeed/services/auth/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "petfeed/services/auth/docs" // Swagger docs
)

type App struct {
	cfg         *config.Config
	log         *logger.Logger
	db          *gorm.DB
	redisClient *redis.Client
	s3Client    *s3.Client
	jwtService  *jwt.Service
	httpServer  *http.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	log := logger.New()

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		return nil, err
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		// Without redis sign-out cannot be recorded and reports an error.
		log.Warn("Failed to connect to redis: %v", err)
		redisClient = nil
	}

	s3Client, err := s3.NewClient(cfg)
	if err != nil {
		log.Error("Failed to create S3 client: %v", err)
		return nil, err
	}

	return &App{
		cfg:         cfg,
		log:         log,
		db:          db,
		redisClient: redisClient,
		s3Client:    s3Client,
		jwtService:  jwt.NewService(cfg.JWTSecret),
	}, nil
}

// Router builds the gin engine with the public auth routes and the
// token-protected profile routes.
func Router(authHandler *authHTTP.AuthHandler, jwtService *jwt.Service, redisClient *redis.Client) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	{
		public := api.Group("/auth")
		public.Use(middleware.RateLimitMiddleware(redisClient, 20, time.Minute))
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(jwtService))
		protected.Use(middleware.RevocationMiddleware(redisClient))
		{
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/users/me", authHandler.Me)
			protected.PUT("/users/me", authHandler.UpdateProfile)
			protected.DELETE("/users/me", authHandler.DeleteAccount)
			protected.POST("/users/me/pet-image", authHandler.UploadPetImage)
			protected.GET("/users/:id", authHandler.GetUser)
		}
	}

	return r
}

func (a *App) Run() error {
	userRepo := persistent.NewUserRepository(a.db)

	authUseCase := usecase.NewAuthUseCase(
		userRepo,
		a.jwtService,
		a.s3Client,
		middleware.TokenRevoker{Client: a.redisClient},
		a.log,
	)

	authHandler := authHTTP.NewAuthHandler(authUseCase, a.log)

	a.httpServer = &http.Server{
		Addr:    ":" + a.cfg.ServerPort,
		Handler: Router(authHandler, a.jwtService, a.redisClient),
	}

	go func() {
		a.log.Info("Auth service starting on port %s", a.cfg.ServerPort)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	return nil
}

func (a *App) Wait() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.log.Info("Shutting down auth service...")
}

func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("Server forced to shutdown: %v", err)
		return err
	}

	sqlDB, err := a.db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			a.log.Error("Error closing database: %v", err)
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Error("Error closing Redis: %v", err)
		}
	}

	a.log.Info("Auth service exited")
	return nil
}
