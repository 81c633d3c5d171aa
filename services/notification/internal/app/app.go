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
	"petfeed/pkg/queue"
	notificationHTTP "petfeed/services/notification/internal/controller/http"
	"petfeed/services/notification/internal/repo/persistent"
	"petfeed/services/notification/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "petfeed/services/notification/docs" // Swagger docs
)

type App struct {
	cfg         *config.Config
	log         *logger.Logger
	db          *gorm.DB
	redisClient *redis.Client
	queueClient *queue.Client
	jwtService  *jwt.Service
	httpServer  *http.Server
	cancel      context.CancelFunc
}

// NewApp needs all of postgres, redis and RabbitMQ: without the queue there
// is nothing to deliver, without redis nowhere to keep it.
func NewApp(cfg *config.Config) (*App, error) {
	log := logger.New()

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		return nil, err
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("Failed to connect to redis: %v", err)
		return nil, err
	}

	queueClient, err := queue.NewRabbitMQClient(cfg, log)
	if err != nil {
		log.Error("Failed to connect to RabbitMQ: %v", err)
		return nil, err
	}

	return &App{
		cfg:         cfg,
		log:         log,
		db:          db,
		redisClient: redisClient,
		queueClient: queueClient,
		jwtService:  jwt.NewService(cfg.JWTSecret),
	}, nil
}

func Router(handler *notificationHTTP.NotificationHandler, health gin.HandlerFunc, jwtService *jwt.Service, redisClient *redis.Client) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", health)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService))
	api.Use(middleware.RevocationMiddleware(redisClient))
	{
		api.GET("/notifications", handler.GetNotifications)
		api.DELETE("/notifications/:post_id", handler.DeleteNotificationsByPost)
	}

	return r
}

func (a *App) Run() error {
	notificationUseCase := usecase.NewNotificationUseCase(
		persistent.NewInboxRepository(a.redisClient),
		persistent.NewUserRepository(a.db),
		a.log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	err := a.queueClient.ConsumeNotificationTasks(ctx, func(task map[string]interface{}) error {
		taskCtx, done := context.WithTimeout(ctx, 5*time.Second)
		defer done()
		return notificationUseCase.HandleTask(taskCtx, task)
	})
	if err != nil {
		cancel()
		return err
	}

	a.httpServer = &http.Server{
		Addr:    ":" + a.cfg.ServerPort,
		Handler: Router(
			notificationHTTP.NewNotificationHandler(notificationUseCase, a.log),
			notificationHTTP.Health(a.queueClient, a.log),
			a.jwtService,
			a.redisClient,
		),
	}

	go func() {
		a.log.Info("Notification service starting on port %s", a.cfg.ServerPort)
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
	a.log.Info("Shutting down notification service...")
}

func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.cancel != nil {
		a.cancel()
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("Server forced to shutdown: %v", err)
		return err
	}

	if err := a.queueClient.Close(); err != nil {
		a.log.Error("Error closing RabbitMQ: %v", err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.log.Error("Error closing Redis: %v", err)
	}

	sqlDB, err := a.db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			a.log.Error("Error closing database: %v", err)
		}
	}

	a.log.Info("Notification service exited")
	return nil
}
