package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"discord-fake-service/internal/config"
	"discord-fake-service/internal/events"
	"discord-fake-service/internal/handlers"
	"discord-fake-service/internal/middleware"
	"discord-fake-service/internal/models"
	"discord-fake-service/internal/redis"
	"discord-fake-service/internal/repository"
	"discord-fake-service/internal/scheduler"
	"discord-fake-service/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	cfg := config.New()
	logger := newLogger(cfg)

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Printf("Database connected (%s)", cfg.Database.Driver)

	redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Warning: Redis unavailable, sweeper runs without the advisory lock: %v", err)
		redisClient = nil
	}

	publisher, err := events.NewPublisher(cfg.NATS.URL, logger)
	if err != nil {
		log.Printf("Warning: NATS unavailable, tenant lifecycle events disabled: %v", err)
		publisher = nil
	}

	tenantRepo := repository.NewTenantRepository(db)
	stateRepo := repository.NewStateRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	tenantService := services.NewTenantService(tenantRepo, stateRepo, publisher, logger)
	oauthService := services.NewOAuthService(tenantRepo, stateRepo, logger)
	messageService := services.NewMessageService(tenantRepo, stateRepo, logger)
	interactionService := services.NewInteractionService(tenantRepo, stateRepo, logger)
	commandService := services.NewCommandService(stateRepo, logger)

	sweeper := scheduler.NewSweeper(tenantService, redisClient,
		cfg.Sweeper.Schedule, time.Duration(cfg.Sweeper.MaxAgeHours)*time.Hour, logger)
	if cfg.Sweeper.Enabled {
		if err := sweeper.Start(); err != nil {
			log.Fatalf("Failed to start expiry sweeper: %v", err)
		}
	}

	gaugeCtx, stopGauges := context.WithCancel(context.Background())
	middleware.StartGaugeUpdater(gaugeCtx, tenantRepo, auditRepo, 30*time.Second, logger)

	oauthHandler := handlers.NewOAuthHandler(oauthService, logger)
	channelHandler := handlers.NewChannelHandler(tenantRepo, messageService, logger)
	webhookHandler := handlers.NewWebhookHandler(tenantRepo, interactionService, logger)
	commandHandler := handlers.NewCommandHandler(tenantRepo, commandService, logger)
	testctlHandler := handlers.NewTestControlHandler(tenantService, oauthService, messageService,
		interactionService, commandService, auditRepo, sweeper, logger)
	browseHandler := handlers.NewBrowseHandler(tenantService, logger)
	healthHandler := handlers.NewHealthHandler(db)

	router := setupRouter(cfg, logger, auditRepo,
		oauthHandler, channelHandler, webhookHandler, commandHandler,
		testctlHandler, browseHandler, healthHandler)

	srv := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("discord-fake-service listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutting down...")

	sweeper.Stop()
	stopGauges()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	publisher.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Failed to close Redis: %v", err)
		}
	}
	log.Printf("Server stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.App.Environment == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.Database.Path), &gorm.Config{})
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
			cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode)
		// no TranslateError: duplicate-key classification reads the
		// constraint name out of the driver error
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	auditRepo *repository.AuditRepository,
	oauthHandler *handlers.OAuthHandler,
	channelHandler *handlers.ChannelHandler,
	webhookHandler *handlers.WebhookHandler,
	commandHandler *handlers.CommandHandler,
	testctlHandler *handlers.TestControlHandler,
	browseHandler *handlers.BrowseHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(logger))
	router.Use(middleware.Metrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}))
	router.Use(middleware.AuditLogger(auditRepo, logger))

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/oauth2/authorize", oauthHandler.Authorize)

	api := router.Group("/api/v10")
	{
		api.POST("/oauth2/token", oauthHandler.Token)
		api.GET("/users/@me", oauthHandler.Me)

		api.GET("/channels/:channelId", channelHandler.GetChannel)
		api.POST("/channels/:channelId/messages", channelHandler.SendMessage)
		api.PATCH("/channels/:channelId/messages/:messageId", channelHandler.EditMessage)
		api.PUT("/channels/:channelId/messages/:messageId/reactions/:emoji/@me", channelHandler.AddReaction)

		api.PATCH("/webhooks/:clientId/:token/messages/@original", webhookHandler.EditOriginal)
		api.POST("/webhooks/:clientId/:token", webhookHandler.SendFollowup)

		api.PUT("/applications/:clientId/guilds/:guildId/commands", commandHandler.BulkOverwrite)
	}

	test := router.Group("/_test")
	{
		test.POST("/tenants", testctlHandler.CreateTenant)
		test.GET("/tenants", browseHandler.ListTenants)
		test.DELETE("/tenants/:tenantId", testctlHandler.DeleteTenant)
		test.POST("/jobs/cleanup-old-tenants", testctlHandler.RunCleanup)

		tenant := test.Group("/:tenantId")
		{
			tenant.POST("/reset", testctlHandler.ResetTenant)
			tenant.GET("/messages/:channelId", testctlHandler.GetMessages)
			tenant.GET("/reactions", testctlHandler.GetReactions)
			tenant.GET("/interaction-responses/:token", testctlHandler.GetInteractionResponse)
			tenant.GET("/followups/:token", testctlHandler.GetFollowups)
			tenant.GET("/commands/:guildId", testctlHandler.GetCommands)
			tenant.GET("/audit-logs", testctlHandler.GetAuditLogs)
			tenant.POST("/auth-code", testctlHandler.CreateAuthCode)
			tenant.POST("/interactions", testctlHandler.SendInteraction)
			tenant.GET("/overview", browseHandler.TenantOverview)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		handlers.DiscordError(c, http.StatusNotFound, "404: Not Found")
	})

	return router
}
