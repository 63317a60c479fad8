package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storyforge"
	"storyforge/internal/ai"
	"storyforge/internal/auth"
	"storyforge/internal/config"
	"storyforge/internal/database"
	"storyforge/internal/handler"
	"storyforge/internal/logger"
	"storyforge/internal/prompt"
	"storyforge/internal/service"
	"storyforge/pkg/migration"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	zlog.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	dbPool, err := database.NewPool(ctx, database.PoolConfig{
		DSN:         cfg.GetDSN(),
		MaxConns:    cfg.DBMaxConns,
		IdleTimeout: cfg.DBIdleTimeout,
	})
	cancel()
	if err != nil {
		zlog.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	zlog.Info("Connected to PostgreSQL")

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: "migrations",
		MigrationsFS:   storyforge.MigrationsFS,
	}, dbPool)
	if err := migrator.Up(context.Background()); err != nil {
		zlog.Fatal("Failed to apply migrations", zap.Error(err))
	}
	zlog.Info("Database migrations applied")

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		// The template cache degrades to direct DB reads, so Redis being
		// down is not fatal.
		zlog.Warn("Redis unavailable, template cache will miss", zap.Error(err))
	}

	// Repositories
	templateRepo := database.NewPgTemplateRepository(zlog)
	storyRepo := database.NewPgStoryRepository(zlog)
	sceneRepo := database.NewPgSceneRepository(zlog)
	choiceRepo := database.NewPgChoiceRepository(zlog)
	settingsRepo := database.NewPgSettingsRepository(zlog)
	txRunner := database.NewTransactionHelper(dbPool, zlog)
	templateCache := database.NewRedisTemplateCache(redisClient, cfg.TemplateCacheTTL, zlog)

	// Completion provider
	completionClient, err := ai.NewCompletionClient(ai.ClientConfig{
		ClientType: cfg.AIClientType,
		BaseURL:    cfg.AIBaseURL,
		APIKey:     cfg.AIAPIKey,
		Model:      cfg.AIModel,
		Timeout:    cfg.AITimeout,
	}, zlog)
	if err != nil {
		zlog.Fatal("Failed to create completion client", zap.Error(err))
	}
	settingsCache := ai.NewSettingsCache(settingsRepo, dbPool, cfg.SettingsCacheTTL, nil, zlog)

	promptBuilder, err := prompt.NewBuilder(0, zlog)
	if err != nil {
		zlog.Fatal("Failed to create prompt builder", zap.Error(err))
	}

	// Services
	templateService := service.NewTemplateService(templateRepo, templateCache, dbPool, zlog)
	storyService := service.NewStoryService(storyRepo, templateService, dbPool, zlog)
	sceneService := service.NewSceneService(storyRepo, sceneRepo, choiceRepo, templateService,
		completionClient, settingsCache, promptBuilder, dbPool, zlog)
	choiceService := service.NewChoiceService(storyRepo, choiceRepo, templateService, dbPool, zlog)
	branchService := service.NewBranchService(storyRepo, sceneRepo, choiceRepo, templateService,
		txRunner, dbPool, zlog)
	progressService := service.NewProgressService(storyRepo, templateService, dbPool, zlog)

	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, zlog)
	if err != nil {
		zlog.Fatal("Failed to create JWT verifier", zap.Error(err))
	}

	h := handler.NewHandler(templateService, storyService, sceneService, choiceService,
		branchService, progressService, verifier, zlog)

	e := echo.New()
	e.HideBanner = true
	e.Use(handler.EchoZapLogger(zlog))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		if err := dbPool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h.RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	zlog.Info("Server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Graceful shutdown failed", zap.Error(err))
	}
	zlog.Info("Server stopped")
}
