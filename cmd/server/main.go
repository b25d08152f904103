// LLM Gateway - Server Entry Point
//
// Initializes the enforcement and validation pipeline, its persistence
// backends and the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/llm-gateway/internal/config"
	"github.com/llm-gateway/internal/handler"
	"github.com/llm-gateway/internal/logger"
	"github.com/llm-gateway/internal/risk"
	"github.com/llm-gateway/internal/service"
	"github.com/llm-gateway/internal/tenant"
	"github.com/llm-gateway/internal/trace"
	"github.com/llm-gateway/internal/validation"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	isDev := os.Getenv("GIN_MODE") != "release"

	zapLogger, err := logger.New(isDev)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting llm gateway",
		zap.Bool("development", isDev),
	)

	cfg, err := config.Load()
	if err != nil {
		zapLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	zapLogger.Info("configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.Bool("mock_mode", cfg.Providers.MockMode),
		zap.Bool("database", cfg.DatabaseURL != ""),
	)

	// Persistence: postgres when configured, in-memory/log-only otherwise.
	var (
		tenants tenant.Store
		traces  trace.Sink
	)
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			zapLogger.Fatal("failed to connect to database", zap.Error(err))
		}

		tenants, err = tenant.NewGormStore(db)
		if err != nil {
			zapLogger.Fatal("failed to initialize tenant store", zap.Error(err))
		}

		traces, err = trace.NewGormSink(db)
		if err != nil {
			zapLogger.Fatal("failed to initialize trace sink", zap.Error(err))
		}
	} else {
		zapLogger.Warn("no DATABASE_URL configured - tenant overrides disabled, traces logged only")
		tenants = tenant.NewMemoryStore()
		traces = trace.NewLogSink(zapLogger)
	}

	// Validation engine with the built-in rule set.
	engine := validation.NewEngine([]validation.Rule{
		validation.NewConfidenceRule(),
		validation.NewPIIRule(zapLogger),
	}, zapLogger)
	catalog := validation.NewCatalog()

	scorer := risk.NewScorer(tenants, zapLogger)

	pipeline := service.NewPipeline(cfg, engine, scorer, tenants, traces, zapLogger)

	// Initialize handlers
	completionHandler := handler.NewCompletionHandler(pipeline, zapLogger)
	rulesHandler := handler.NewRulesHandler(engine, catalog, zapLogger)
	healthHandler := handler.NewHealthHandler(zapLogger)
	readyHandler := handler.NewReadyHandler(pipeline, zapLogger)

	// Setup Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(handler.RecoveryMiddleware(zapLogger))
	router.Use(handler.RequestIDMiddleware())
	router.Use(handler.LoggingMiddleware(zapLogger))
	router.Use(handler.CORSMiddleware())

	router.GET("/health", healthHandler.Handle)
	router.GET("/ready", readyHandler.Handle)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/chat/completions", completionHandler.Handle)
		v1.GET("/rules", rulesHandler.List)
		v1.POST("/rules", rulesHandler.Add)
		v1.DELETE("/rules/:name", rulesHandler.Remove)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("server stopped")
}
