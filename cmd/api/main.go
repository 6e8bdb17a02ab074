package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/bulk"
	"github.com/chachabrian/clearinghouse-backend/internal/clearinghouse"
	"github.com/chachabrian/clearinghouse-backend/internal/config"
	"github.com/chachabrian/clearinghouse-backend/internal/database"
	"github.com/chachabrian/clearinghouse-backend/internal/handlers"
	"github.com/chachabrian/clearinghouse-backend/internal/middleware"
	"github.com/chachabrian/clearinghouse-backend/internal/reports"
	"github.com/chachabrian/clearinghouse-backend/internal/services"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := services.InitLogger(os.Stdout, cfg.LogLevel, cfg.ServiceName)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTelemetry := services.InitTelemetry(context.Background(), cfg.ServiceName, cfg.OTLPEndpoint, cfg.OTLPInsecure)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("failed to get database instance", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	// Redis backs rate limiting and bulk job locks. Without it the API still
	// serves requests, unthrottled and without job locks.
	var limiter middleware.Limiter
	var locker services.Locker
	health := map[string]handlers.HealthCheck{"database": sqlDB.PingContext}
	if err := services.InitRedis(cfg.RedisURL); err != nil {
		logger.Warn("redis unavailable", "error", err)
	} else {
		limiter = services.NewRateLimiter(services.NewRedisWindowCounter(services.RedisClient), cfg.RateLimitPerMinute)
		locker = services.NewRedisLocker(services.RedisClient)
		health["redis"] = func(ctx context.Context) error { return services.RedisClient.Ping(ctx).Err() }
	}

	files, err := services.InitStorage(cfg)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	core := clearinghouse.NewService(db)
	router := handlers.NewRouter(handlers.RouterDeps{
		DB:           db,
		Tickets:      core,
		Claims:       core,
		Partnerships: core.Registry(),
		Reports:      reports.NewBuilder(db),
		Bulk:         bulk.NewRunner(core, bulk.NewGormOperationStore(db), files, locker, cfg.BulkExportLimit),
		Limiter:      limiter,
		Logger:       logger,
		Health:       health,
		JWTSecret:    cfg.JWTSecret,
		JWTTTL:       cfg.JWTTTL,
		CORSOrigins:  cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, cfg.ServiceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("clearinghouse api listening", "addr", server.Addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
