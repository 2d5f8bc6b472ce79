// Package main provides the entry point for the LinkSnap URL shortener service.
//
//	@title			LinkSnap URL Shortener API
//	@version		1.0.0
//	@description	URL shortener with per-user quotas and click analytics.
//
//	@contact.name	LinkSnap Support
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Authorization header. Format: "Bearer {token}"
package main

import (
	"LinkSnap-Backend/internal/analytics"
	"LinkSnap-Backend/internal/auth"
	"LinkSnap-Backend/internal/config"
	"LinkSnap-Backend/internal/database"
	"LinkSnap-Backend/internal/geo"
	httpHandler "LinkSnap-Backend/internal/handler/http"
	"LinkSnap-Backend/internal/ratelimit"
	"LinkSnap-Backend/internal/repository"
	"LinkSnap-Backend/internal/repository/cache"
	"LinkSnap-Backend/internal/repository/memory"
	"LinkSnap-Backend/internal/repository/sqlstore"
	"LinkSnap-Backend/internal/service"
	"LinkSnap-Backend/pkg/logger"
	"LinkSnap-Backend/pkg/useragent"
	"context"
	"errors"
	lg "log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "LinkSnap-Backend/docs" // Import swagger docs
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting LinkSnap service", zap.String("env", cfg.Env), zap.String("db_driver", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, closeStorage := openStorage(cfg, log)
	defer closeStorage()

	// Redis: кеш редиректов и общие счетчики rate limit
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error("failed to close redis client", zap.Error(err))
			}
		}()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("failed to connect to redis", zap.String("address", cfg.Redis.Address), zap.Error(err))
		}

		storage = cache.New(storage, cache.NewRedisClient(rdb), cfg.Redis.CacheTTL, log)
		log.Info("redirect cache enabled", zap.Duration("ttl", cfg.Redis.CacheTTL))
	}

	// Initialize User-Agent parser
	regexesPath := "assets/regexes.yaml"
	if err := useragent.InitGlobalParser(regexesPath, log); err != nil {
		log.Warn("failed to load User-Agent regexes, using built-in definitions", zap.Error(err))
	}

	var locator geo.Locator = geo.Static{}
	if cfg.Geo.Enabled {
		locator = geo.NewIPWhoIs(cfg.Geo.Endpoint, cfg.Geo.Timeout, cfg.Geo.CacheTTL, log)
	}

	// Очередь повторной записи кликов
	processorConfig := analytics.DefaultConfig()
	processorConfig.WorkerCount = cfg.Analytics.WorkerCount
	processorConfig.BufferSize = cfg.Analytics.BufferSize
	processorConfig.RetryAttempts = cfg.Analytics.RetryAttempts
	processorConfig.RetryDelay = cfg.Analytics.RetryDelay
	processor := analytics.NewProcessor(storage, log, processorConfig)
	if err := processor.Start(); err != nil {
		log.Fatal("failed to start analytics processor", zap.Error(err))
	}

	shortener := service.NewURLShortener(storage, &cfg.URLShortener, log)
	redirects := service.NewRedirectService(storage, useragent.GetGlobalParser(), locator, processor, log)
	analyticsService := service.NewAnalyticsService(storage, cfg.URLShortener.MaxURLsPerUser, log)

	if cfg.Reaper.Enabled {
		reaper := service.NewReaper(storage, cfg.Reaper.Interval, cfg.Reaper.Grace, cfg.Reaper.BatchSize, log)
		go reaper.Run(ctx)
	}

	jwtService := auth.NewJWTService(&cfg.JWT)
	passwordService := auth.NewPasswordService(cfg.JWT.BcryptCost)

	deps := httpHandler.Dependencies{
		Storage:        storage,
		Shortener:      shortener,
		Redirects:      redirects,
		Analytics:      analyticsService,
		Auth:           auth.NewAuthHandlers(storage, jwtService, passwordService, log),
		JWT:            jwtService,
		Processor:      processor,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}
	if cfg.RateLimit.Enabled {
		deps.CreateURLLimiter, deps.AuthLimiter = newLimiters(&cfg.RateLimit, rdb)
	}

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      httpHandler.NewServer(deps, log).SetupRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting HTTP server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down LinkSnap service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	if err := processor.Stop(); err != nil {
		log.Error("failed to stop analytics processor", zap.Error(err))
	}
}

// openStorage выбирает хранилище по database.driver
func openStorage(cfg *config.Config, log *zap.Logger) (repository.Storage, func()) {
	if cfg.Database.Driver == database.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.New(), func() {}
	}

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations if enabled
	if cfg.Database.AutoMigrate {
		log.Info("running database migrations (auto_migrate: true)")
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	} else {
		log.Info("skipping database migrations (auto_migrate: false)")
	}

	return sqlstore.New(db, log), func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}
}

// newLimiters строит лимитеры: общие через Redis, если он подключен
func newLimiters(cfg *config.RateLimit, rdb *redis.Client) (ratelimit.Limiter, ratelimit.Limiter) {
	if rdb != nil {
		return ratelimit.NewRedis(rdb, "ratelimit:create:", cfg.CreateURLLimit, cfg.CreateURLWindow),
			ratelimit.NewRedis(rdb, "ratelimit:auth:", cfg.AuthLimit, cfg.AuthWindow)
	}
	return ratelimit.NewMemory(cfg.CreateURLLimit, cfg.CreateURLWindow),
		ratelimit.NewMemory(cfg.AuthLimit, cfg.AuthWindow)
}
