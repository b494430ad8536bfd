package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/handler"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/middleware"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/realtime"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/repository"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/repository/memory"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/config"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/services"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var store ports.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using the in-memory store; state is lost on restart")
		store = memory.NewStore()
	default:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to open database")
		}
		defer db.Close()
		store = repository.NewPostgresStore(db, cfg.LockTimeout, logger)
	}

	hub := realtime.NewHub(m, logger)

	// Without Redis this replica delivers straight to its own hub.
	var notifier ports.Notifier = hub
	var redisClient redis.UniversalClient
	if cfg.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		notifier = realtime.NewRedisNotifier(redisClient, cfg.RedisChannel, logger)

		bridge := realtime.NewBridge(redisClient, cfg.RedisChannel, hub, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("notification bridge stopped")
			}
		}()
	}

	runnerCfg := services.RunnerConfig{MaxAttempts: cfg.MaxAttempts, RetryBackoff: cfg.RetryBackoff}
	scheduler := services.NewScheduler(store, notifier, m, logger, runnerCfg)
	directory := services.NewDirectoryService(store, m, logger, runnerCfg)
	tokens := services.NewTokenService(cfg.JWTPrivateKey, cfg.SessionTokenTTL)

	auth := middleware.NewAuthMiddleware(cfg.JWTPublicKey, logger)
	router := handler.Router{
		Auth:     auth,
		Health:   handler.NewHealthHandler(store, redisClient, logger),
		Sessions: handler.NewSessionHandler(directory, tokens, logger),
		Queue:    handler.NewQueueHandler(scheduler, directory, logger),
		Admin:    handler.NewAdminHandler(scheduler, directory, logger),
		WS:       handler.NewWSHandler(auth, hub, cfg.CORSAllowedOrigins, logger),
		Gatherer: reg,
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CORSMiddleware(cfg.CORSAllowedOrigins)(router.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Port, "store": cfg.StoreDriver}).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("could not start server")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("error shutting down server")
	}
}
