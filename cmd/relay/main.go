package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/messaging"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/adapters/outbox"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/config"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
)

func main() {
	cfg := config.LoadRelayConfig()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting outbox relay service")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("relay: failed to open database")
	}
	defer db.Close()

	broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	if err != nil {
		logger.WithError(err).Fatal("relay: failed to connect to RabbitMQ")
	}
	defer broker.Close()
	logger.WithField("exchange", cfg.EventsExchange).Info("relay: connected to RabbitMQ")

	reg := prometheus.NewRegistry()
	worker := outbox.NewRelay(db, cfg.DatabaseURL, broker, metrics.New(reg), logger)

	healthMux := http.NewServeMux()
	probe := func(ok func() bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			status, httpStatus := "UP", http.StatusOK
			if !ok() {
				status, httpStatus = "DOWN", http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(httpStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":    status,
				"component": "outbox-relay",
			})
		}
	}
	healthMux.HandleFunc("/health", probe(worker.IsHealthy))
	healthMux.HandleFunc("/health/ready", probe(worker.IsReady))
	healthMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	healthServer := &http.Server{
		Addr:              cfg.HealthAddr,
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HealthAddr).Info("relay: starting health check server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("relay: health server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := worker.Start(ctx); err != nil && err != context.Canceled {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("relay: initiating shutdown")
	case err := <-errChan:
		logger.WithError(err).Error("relay: fatal error, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("relay: error shutting down health server")
	}

	logger.Info("relay: shutdown complete")
}
