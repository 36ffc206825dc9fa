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

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ebank/internal/config"
	"ebank/internal/engine"
	"ebank/internal/forex"
	apphttp "ebank/internal/http"
	applog "ebank/internal/log"
	"ebank/internal/query"
	"ebank/internal/store"
	"ebank/internal/stream"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo})
	applog.SetDefault(logger)

	logger.Info("Starting ebank")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open state store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer st.Close()

	forexClient := forex.NewClient(forex.Config{
		BaseURL:   cfg.ForexAPIURL,
		APIKey:    cfg.ForexAPIKey,
		Timeout:   cfg.ForexTimeout,
		CacheSize: cfg.ForexCacheSize,
		CacheTTL:  cfg.ForexCacheTTL,
	}, logger)

	querySvc := query.New(st, forexClient, logger)
	verifier := apphttp.NewTokenVerifier(cfg.JWTSecret)
	srv := apphttp.NewServer(":"+cfg.Port, querySvc, verifier, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// One consumer loop per worker; the broker spreads the topic's
	// partitions across the group members.
	kafkaCfg := stream.KafkaConfig{
		Brokers:       cfg.KafkaBrokers,
		Topic:         cfg.KafkaTopic,
		ConsumerGroup: cfg.KafkaGroup,
	}
	for i := 0; i < cfg.EngineWorkers; i++ {
		consumer := stream.NewKafkaConsumer(kafkaCfg)
		eng := engine.New(consumer, st, logger, cfg.KafkaTopic)
		g.Go(func() error {
			defer consumer.Close()
			if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Query API listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Shutting down after failure", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Stopped gracefully")
}
