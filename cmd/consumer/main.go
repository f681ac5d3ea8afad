package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/cache"
	"github.com/profiq/meetup-analysis-kinetica/internal/config"
	"github.com/profiq/meetup-analysis-kinetica/internal/consumer"
	"github.com/profiq/meetup-analysis-kinetica/internal/enrichment"
	"github.com/profiq/meetup-analysis-kinetica/internal/handler"
	"github.com/profiq/meetup-analysis-kinetica/internal/logger"
	"github.com/profiq/meetup-analysis-kinetica/internal/meetup"
	"github.com/profiq/meetup-analysis-kinetica/internal/repository/clickhouse"
	"github.com/profiq/meetup-analysis-kinetica/internal/stream"
	"github.com/profiq/meetup-analysis-kinetica/internal/stream/kafka"
	"github.com/profiq/meetup-analysis-kinetica/internal/stream/sqs"
	"github.com/profiq/meetup-analysis-kinetica/internal/stream/websocket"
	"github.com/profiq/meetup-analysis-kinetica/internal/throttle"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment, cfg.Service.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	log.Info("Starting consumer service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("source", cfg.Stream.Source))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize ClickHouse client
	chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}

	// Initialize repository
	repo := clickhouse.NewRepository(chClient, cfg.ClickHouse.Table, log)
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}()

	// Initialize schema (create tables if not exist)
	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}
	log.Info("Database schema initialized")

	// Enrichment: cache -> ClickHouse -> throttled Meetup API
	attrCache, closeCache := newCache(ctx, cfg.Cache, log)
	defer closeCache()

	limiter := throttle.New(cfg.Meetup.MaxRequests, cfg.Meetup.Period, throttle.WithLogger(log))
	remote := meetup.NewClient(meetup.Config{
		BaseURL:         cfg.Meetup.BaseURL,
		EventsPath:      cfg.Meetup.EventsPath,
		APIKey:          cfg.Meetup.APIKey,
		Timeout:         cfg.Meetup.Timeout,
		BreakerFailures: cfg.Meetup.BreakerFailures,
		BreakerTimeout:  cfg.Meetup.BreakerTimeout,
	}, limiter, log)
	resolver := enrichment.NewService(attrCache, enrichment.NewAttributeStore(repo, log), remote, log)

	// Initialize stream source
	source, err := newSource(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create stream source", zap.Error(err))
	}

	policy, err := consumer.ParseOverflowPolicy(cfg.Consumer.OverflowPolicy)
	if err != nil {
		log.Fatal("Invalid overflow policy", zap.Error(err))
	}

	c := consumer.NewConsumer(consumer.Config{
		BatchSize:        cfg.Consumer.BatchSize,
		QueueSize:        cfg.Consumer.QueueSize,
		OverflowPolicy:   policy,
		FlushOnShutdown:  cfg.Consumer.FlushOnShutdown,
		MaxReceiveErrors: cfg.Consumer.MaxReceiveErrors,
	}, source, resolver, repo, log)

	// Start ops server
	server := &http.Server{
		Addr:              ":" + cfg.Consumer.HealthCheckPort,
		Handler:           handler.NewHandler(repo, c, limiter, attrCache, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Ops server starting", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Ops server error", zap.Error(err))
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx)
	}()

	var consumerErr error
	stopped := false
	select {
	case <-ctx.Done():
		log.Info("Shutting down consumer gracefully")
	case consumerErr = <-done:
		log.Warn("Consumer stopped before shutdown signal")
		stopped = true
	}

	// Closing the source unblocks a receiver waiting on the network
	if err := source.Close(); err != nil {
		log.Error("Failed to close stream source", zap.Error(err))
	}
	if !stopped {
		select {
		case <-done:
		case <-time.After(45 * time.Second):
			log.Warn("Consumer did not stop in time")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down ops server", zap.Error(err))
	}

	stats := c.Stats()
	log.Info("Consumer stopped",
		zap.Int64("received", stats.Received),
		zap.Int64("committed", stats.Committed),
		zap.Int64("failed", stats.Failed),
		zap.Int64("dropped", stats.Dropped))

	if consumerErr != nil {
		log.Fatal("Consumer failed", zap.Error(consumerErr))
	}
}

func newSource(ctx context.Context, cfg *config.Config, log *zap.Logger) (stream.Source, error) {
	switch cfg.Stream.Source {
	case config.SourceSQS:
		return sqs.NewSource(ctx, cfg.SQS, log)
	case config.SourceKafka:
		return kafka.NewSource(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, log)
	default:
		return websocket.NewSource(websocket.Config{
			URL:            cfg.Stream.WebsocketURL,
			ReconnectDelay: cfg.Stream.ReconnectDelay,
		}, log), nil
	}
}

func newCache(ctx context.Context, cfg config.Cache, log *zap.Logger) (cache.Cache, func()) {
	if cfg.Backend == config.CacheRedis {
		redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		}, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis cache", zap.Error(err))
		}
		return redisCache, func() {
			if err := redisCache.Close(); err != nil {
				log.Error("Failed to close Redis cache", zap.Error(err))
			}
		}
	}

	return cache.NewMemory(cfg.TTL), func() {}
}
