// Worker consumes user change events from Kafka, logs them and evicts stale Redis cache entries.
// Set KAFKA_BROKERS, USER_EVENTS_TOPIC and KAFKA_GROUP_ID; REDIS_ADDR enables eviction.
// The store settings are validated by config but unused (e.g. set STORE_DRIVER=memory).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"user-directory/internal/config"
	"user-directory/internal/logger"
	"user-directory/internal/user/events"
	"user-directory/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("component", "worker"))

	consumer := events.NewConsumer(cfg.KafkaBrokersList(), cfg.UserEventsTopic, cfg.KafkaGroupID, log)
	if consumer == nil {
		log.Fatal("worker: KAFKA_BROKERS and USER_EVENTS_TOPIC are required")
	}
	defer func() { _ = consumer.Close() }()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("consuming user events",
		zap.String("topic", cfg.UserEventsTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.Bool("cache_eviction", rdb != nil))

	err = consumer.Run(ctx, func(ctx context.Context, e events.Event) error {
		log.Info("user event",
			zap.String("type", string(e.Type)),
			zap.Int64("user_id", e.UserID),
			zap.Int("status", e.Status),
			zap.Bool("deleted", e.Deleted),
			zap.Time("occurred_at", e.OccurredAt))
		if rdb == nil {
			return nil
		}
		evictCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return repository.Evict(evictCtx, rdb, e.UserID)
	})
	if err != nil {
		log.Error("worker stopped with error", zap.Error(err))
		return
	}
	log.Info("worker stopped")
}
