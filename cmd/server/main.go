package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"user-directory/internal/config"
	"user-directory/internal/health"
	healthhandler "user-directory/internal/health/handler"
	"user-directory/internal/logger"
	"user-directory/internal/server"
	"user-directory/internal/server/middleware"
	"user-directory/internal/store"
	telemetryotel "user-directory/internal/telemetry/otel"
	"user-directory/internal/user/events"
	userhandler "user-directory/internal/user/handler"
	"user-directory/internal/user/repository"
	"user-directory/internal/user/service"
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

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()

	checker := health.NewChecker(2 * time.Second).WithLogger(log)
	st, err := store.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()
	checker.Add(st.Name, st.Pinger)
	repo := st.Repo

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		checker.Add("redis", health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }))
		repo = repository.NewCachedRepository(repo, rdb, cfg.CacheTTL, log)
		log.Info("user cache enabled", zap.String("redis_addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
	}

	publishers := events.Multi{events.NewLogPublisher(providers.LoggerProvider)}
	if kp := events.NewKafkaPublisher(cfg.KafkaBrokersList(), cfg.UserEventsTopic, events.BreakerSettings{}, log); kp != nil {
		publishers = append(publishers, kp)
		log.Info("user events enabled", zap.Strings("brokers", cfg.KafkaBrokersList()), zap.String("topic", cfg.UserEventsTopic))
	}

	directory := service.NewDirectory(repo, publishers, log)
	healthSrv := healthhandler.NewServer(checker, log)

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, log)
		go limiter.Run(ctx)
	}

	router := server.NewRouter(server.HTTPDeps{
		Users:   userhandler.NewHandler(directory, log),
		Health:  healthSrv,
		Limiter: limiter,
		Log:     log,
	})
	httpSrv := server.NewHTTPServer(cfg.HTTPAddr, router)

	errCh := make(chan error, 2)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go healthSrv.Run(healthCtx, 10*time.Second)

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
		}
		grpcSrv = server.NewGRPCServer(healthSrv, log)
		go func() {
			log.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("server failed, shutting down", zap.Error(err))
	}
	stopHealth()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}

	// Let in-flight asynchronous publishes finish before closing the publishers and exporters.
	time.Sleep(events.ShutdownDrainDuration)
	if err := publishers.Close(); err != nil {
		log.Warn("close publishers", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", zap.Error(err))
	}
	log.Info("stopped")
	return nil
}
