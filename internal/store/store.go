// Package store opens the user repository selected by STORE_DRIVER.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"user-directory/internal/config"
	"user-directory/internal/db"
	"user-directory/internal/db/migrate"
	"user-directory/internal/health"
	"user-directory/internal/user/repository"
)

// ConnectTimeout bounds each store connection attempt.
const ConnectTimeout = 10 * time.Second

// Store is an opened user repository and the resources behind it.
type Store struct {
	Repo repository.Repository
	// Name is the health check name of the backing database; empty for the memory store.
	Name   string
	Pinger health.Pinger
	close  func()
}

// Close releases the connection. Safe on a nil Store.
func (s *Store) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// Open connects the store configured in cfg. Postgres runs embedded migrations first when AutoMigrate is set;
// Mongo creates its indexes.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	connectCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.AutoMigrate {
			res, err := migrate.Run(cfg.DatabaseURL, migrate.Up)
			if err != nil {
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
			log.Info("migrations applied", zap.Uint("version", res.Version), zap.Bool("changed", res.Changed))
		}
		sqlDB, err := db.Open(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("using postgres user store")
		return &Store{
			Repo:   repository.NewPostgresRepository(sqlDB),
			Name:   "database",
			Pinger: sqlDB,
			close:  func() { _ = sqlDB.Close() },
		}, nil

	case config.DriverMongo:
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		if err := client.Ping(connectCtx, nil); err != nil {
			closeFn()
			return nil, fmt.Errorf("mongo ping: %w", err)
		}
		repo := repository.NewMongoRepository(client.Database(cfg.MongoDatabase))
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			closeFn()
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		log.Info("using mongo user store", zap.String("database", cfg.MongoDatabase))
		return &Store{
			Repo:   repo,
			Name:   "mongo",
			Pinger: health.PingFunc(func(ctx context.Context) error { return client.Ping(ctx, nil) }),
			close:  closeFn,
		}, nil

	case config.DriverMemory:
		log.Warn("using in-memory user store; data is lost on restart")
		return &Store{Repo: repository.NewMemoryRepository()}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
