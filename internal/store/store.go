package store

import (
	"context"
	"log/slog"

	"agenda-backend/internal/booking"
	"agenda-backend/internal/config"
	"agenda-backend/internal/db"
)

// Handle is an opened store with its readiness check. Close releases the connection.
type Handle struct {
	booking.Store
	Ready func(ctx context.Context) error
	Close func()
}

// Open connects the configured driver and prepares its schema.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Handle, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("postgres connected")
		return &Handle{
			Store: booking.NewPostgresRepository(pool),
			Ready: db.PostgresReadyCheck(pool),
			Close: pool.Close,
		}, nil

	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return &Handle{Store: booking.NewMemoryRepository(), Close: func() {}}, nil

	default:
		client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureIndexes(ctx, cols); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.Info("mongo connected")
		return &Handle{
			Store: booking.NewMongoRepository(client, cols),
			Ready: func(ctx context.Context) error { return client.Ping(ctx, nil) },
			Close: func() { _ = client.Disconnect(context.Background()) },
		}, nil
	}
}
