package storage

import (
	"context"
	"fmt"
	"time"

	"signal_trader/internal/modules/config"
	"signal_trader/internal/storage"
	"signal_trader/internal/storage/memory"
	"signal_trader/internal/storage/postgres"
	"signal_trader/internal/storage/sqlite"
	"signal_trader/pkg/db"
	"signal_trader/pkg/logger"

	"go.uber.org/fx"
)

// Open builds the backend named by storage.driver.
func Open(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		poolMaster, err := db.NewPool(ctx, db.PoolConfig{
			DSN: cfg.Storage.DSN,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create poolMaster: %w", err)
		}
		if err = poolMaster.Ping(ctx); err != nil {
			poolMaster.Close()
			return nil, err
		}
		s := postgres.New(db.NewPgTxManager(poolMaster), cfg.Storage.HistoryLimit)
		if err = s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case "sqlite":
		return sqlite.Open(ctx, cfg.Storage.DSN, cfg.Storage.HistoryLimit)
	default:
		return memory.New(cfg.Storage.HistoryLimit), nil
	}
}

func NewStore(lc fx.Lifecycle, cfg *config.Config) (storage.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	s, err := Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", cfg.Storage.Driver, err)
	}
	logger.Info("storage: %s backend ready", cfg.Storage.Driver)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}

// Module provides the store and the narrower views its consumers take.
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			NewStore,
			func(s storage.Store) storage.Markers { return s },
			func(s storage.Store) storage.Positions { return s },
			func(s storage.Store) storage.Stats { return s },
		),
	)
}
