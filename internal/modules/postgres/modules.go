package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"tick_trader/internal/modules/config"
	engsvc "tick_trader/internal/modules/engine/service"
	"tick_trader/internal/storage"
	"tick_trader/pkg/db"
)

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				// без DSN движок работает без персистенса
				if cfg.DB == "" {
					return nil, nil
				}
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
			func(m *db.PgTxManager) engsvc.TradeStore {
				if m == nil {
					return nil
				}
				return storage.NewPgStore(m)
			},
		),
	)
}
