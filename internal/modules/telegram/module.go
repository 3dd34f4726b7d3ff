package telegram

import (
	"context"

	"go.uber.org/fx"

	"tick_trader/internal/modules/config"
	engsvc "tick_trader/internal/modules/engine/service"
	mdsvc "tick_trader/internal/modules/marketdata/service"
	"tick_trader/internal/notify"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			func(cfg *config.Config) (*notify.Telegram, error) {
				return notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
			},
			func(t *notify.Telegram) engsvc.Notifier { return t },
			func(t *notify.Telegram) mdsvc.ServiceNotifier { return t },
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			t *notify.Telegram,
			e *engsvc.Engine,
			ctx context.Context,
		) {
			t.SetPerformanceSource(e)
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						_ = t.Start(ctx)
					}()
					t.Sendf("🚀 Движок запущен | символов: %d", len(e.Symbols()))
					return nil
				},
				OnStop: func(_ context.Context) error {
					t.Sendf("🛑 Движок остановлен | открытых позиций: %d", e.Ledger().OpenCount())
					return nil
				},
			})
		}),
	)
}
