package engine

import (
	"context"

	"go.uber.org/fx"

	"tick_trader/internal/ledger"
	"tick_trader/internal/modules/config"
	service "tick_trader/internal/modules/engine/service"
	gwsvc "tick_trader/internal/modules/gateway/service"
	healthsvc "tick_trader/internal/modules/health/service"
	mdsvc "tick_trader/internal/modules/marketdata/service"
	stratsvc "tick_trader/internal/modules/strategy/service"
)

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			func(cfg *config.Config) *ledger.Ledger {
				return ledger.New(cfg.Engine.InitialEquity)
			},
			func(paper *gwsvc.PaperGateway) service.PriceMarker {
				return paper
			},
			func(gen *stratsvc.Generator) service.SignalEvaluator {
				return gen
			},
			service.NewEngine,
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			e *service.Engine,
			md *mdsvc.Client,
			hs *healthsvc.State,
			ctx context.Context,
		) {
			lc.Append(fx.Hook{
				OnStart: func(startCtx context.Context) error {
					if err := e.Resume(startCtx); err != nil {
						return err
					}
					e.Start(ctx)
					hs.SetReady(true)
					ticks := md.StreamTradesBatch(ctx, e.Symbols())
					go func() {
						for {
							select {
							case <-ctx.Done():
								return
							case t, ok := <-ticks:
								if !ok {
									hs.SetWSConnected(false)
									return
								}
								hs.SetWSConnected(true)
								hs.TouchTick(t.Time())
								e.OnTick(t)
							}
						}
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					e.Shutdown(stopCtx)
					return nil
				},
			})
		}),
	)
}
