package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"tick_trader/internal/modules/config"
	"tick_trader/internal/modules/engine"
	"tick_trader/internal/modules/gateway"
	"tick_trader/internal/modules/health"
	"tick_trader/internal/modules/marketdata"
	"tick_trader/internal/modules/postgres"
	"tick_trader/internal/modules/strategy"
	"tick_trader/internal/modules/telegram"
	"tick_trader/pkg/logger"
	"tick_trader/pkg/tracing"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName("tick_trader")
	tracing.SetServiceName("tick_trader")

	app := fx.New(
		fx.Provide(
			func(lc fx.Lifecycle) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						cancel()
						return nil
					},
				})
				return ctx
			},
		),
		config.Module(),
		postgres.Module(),
		marketdata.Module(),
		gateway.Module(),
		strategy.Module(),
		engine.Module(),
		telegram.Module(),
		health.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
	)
	app.Run()
}
