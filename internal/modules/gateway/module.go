package gateway

import (
	"go.uber.org/fx"

	"tick_trader/internal/modules/config"
	service "tick_trader/internal/modules/gateway/service"
)

func Module() fx.Option {
	return fx.Module("gateway",
		fx.Provide(
			func(cfg *config.Config) *service.PaperGateway {
				return service.NewPaperGateway(service.FeeConfigView{
					TakerFeeRate: cfg.Engine.TakerFeeRate,
					MakerFeeRate: cfg.Engine.MakerFeeRate,
				})
			},
			func(cfg *config.Config, paper *service.PaperGateway) service.Gateway {
				return service.NewRetryingGateway(paper, cfg.Engine.MarketOrderTimeout, cfg.Engine.LimitOrderTimeout)
			},
		),
	)
}
