package strategy

import (
	"go.uber.org/fx"

	service "tick_trader/internal/modules/strategy/service"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			service.NewGenerator,
		),
	)
}
