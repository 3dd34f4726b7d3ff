package marketdata

import (
	"go.uber.org/fx"

	service "tick_trader/internal/modules/marketdata/service"
)

func Module() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(
			service.NewClient,
		),
	)
}
