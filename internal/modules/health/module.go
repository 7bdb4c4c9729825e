package health

import (
	"go.uber.org/fx"

	"signal_trader/internal/modules/health/service"
)

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
		),
	)
}
