package executor

import (
	"signal_trader/internal/auth"
	"signal_trader/internal/contracts"
	"signal_trader/internal/dedup"
	"signal_trader/internal/metrics"
	"signal_trader/internal/models"
	"signal_trader/internal/modules/config"
	"signal_trader/internal/modules/projectx/service"
	"signal_trader/internal/notify"
	"signal_trader/internal/storage"
	"signal_trader/pkg/logger"

	"go.uber.org/fx"
)

// NewPolicy overlays the configured defaults on DefaultPolicy.
func NewPolicy(cfg *config.Config) models.Policy {
	p := models.DefaultPolicy
	if cfg.Trading.DefaultOrderSize > 0 {
		p.Quantity = cfg.Trading.DefaultOrderSize
	}
	if cfg.Trading.DefaultDirection != "" {
		p.Direction = cfg.Trading.DefaultDirection
	}
	if cfg.Trading.DefaultOrderType > 0 {
		p.OrderType = models.OrderType(cfg.Trading.DefaultOrderType)
	}
	if cfg.Trading.DefaultTickSize > 0 {
		p.TickSize = cfg.Trading.DefaultTickSize
	}
	return p
}

func NewResolver(cfg *config.Config) (*contracts.Resolver, error) {
	r, err := contracts.LoadFile(cfg.Trading.ContractsFile)
	if err != nil {
		return nil, err
	}
	logger.Info("contracts: %d symbols mapped", r.Len())
	return r, nil
}

func NewGuard(cfg *config.Config, store storage.Markers) *dedup.Guard {
	return dedup.NewGuard(store, cfg.Trading.DedupTTL)
}

func NewExecutor(
	client *service.Client,
	tokens *auth.TokenCache,
	resolver *contracts.Resolver,
	guard *dedup.Guard,
	positions storage.Positions,
	notifier notify.Notifier,
	m metrics.Recorder,
	policy models.Policy,
) *Executor {
	return New(Deps{
		Broker:    client,
		Tokens:    tokens,
		Resolver:  resolver,
		Dedup:     guard,
		Positions: positions,
		Notifier:  notifier,
		Metrics:   m,
		Policy:    policy,
	})
}

func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			NewPolicy,
			NewResolver,
			NewGuard,
			NewExecutor,
			func() metrics.Recorder { return metrics.Prom{} },
		),
	)
}
