package monitor

import (
	"context"
	"sync"

	"signal_trader/internal/auth"
	"signal_trader/internal/metrics"
	"signal_trader/internal/modules/config"
	health "signal_trader/internal/modules/health/service"
	"signal_trader/internal/modules/projectx/service"
	"signal_trader/internal/notify"
	"signal_trader/internal/stats"
	"signal_trader/internal/storage"

	"go.uber.org/fx"
)

func NewMonitor(
	cfg *config.Config,
	client *service.Client,
	tokens *auth.TokenCache,
	positions storage.Positions,
	rec *stats.Recorder,
	notifier notify.Notifier,
	m metrics.Recorder,
	state *health.State,
) *Monitor {
	return New(Deps{
		Broker:    client,
		Tokens:    tokens,
		Positions: positions,
		Stats:     rec,
		Notifier:  notifier,
		Metrics:   m,
		Observer:  state,
		Interval:  cfg.Monitor.Interval,
		ShortMode: ShortMode(cfg.Monitor.ShortMode),
	})
}

func NewStatsRecorder(s storage.Stats, m metrics.Recorder) *stats.Recorder {
	return stats.NewRecorder(s, m)
}

// Module runs the take-profit monitor and both heartbeats as background
// tasks bound to one context, cancelled and awaited on stop.
func Module() fx.Option {
	return fx.Module("monitor",
		fx.Provide(
			NewStatsRecorder,
			NewMonitor,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, mon *Monitor, store storage.Store, state *health.State) {
			ctx, cancel := context.WithCancel(context.Background())
			var wg sync.WaitGroup
			spawn := func(fn func()) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					fn()
				}()
			}
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					spawn(func() { mon.Run(ctx) })
					spawn(func() { KeepAlive(ctx, cfg.Monitor.HeartbeatInterval) })
					spawn(func() { PingStore(ctx, store, cfg.Storage.PingInterval, state) })
					return nil
				},
				OnStop: func(_ context.Context) error {
					cancel()
					wg.Wait()
					return nil
				},
			})
		}),
	)
}
