package runner

import (
	"context"

	"signal_trader/internal/executor"
	"signal_trader/internal/models"
	"signal_trader/internal/modules/config"
	"signal_trader/internal/notify"

	"go.uber.org/fx"
)

func NewRunnerPool(cfg *config.Config, exec *executor.Executor) *Pool {
	return NewPool(exec, cfg.Runner.Workers, cfg.Runner.QueueSize)
}

// drain forwards failures to the operator until ctx is done.
func drain(ctx context.Context, p *Pool, n notify.Notifier) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-p.Failures():
			if models.IsKind(f.Err, models.KindValidation) && f.Symbol == "" {
				// payload noise, already logged
				continue
			}
			n.Sendf("⚠️ %s failed (%s): %v", f.Symbol, f.ID, f.Err)
		}
	}
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewRunnerPool,
		),
		fx.Invoke(func(lc fx.Lifecycle, p *Pool, n notify.Notifier) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					p.Start(ctx)
					go func() {
						defer close(done)
						drain(ctx, p, n)
					}()
					return nil
				},
				OnStop: func(_ context.Context) error {
					cancel()
					p.Stop()
					<-done
					return nil
				},
			})
		}),
	)
}
