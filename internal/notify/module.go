package notify

import (
	"context"

	"signal_trader/internal/modules/config"
	"signal_trader/internal/storage"
	"signal_trader/pkg/logger"

	"go.uber.org/fx"
)

// NewNotifier picks telegram when a bot token and chat are configured.
// A bot that fails to start degrades to stdout instead of failing the app.
func NewNotifier(lc fx.Lifecycle, cfg *config.Config, store storage.Store) Notifier {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		return NewStdout()
	}
	tg, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, store)
	if err != nil {
		logger.Error("telegram: %v, notifications go to stdout", err)
		return NewStdout()
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return tg.Start(ctx)
		},
		OnStop: func(context.Context) error {
			cancel()
			tg.Stop()
			return nil
		},
	})
	return tg
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(NewNotifier),
	)
}
