package main

import (
	"log"

	"signal_trader/internal/executor"
	"signal_trader/internal/modules/config"
	"signal_trader/internal/modules/health"
	"signal_trader/internal/modules/projectx"
	"signal_trader/internal/modules/storage"
	"signal_trader/internal/modules/webhook"
	"signal_trader/internal/monitor"
	"signal_trader/internal/notify"
	"signal_trader/internal/runner"
	"signal_trader/pkg/logger"
	"signal_trader/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger.SetServiceName(cfg.Service.Name)
	if err := logger.Init(cfg.Log.Level, cfg.Log.JSON); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if cfg.Tracing.Host != "" {
		tracing.SetServiceName(cfg.Service.Name)
		_, closeTracer, err := tracing.InitTracer(tracing.Config{Host: cfg.Tracing.Host, Port: cfg.Tracing.Port})
		if err != nil {
			logger.Warn("tracing disabled: %v", err)
		} else {
			defer closeTracer()
		}
	}

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.InfoLogger}
		}),
		config.Module(cfg),
		storage.Module(),
		health.Module(),
		projectx.Module(),
		notify.Module(),
		executor.Module(),
		runner.Module(),
		monitor.Module(),
		webhook.Module(),
	)

	logger.Info("%s starting on %s (storage=%s)", cfg.Service.Name, cfg.Service.Addr, cfg.Storage.Driver)
	app.Run()
}
