package config

import "go.uber.org/fx"

// Module supplies an already loaded *Config; main reads it first so logging
// is up before any constructor runs.
func Module(cfg *Config) fx.Option {
	return fx.Module("config",
		fx.Supply(cfg),
	)
}
