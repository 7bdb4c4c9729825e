package projectx

import (
	"signal_trader/internal/auth"
	"signal_trader/internal/modules/config"
	"signal_trader/internal/modules/projectx/service"
	"signal_trader/internal/storage"

	"go.uber.org/fx"
)

func NewAuthenticator(cfg *config.Config) *service.Authenticator {
	return service.NewAuthenticator(cfg.ProjectX.BaseURL, cfg.ProjectX.UserName, cfg.ProjectX.APIKey, cfg.ProjectX.Timeout)
}

func NewTokenCache(cfg *config.Config, store storage.Markers, a *service.Authenticator) *auth.TokenCache {
	return auth.NewTokenCache(store, a, cfg.ProjectX.TokenTTL)
}

func NewClient(cfg *config.Config, tokens *auth.TokenCache, a *service.Authenticator) *service.Client {
	return service.NewClient(cfg.ProjectX.BaseURL, cfg.ProjectX.Timeout, tokens, a)
}

// Module wires the gateway client and its token cache.
func Module() fx.Option {
	return fx.Module("projectx",
		fx.Provide(
			NewAuthenticator,
			NewTokenCache,
			NewClient,
		),
	)
}
