package webhook

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"signal_trader/internal/auth"
	"signal_trader/internal/models"
	"signal_trader/internal/modules/config"
	health "signal_trader/internal/modules/health/service"
	"signal_trader/internal/runner"
	"signal_trader/internal/storage"
	"signal_trader/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func ProvideHandlers(pool *runner.Pool, tokens *auth.TokenCache, store storage.Store, state *health.State, policy models.Policy) *Handlers {
	return NewHandlers(pool, tokens, store, state, policy)
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, router *gin.Engine, state *health.State) {
	srv := &http.Server{
		Addr:              cfg.Service.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Service.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http: %v", err)
				}
			}()
			state.SetReady(true)
			logger.Info("http: listening on %s", cfg.Service.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("webhook",
		fx.Provide(
			ProvideHandlers,
			NewRouter,
		),
		fx.Invoke(RunHTTP),
	)
}
