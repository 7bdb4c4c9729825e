package monitor

import (
	"context"
	"time"

	"signal_trader/pkg/logger"
)

// KeepAlive logs a heartbeat every interval until ctx is done.
func KeepAlive(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			logger.Info("✅ keep-alive heartbeat")
		}
	}
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealth receives the result of each store ping.
type StoreHealth interface {
	SetStoreOK(ok bool)
}

// PingStore checks the backing store every interval and reports to health.
func PingStore(ctx context.Context, store Pinger, interval time.Duration, health StoreHealth) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := store.Ping(pctx)
			cancel()
			if err != nil {
				logger.Error("❌ store ping failed: %v", err)
			} else {
				logger.Debug("✅ store connection OK")
			}
			if health != nil {
				health.SetStoreOK(err == nil)
			}
		}
	}
}
