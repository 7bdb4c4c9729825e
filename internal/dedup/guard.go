package dedup

import (
	"context"
	"time"

	"signal_trader/internal/helper"
	"signal_trader/internal/storage"
)

// Guard suppresses a repeat of the same (contract, account) pair within ttl.
type Guard struct {
	store storage.Markers
	ttl   time.Duration
}

func NewGuard(store storage.Markers, ttl time.Duration) *Guard {
	return &Guard{store: store, ttl: ttl}
}

// TryAcquire reports true for exactly one caller per window.
func (g *Guard) TryAcquire(ctx context.Context, symbol string, accountID int64) (bool, error) {
	return g.store.SetNX(ctx, helper.DedupKey(symbol, accountID), "1", g.ttl)
}
