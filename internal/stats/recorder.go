package stats

import (
	"context"
	"fmt"

	"signal_trader/internal/metrics"
	"signal_trader/internal/models"
	"signal_trader/internal/storage"
)

// Recorder books each fully closed trade into the stats store.
type Recorder struct {
	store   storage.Stats
	metrics metrics.Recorder
}

func NewRecorder(store storage.Stats, m metrics.Recorder) *Recorder {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Recorder{store: store, metrics: m}
}

// Entry is the history line of one close, e.g. "MES1! - WIN - PnL: $12.50".
func Entry(symbol string, pnl float64) string {
	result := "LOSS"
	if models.IsWin(pnl) {
		result = "WIN"
	}
	return fmt.Sprintf("%s - %s - PnL: $%.2f", symbol, result, pnl)
}

func (r *Recorder) RecordClose(ctx context.Context, symbol string, pnl float64) error {
	if err := r.store.RecordTrade(ctx, Entry(symbol, pnl), pnl); err != nil {
		return fmt.Errorf("record close %s: %w", symbol, err)
	}
	r.metrics.Trade(pnl)
	return nil
}

func (r *Recorder) Snapshot(ctx context.Context, limit int) (models.StatsSnapshot, error) {
	return r.store.Stats(ctx, limit)
}
