package monitor

import (
	"context"
	"time"

	"signal_trader/internal/helper"
	"signal_trader/internal/metrics"
	"signal_trader/internal/models"
	"signal_trader/internal/notify"
	"signal_trader/internal/storage"
	"signal_trader/pkg/logger"

	"github.com/pkg/errors"
)

type Broker interface {
	GetContractDetails(ctx context.Context, contractID string) (models.ContractDetails, error)
	PositionSize(ctx context.Context, accountID int64, contractID string) (int, error)
	ClosePartialPosition(ctx context.Context, accountID int64, contractID string, size int) error
}

type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

type StatsRecorder interface {
	RecordClose(ctx context.Context, symbol string, pnl float64) error
}

// TickObserver is told when a pass over the positions finished.
type TickObserver interface {
	TouchTick(t time.Time)
}

// ShortMode picks how SHORT positions compare against their targets.
type ShortMode string

const (
	// ShortLegacy tests last >= target for both sides.
	ShortLegacy ShortMode = "legacy"
	// ShortMirror tests last <= target for SHORT positions.
	ShortMirror ShortMode = "mirror"
)

type Monitor struct {
	broker    Broker
	tokens    TokenProvider
	positions storage.Positions
	stats     StatsRecorder
	notifier  notify.Notifier
	metrics   metrics.Recorder
	observer  TickObserver

	interval  time.Duration
	shortMode ShortMode
	now       func() time.Time
}

type Deps struct {
	Broker    Broker
	Tokens    TokenProvider
	Positions storage.Positions
	Stats     StatsRecorder
	Notifier  notify.Notifier
	Metrics   metrics.Recorder
	Observer  TickObserver
	Interval  time.Duration
	ShortMode ShortMode
}

func New(d Deps) *Monitor {
	m := &Monitor{
		broker:    d.Broker,
		tokens:    d.Tokens,
		positions: d.Positions,
		stats:     d.Stats,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		observer:  d.Observer,
		interval:  d.Interval,
		shortMode: d.ShortMode,
		now:       time.Now,
	}
	if m.notifier == nil {
		m.notifier = notify.NewStdout()
	}
	if m.metrics == nil {
		m.metrics = metrics.Nop{}
	}
	if m.shortMode == "" {
		m.shortMode = ShortLegacy
	}
	return m
}

// Run evaluates every open position once per interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	logger.Info("monitor: started, interval %s, short mode %s", m.interval, m.shortMode)
	for {
		select {
		case <-ctx.Done():
			logger.Info("monitor: stopped")
			return
		case <-t.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one pass and returns how many positions changed.
func (m *Monitor) Tick(ctx context.Context) int {
	defer func() {
		m.metrics.Tick()
		if m.observer != nil {
			m.observer.TouchTick(m.now())
		}
	}()

	positions, err := m.positions.ListPositions(ctx)
	if err != nil {
		logger.Error("monitor: list positions: %v", err)
		return 0
	}

	changed := 0
	for _, p := range positions {
		if ctx.Err() != nil {
			break
		}
		if p.Terminal() {
			continue
		}
		ok, err := m.evaluate(ctx, p)
		if err != nil {
			logger.Error("TP monitor error [%d] %s: %v", p.AccountID, p.ContractID, err)
			m.metrics.Failure(err)
			continue
		}
		if ok {
			changed++
		}
	}
	return changed
}

func (m *Monitor) hit(p models.Position, target, last float64) bool {
	if p.Side == models.SideShort && m.shortMode == ShortMirror {
		return last <= target
	}
	return last >= target
}

// stage picks the first open stage whose target was reached, 0 when none.
func (m *Monitor) stage(p models.Position, last float64) int {
	switch {
	case !p.TP1Closed && m.hit(p, p.TP1, last):
		return 1
	case !p.TP2Closed && m.hit(p, p.TP2, last):
		return 2
	case !p.TP3Closed && m.hit(p, p.TP3, last):
		return 3
	}
	return 0
}

var stageNames = [...]string{"", "tp1", "tp2", "tp3"}

// evaluate acts on at most one stage of p. It reports whether the record changed.
func (m *Monitor) evaluate(ctx context.Context, p models.Position) (bool, error) {
	if _, err := m.tokens.GetToken(ctx); err != nil {
		return false, nil
	}

	d, err := m.broker.GetContractDetails(ctx, p.ContractID)
	if err != nil || d.LastPrice <= 0 {
		logger.Debug("monitor: no last price for %s: %v", p.ContractID, err)
		return false, nil
	}
	last := d.LastPrice

	size, err := m.broker.PositionSize(ctx, p.AccountID, p.ContractID)
	if err != nil {
		logger.Warn("monitor: position size [%d] %s: %v", p.AccountID, p.ContractID, err)
		return false, nil
	}
	if size <= 0 {
		return false, nil
	}

	stage := m.stage(p, last)
	if stage == 0 {
		return false, nil
	}

	closeSize := helper.Third(size)
	if stage == 3 {
		closeSize = size
	}
	logger.Info("[%d] %s HIT on %s @ %.2f, closing %d of %d",
		p.AccountID, stageNames[stage], p.ContractID, last, closeSize, size)

	if err := m.broker.ClosePartialPosition(ctx, p.AccountID, p.ContractID, closeSize); err != nil {
		m.metrics.Close(stageNames[stage], "failed")
		return false, errors.Wrapf(err, "%s close", stageNames[stage])
	}
	m.metrics.Close(stageNames[stage], "ok")

	opened := p.OpenedAt
	var updated bool
	_, err = m.positions.UpdatePosition(ctx, p.ContractID, func(cur *models.Position) (bool, error) {
		if !cur.OpenedAt.Equal(opened) {
			// a new entry replaced the record while we were closing
			return false, nil
		}
		updated = cur.MarkClosed(stage, m.now())
		return updated, nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "persist %s", stageNames[stage])
	}
	if !updated {
		logger.Warn("[%d] %s: record for %s changed during close, flags left as is", p.AccountID, stageNames[stage], p.ContractID)
		return false, nil
	}

	symbol := p.Symbol
	if symbol == "" {
		symbol = p.ContractID
	}
	if stage == 3 {
		pnl := helper.ProfitPoints(p.EntryPrice, last, p.Side.Sign(), closeSize)
		if err := m.stats.RecordClose(ctx, symbol, pnl); err != nil {
			logger.Error("monitor: %v", err)
		}
		m.notifier.Sendf("🏁 %s %s fully closed acc=%d @ %.2f pnl=%.2f", symbol, p.Side, p.AccountID, last, pnl)
		return true, nil
	}
	m.notifier.Sendf("🎯 %s %s %s hit acc=%d @ %.2f, closed %d", symbol, p.Side, stageNames[stage], p.AccountID, last, closeSize)
	return true, nil
}
