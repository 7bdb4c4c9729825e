package storage

import (
	"context"
	"errors"
	"time"

	"signal_trader/internal/models"
)

var ErrNotFound = errors.New("storage: not found")

// Markers is a keyed string store with expiry. SetNX is one atomic
// check-and-set; callers never emulate it with Get followed by Set.
type Markers interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// UpdateFunc mutates p in place and reports whether anything changed.
type UpdateFunc func(p *models.Position) (bool, error)

// Positions holds one record per contract id. UpdatePosition runs fn while
// holding the key, so concurrent writers never lose each other's flags.
type Positions interface {
	SavePosition(ctx context.Context, p models.Position) error
	GetPosition(ctx context.Context, contractID string) (models.Position, error)
	ListPositions(ctx context.Context) ([]models.Position, error)
	UpdatePosition(ctx context.Context, contractID string, fn UpdateFunc) (models.Position, error)
}

// Stats keeps the win/loss counters, cumulative pnl and a bounded history.
// RecordTrade applies the three counters together.
type Stats interface {
	RecordTrade(ctx context.Context, entry string, pnl float64) error
	Stats(ctx context.Context, limit int) (models.StatsSnapshot, error)
}

type Store interface {
	Markers
	Positions
	Stats
	Ping(ctx context.Context) error
	Close() error
}
