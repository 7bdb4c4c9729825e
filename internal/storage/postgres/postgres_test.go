package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"signal_trader/internal/models"
	"signal_trader/internal/storage"
	"signal_trader/pkg/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Set TRADER_TEST_PG_DSN to run these against a scratch database.
func newStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TRADER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TRADER_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn})
	require.NoError(t, err)

	s := New(db.NewPgTxManager(pool), 2)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	_, err = s.db.Conn().Exec(ctx, `TRUNCATE kv_markers, open_positions, trade_stats, trade_history`)
	require.NoError(t, err)
	return s
}

func TestSetNXAndMarkers(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	ok, err := s.SetNX(ctx, "dupe:MES_1", "1", 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "dupe:MES_1", "1", 200*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(300 * time.Millisecond)
	ok, err = s.SetNX(ctx, "dupe:MES_1", "1", 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Set(ctx, "projectx:token", "abc", time.Hour))
	v, found, err := s.Get(ctx, "projectx:token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc", v)

	require.NoError(t, s.Delete(ctx, "projectx:token"))
	_, found, err = s.Get(ctx, "projectx:token")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConcurrentPositionUpdates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.GetPosition(ctx, "CON.F.US.MES.M25")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.SavePosition(ctx, models.Position{ContractID: "CON.F.US.MES.M25", EntryPrice: 5000}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.UpdatePosition(ctx, "CON.F.US.MES.M25", func(p *models.Position) (bool, error) {
				p.PartialCloseSize++
				if i == 0 {
					p.TP1Closed = true
				}
				return true, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	p, err := s.GetPosition(ctx, "CON.F.US.MES.M25")
	require.NoError(t, err)
	assert.Equal(t, 10, p.PartialCloseSize)
	assert.True(t, p.TP1Closed)
}

func TestRecordTradeTrimsHistory(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.RecordTrade(ctx, "A - WIN - PnL: $10.00", 10))
	require.NoError(t, s.RecordTrade(ctx, "B - LOSS - PnL: $-5.00", -5))
	require.NoError(t, s.RecordTrade(ctx, "C - WIN - PnL: $1.00", 1))

	st, err := s.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Wins)
	assert.Equal(t, int64(1), st.Losses)
	assert.InDelta(t, 6.0, st.CumulativePnL, 1e-9)
	assert.Equal(t, []string{"C - WIN - PnL: $1.00", "B - LOSS - PnL: $-5.00"}, st.History)
}
