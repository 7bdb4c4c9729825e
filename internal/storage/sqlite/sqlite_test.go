package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"signal_trader/internal/models"
	"signal_trader/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, historyLimit int) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "trader.db")
	s, err := Open(context.Background(), dsn, historyLimit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 10)
	base := time.Unix(1_700_000_000, 0)
	now := base
	s.now = func() time.Time { return now }

	ok, err := s.SetNX(ctx, "dupe:CON.F.US.MES.M25_1", "1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "dupe:CON.F.US.MES.M25_1", "1", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	now = base.Add(5 * time.Second)
	ok, err = s.SetNX(ctx, "dupe:CON.F.US.MES.M25_1", "1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTokenMarker(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 10)

	_, ok, err := s.Get(ctx, "projectx:token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "projectx:token", "abc", time.Hour))
	v, ok, err := s.Get(ctx, "projectx:token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, s.Delete(ctx, "projectx:token"))
	_, ok, _ = s.Get(ctx, "projectx:token")
	assert.False(t, ok)
}

func TestPositions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 10)

	_, err := s.GetPosition(ctx, "CON.F.US.MES.M25")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	p := models.Position{ContractID: "CON.F.US.MES.M25", Symbol: "MES1!", EntryPrice: 5000, TP1: 5050, TP2: 5100, TP3: 5150, AccountID: 7}
	require.NoError(t, s.SavePosition(ctx, p))
	require.NoError(t, s.SavePosition(ctx, models.Position{ContractID: "CON.F.US.EP.M25"}))

	list, err := s.ListPositions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "CON.F.US.EP.M25", list[0].ContractID)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdatePosition(ctx, p.ContractID, func(p *models.Position) (bool, error) {
				p.PartialCloseSize++
				return true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetPosition(ctx, p.ContractID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.PartialCloseSize)
	assert.Equal(t, 5150.0, got.TP3)
}

func TestStatsHistory(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 2)

	st, err := s.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, st.Wins)
	assert.Empty(t, st.History)

	require.NoError(t, s.RecordTrade(ctx, "a", 10))
	require.NoError(t, s.RecordTrade(ctx, "b", 0))
	require.NoError(t, s.RecordTrade(ctx, "c", 2))

	st, err = s.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Wins)
	assert.Equal(t, int64(1), st.Losses)
	assert.InDelta(t, 12.0, st.CumulativePnL, 1e-9)
	assert.Equal(t, []string{"c", "b"}, st.History)
}
