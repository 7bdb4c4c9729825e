package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"signal_trader/internal/models"
	"signal_trader/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestSetNXExpires(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	s := New(10).WithClock(clk.now)

	ok, err := s.SetNX(ctx, "dupe:X_1", "1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "dupe:X_1", "1", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	clk.advance(5 * time.Second)
	ok, err = s.SetNX(ctx, "dupe:X_1", "1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetNXConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := New(10)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.SetNX(ctx, "k", "v", time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	s := New(10).WithClock(clk.now)

	require.NoError(t, s.Set(ctx, "projectx:token", "abc", time.Hour))
	v, ok, err := s.Get(ctx, "projectx:token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	clk.advance(time.Hour)
	_, ok, _ = s.Get(ctx, "projectx:token")
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "forever", "x", 0))
	clk.advance(1000 * time.Hour)
	_, ok, _ = s.Get(ctx, "forever")
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "forever"))
	_, ok, _ = s.Get(ctx, "forever")
	assert.False(t, ok)
}

func TestUpdatePositionNoLostWrites(t *testing.T) {
	ctx := context.Background()
	s := New(10)
	require.NoError(t, s.SavePosition(ctx, models.Position{ContractID: "CON.F.US.MES.M25"}))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdatePosition(ctx, "CON.F.US.MES.M25", func(p *models.Position) (bool, error) {
				p.PartialCloseSize++
				return true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := s.GetPosition(ctx, "CON.F.US.MES.M25")
	require.NoError(t, err)
	assert.Equal(t, 100, p.PartialCloseSize)
}

func TestUpdatePositionMissing(t *testing.T) {
	_, err := New(10).UpdatePosition(context.Background(), "nope", func(*models.Position) (bool, error) {
		return true, nil
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdatePositionUnchangedIsNotWritten(t *testing.T) {
	ctx := context.Background()
	s := New(10)
	require.NoError(t, s.SavePosition(ctx, models.Position{ContractID: "A", TP1: 1}))

	_, err := s.UpdatePosition(ctx, "A", func(p *models.Position) (bool, error) {
		p.TP1 = 99
		return false, nil
	})
	require.NoError(t, err)

	p, _ := s.GetPosition(ctx, "A")
	assert.Equal(t, 1.0, p.TP1)
}

func TestRecordTradeAndHistoryBound(t *testing.T) {
	ctx := context.Background()
	s := New(2)

	require.NoError(t, s.RecordTrade(ctx, "a", 10))
	require.NoError(t, s.RecordTrade(ctx, "b", -4))
	require.NoError(t, s.RecordTrade(ctx, "c", 1.5))

	st, err := s.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Wins)
	assert.Equal(t, int64(1), st.Losses)
	assert.InDelta(t, 7.5, st.CumulativePnL, 1e-9)
	assert.Equal(t, []string{"c", "b"}, st.History)

	st, _ = s.Stats(ctx, 1)
	assert.Equal(t, []string{"c"}, st.History)
}
