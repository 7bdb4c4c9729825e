package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type flakyStore struct{ fail atomic.Bool }

func (f *flakyStore) Ping(context.Context) error {
	if f.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

type healthFlag struct {
	mu    sync.Mutex
	calls int
	ok    bool
}

func (h *healthFlag) SetStoreOK(ok bool) {
	h.mu.Lock()
	h.calls++
	h.ok = ok
	h.mu.Unlock()
}

func (h *healthFlag) get() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls, h.ok
}

func TestPingStoreReportsHealth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &flakyStore{}
	store.fail.Store(true)
	h := &healthFlag{ok: true}
	go PingStore(ctx, store, 5*time.Millisecond, h)

	assert.Eventually(t, func() bool {
		n, ok := h.get()
		return n > 0 && !ok
	}, time.Second, 5*time.Millisecond)

	store.fail.Store(false)
	assert.Eventually(t, func() bool {
		_, ok := h.get()
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestKeepAliveStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		KeepAlive(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keep-alive did not stop")
	}
}
