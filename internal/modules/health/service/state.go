package service

import (
	"sync/atomic"
	"time"
)

// State is the process health read by /healthcheck, /livez and /readyz.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	storeOK      atomic.Bool
	lastTickUnix atomic.Int64 // unix seconds
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.storeOK.Store(true)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() && s.storeOK.Load() }

func (s *State) SetStoreOK(v bool) { s.storeOK.Store(v) }
func (s *State) StoreOK() bool     { return s.storeOK.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
