package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"signal_trader/internal/models"
	"signal_trader/internal/storage"
)

type marker struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

// Store is the in-process backend. Markers share one mutex; positions are
// locked per contract id for read-modify-write.
type Store struct {
	now func() time.Time

	mu      sync.Mutex
	markers map[string]marker

	posMu     sync.RWMutex
	positions map[string]models.Position
	keyLocks  map[string]*sync.Mutex

	statsMu      sync.Mutex
	stats        models.StatsSnapshot
	historyLimit int
}

func New(historyLimit int) *Store {
	return &Store{
		now:          time.Now,
		markers:      make(map[string]marker),
		positions:    make(map[string]models.Position),
		keyLocks:     make(map[string]*sync.Mutex),
		historyLimit: historyLimit,
	}
}

// WithClock swaps the time source, used to expire markers in tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) live(m marker) bool {
	return m.expiresAt.IsZero() || s.now().Before(m.expiresAt)
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *Store) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.markers[key]; ok && s.live(m) {
		return false, nil
	}
	s.markers[key] = marker{value: value, expiresAt: s.expiry(ttl)}
	return true, nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markers[key]
	if !ok {
		return "", false, nil
	}
	if !s.live(m) {
		delete(s.markers, key)
		return "", false, nil
	}
	return m.value, true, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.markers[key] = marker{value: value, expiresAt: s.expiry(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.markers, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) lockFor(contractID string) *sync.Mutex {
	s.posMu.Lock()
	defer s.posMu.Unlock()
	l, ok := s.keyLocks[contractID]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[contractID] = l
	}
	return l
}

func (s *Store) SavePosition(_ context.Context, p models.Position) error {
	l := s.lockFor(p.ContractID)
	l.Lock()
	defer l.Unlock()

	s.posMu.Lock()
	s.positions[p.ContractID] = p
	s.posMu.Unlock()
	return nil
}

func (s *Store) GetPosition(_ context.Context, contractID string) (models.Position, error) {
	s.posMu.RLock()
	defer s.posMu.RUnlock()
	p, ok := s.positions[contractID]
	if !ok {
		return models.Position{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPositions(_ context.Context) ([]models.Position, error) {
	s.posMu.RLock()
	out := make([]models.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	s.posMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ContractID < out[j].ContractID })
	return out, nil
}

func (s *Store) UpdatePosition(_ context.Context, contractID string, fn storage.UpdateFunc) (models.Position, error) {
	l := s.lockFor(contractID)
	l.Lock()
	defer l.Unlock()

	s.posMu.RLock()
	p, ok := s.positions[contractID]
	s.posMu.RUnlock()
	if !ok {
		return models.Position{}, storage.ErrNotFound
	}

	changed, err := fn(&p)
	if err != nil {
		return models.Position{}, err
	}
	if changed {
		s.posMu.Lock()
		s.positions[contractID] = p
		s.posMu.Unlock()
	}
	return p, nil
}

func (s *Store) RecordTrade(_ context.Context, entry string, pnl float64) error {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.stats.History = append([]string{entry}, s.stats.History...)
	if s.historyLimit > 0 && len(s.stats.History) > s.historyLimit {
		s.stats.History = s.stats.History[:s.historyLimit]
	}
	if models.IsWin(pnl) {
		s.stats.Wins++
	} else {
		s.stats.Losses++
	}
	s.stats.CumulativePnL += pnl
	return nil
}

func (s *Store) Stats(_ context.Context, limit int) (models.StatsSnapshot, error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	out := s.stats
	n := len(s.stats.History)
	if limit > 0 && limit < n {
		n = limit
	}
	out.History = append([]string(nil), s.stats.History[:n]...)
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
