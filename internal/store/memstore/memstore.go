package memstore

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is an in-process TTL store. Expired entries are dropped lazily on
// read and by Sweep.
type Store struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{data: make(map[string]entry), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl <= 0 {
		delete(s.data, key)
		return nil
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = entry{value: v, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return nil, false, nil
	}
	v := make([]byte, len(e.value))
	copy(v, e.value)
	return v, true, nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.data {
		if !now.Before(e.expiresAt) {
			delete(s.data, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
