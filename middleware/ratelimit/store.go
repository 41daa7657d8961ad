package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store keeps a fixed-window counter per key. Implementations backed by a
// network service return errors; the middleware lets requests through when
// that happens.
type Store interface {
	Get(ctx context.Context, key string) (count int, resetTime time.Time, exists bool, err error)
	Set(ctx context.Context, key string, count int, resetTime time.Time) error
	Increment(ctx context.Context, key string, resetTime time.Time) (count int, err error)
	Reset(ctx context.Context, key string) error
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*entry
	stop chan struct{}
	once sync.Once
}

type entry struct {
	count     int
	resetTime time.Time
}

func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		data: make(map[string]*entry),
		stop: make(chan struct{}),
	}

	go store.cleanup()

	return store
}

func (s *MemoryStore) Get(_ context.Context, key string) (int, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, exists := s.data[key]; exists && time.Now().Before(e.resetTime) {
		return e.count, e.resetTime, true, nil
	}

	return 0, time.Time{}, false, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, count int, resetTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = &entry{
		count:     count,
		resetTime: resetTime,
	}
	return nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, resetTime time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.data[key]; exists && time.Now().Before(e.resetTime) {
		e.count++
		return e.count, nil
	}

	s.data[key] = &entry{
		count:     1,
		resetTime: resetTime,
	}

	return 1, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.data {
		if now.After(entry.resetTime) {
			delete(s.data, key)
		}
	}
}
