package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/nabolaget/vibbobridge/internal/application/ports"
)

type entry struct {
	requests    int
	windowStart time.Time
	lockedUntil time.Time
}

// MemoryStore is an in-memory RequestThrottle suitable for a single-instance
// bridge. It caps SMS code requests per phone number: max requests within
// the cooldown window, then a cooldown of the same length.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]*entry
	max      int
	cooldown time.Duration
	now      func() time.Time
}

// NewMemoryStore returns a throttle with the given max requests and cooldown.
// maxRequests 0 disables throttling.
func NewMemoryStore(maxRequests, cooldownSeconds int) *MemoryStore {
	cd := time.Duration(cooldownSeconds) * time.Second
	if cd <= 0 {
		cd = 15 * time.Minute
	}
	return &MemoryStore{
		data:     make(map[string]*entry),
		max:      maxRequests,
		cooldown: cd,
		now:      time.Now,
	}
}

func (s *MemoryStore) IsThrottled(ctx context.Context, phoneNumber string) (throttled bool, retryAfterSeconds int) {
	if s.max <= 0 {
		return false, 0
	}
	s.mu.RLock()
	e, ok := s.data[phoneNumber]
	s.mu.RUnlock()
	if !ok || e == nil {
		return false, 0
	}
	now := s.now()
	if now.Before(e.lockedUntil) {
		secs := int(e.lockedUntil.Sub(now).Seconds())
		if secs < 1 {
			secs = 1
		}
		return true, secs
	}
	return false, 0
}

func (s *MemoryStore) Record(ctx context.Context, phoneNumber string) {
	if s.max <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.data[phoneNumber]
	if e == nil {
		e = &entry{}
		s.data[phoneNumber] = e
	}
	now := s.now()
	// Stale window: start counting fresh.
	if now.Sub(e.windowStart) > s.cooldown {
		e.requests = 0
		e.windowStart = now
		e.lockedUntil = time.Time{}
	}
	e.requests++
	if e.requests >= s.max {
		e.lockedUntil = now.Add(s.cooldown)
	}
}

func (s *MemoryStore) Clear(ctx context.Context, phoneNumber string) {
	if s.max <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, phoneNumber)
}

var _ ports.RequestThrottle = (*MemoryStore)(nil)
