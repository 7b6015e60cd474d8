package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Memory keeps one bucket per key in process memory. Buckets untouched for
// idle are dropped on the next Allow.
type Memory struct {
	policy Policy
	idle   time.Duration
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

var _ Limiter = (*Memory)(nil)

func NewMemory(p Policy) (*Memory, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Memory{
		policy:  p,
		idle:    10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}, nil
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.pruneLocked(now)

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(m.policy.perSecond()), m.policy.Burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1), nil
}

func (m *Memory) pruneLocked(now time.Time) {
	if now.Sub(m.lastPrune) < m.idle {
		return
	}
	m.lastPrune = now
	for k, b := range m.buckets {
		if now.Sub(b.lastSeen) > m.idle {
			delete(m.buckets, k)
		}
	}
}
