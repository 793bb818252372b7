package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepBatch caps how many idle keys one call inspects.
const sweepBatch = 16

type bucket struct {
	window time.Duration
	ev     []time.Time
}

// Memory is a process-local sliding-window limiter. It keeps the timestamps
// of recorded actions per key and forgets keys once their window is empty.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*bucket), now: time.Now}
}

// WithClock replaces the time source, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Performed(_ context.Context, key string, max int, window time.Duration) error {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(now)

	b := m.buckets[key]
	if b == nil {
		b = &bucket{}
	}
	b.window = window
	cut := 0
	for cut < len(b.ev) && !b.ev[cut].After(now.Add(-window)) {
		cut++
	}
	b.ev = b.ev[cut:]
	if len(b.ev) >= max {
		if len(b.ev) == 0 {
			delete(m.buckets, key)
			return &LimitExceededError{Key: key, Max: max, Window: window, RetryAfter: window}
		}
		m.buckets[key] = b
		return &LimitExceededError{Key: key, Max: max, Window: window, RetryAfter: b.ev[0].Add(window).Sub(now)}
	}
	b.ev = append(b.ev, now)
	m.buckets[key] = b
	return nil
}

// sweep drops up to sweepBatch keys whose newest action has left its window.
func (m *Memory) sweep(now time.Time) {
	n := 0
	for k, b := range m.buckets {
		if n++; n > sweepBatch {
			return
		}
		if len(b.ev) == 0 || !b.ev[len(b.ev)-1].After(now.Add(-b.window)) {
			delete(m.buckets, k)
		}
	}
}

// Len reports how many keys are tracked.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Reset forgets every recorded action.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.buckets = make(map[string]*bucket)
	m.mu.Unlock()
}
