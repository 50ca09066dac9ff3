package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is satisfied by every limiter in this package.
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	GetRemaining() int
	GetResetTime() time.Time
}

// Well-known limiter names.
const (
	RPCRead   = "rpc:read"
	APIUpload = "api:upload"
	APIWrite  = "api:comment"
)

// TokenBucket refills refillRate tokens per second up to capacity.
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int
	windowSize time.Duration // fallback wait when refillRate is 0
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity, refillRate int, windowSize time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		windowSize: windowSize,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	add := int(elapsed.Seconds() * float64(tb.refillRate))
	if add > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+add)
		tb.lastRefill = now
	}
}

// Allow takes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is taken or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		wait := tb.windowSize
		if tb.refillRate > 0 {
			wait = time.Second / time.Duration(tb.refillRate)
		}
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// GetRemaining returns the tokens currently available.
func (tb *TokenBucket) GetRemaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// GetResetTime estimates when the bucket is full again.
func (tb *TokenBucket) GetResetTime() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens < tb.capacity && tb.refillRate > 0 {
		needed := tb.capacity - tb.tokens
		return time.Now().Add(time.Duration(float64(needed) / float64(tb.refillRate) * float64(time.Second)))
	}
	return time.Now()
}

// SlidingWindow allows at most limit events per windowSize.
type SlidingWindow struct {
	limit      int
	windowSize time.Duration
	requests   []time.Time
	mu         sync.Mutex
}

// NewSlidingWindow creates an empty window.
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{limit: limit, windowSize: windowSize}
}

func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	sw.requests = sw.requests[i:]
}

// Allow records an event if the window has room.
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	now := time.Now()
	sw.prune(now)
	if len(sw.requests) >= sw.limit {
		return false
	}
	sw.requests = append(sw.requests, now)
	return true
}

// Wait blocks until the window has room or ctx is done.
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}
		sw.mu.Lock()
		wait := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			if w := sw.windowSize - time.Since(sw.requests[0]); w > 0 {
				wait = w
			}
		}
		sw.mu.Unlock()

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// GetRemaining returns how many events still fit in the window.
func (sw *SlidingWindow) GetRemaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.prune(time.Now())
	return max(0, sw.limit-len(sw.requests))
}

// GetResetTime returns when the oldest event leaves the window.
func (sw *SlidingWindow) GetResetTime() time.Time {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if len(sw.requests) == 0 {
		return time.Now()
	}
	return sw.requests[0].Add(sw.windowSize)
}

// Limits configures a Manager.
type Limits struct {
	RPCPerSecond   int // token bucket for chain reads
	UploadsPerMin  int // sliding window for /upload
	CommentsPerMin int // sliding window for POST /comment
}

// Manager looks limiters up by name.
type Manager struct {
	limiters map[string]RateLimiter
	mu       sync.RWMutex
}

// NewManager registers the arena's limiters. Zero values disable a limiter.
func NewManager(l Limits) *Manager {
	m := &Manager{limiters: make(map[string]RateLimiter)}
	if l.RPCPerSecond > 0 {
		m.limiters[RPCRead] = NewTokenBucket(l.RPCPerSecond, l.RPCPerSecond, time.Second)
	}
	if l.UploadsPerMin > 0 {
		m.limiters[APIUpload] = NewSlidingWindow(l.UploadsPerMin, time.Minute)
	}
	if l.CommentsPerMin > 0 {
		m.limiters[APIWrite] = NewSlidingWindow(l.CommentsPerMin, time.Minute)
	}
	return m
}

// Set registers or replaces a limiter.
func (m *Manager) Set(name string, l RateLimiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = l
}

// Get returns the named limiter, or nil when none is configured.
func (m *Manager) Get(name string) RateLimiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limiters[name]
}

// Wait blocks on the named limiter; unknown names never block.
func (m *Manager) Wait(ctx context.Context, name string) error {
	if l := m.Get(name); l != nil {
		return l.Wait(ctx)
	}
	return nil
}

// Allow reports whether the named limiter admits one more event.
func (m *Manager) Allow(name string) bool {
	if l := m.Get(name); l != nil {
		return l.Allow()
	}
	return true
}
