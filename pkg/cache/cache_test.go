package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(ttl time.Duration) (*InMemoryCache[string, int], *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewInMemoryCache[string, int](ttl)
	c.now = clock.Now
	return c, clock
}

func TestGetSetExpiry(t *testing.T) {
	c, clock := newTestCache(10 * time.Second)
	defer c.Stop()

	c.Set("battles", 3, 0)
	v, ok := c.Get("battles")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	clock.Advance(10 * time.Second)
	_, ok = c.Get("battles")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestCustomTTLAndCleanup(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	defer c.Stop()

	c.Set("short", 1, time.Second)
	c.Set("long", 2, 0)
	clock.Advance(2 * time.Second)
	c.cleanup()

	assert.Equal(t, 1, c.Size())
	v, ok := c.Get("long")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestDeleteFuncAndClear(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	defer c.Stop()

	c.Set("stats:a", 1, 0)
	c.Set("stats:b", 2, 0)
	c.Set("battles", 3, 0)

	n := c.DeleteFunc(func(k string) bool { return len(k) > 6 && k[:6] == "stats:" })
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Size())

	c.Delete("battles")
	assert.Equal(t, 0, c.Size())

	c.Set("x", 1, 0)
	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestStopIdempotent(t *testing.T) {
	c := NewInMemoryCache[int, int](time.Second)
	c.Stop()
	c.Stop()
}
