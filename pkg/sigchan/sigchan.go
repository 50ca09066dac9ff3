package sigchan

import "sync"

// Chan is a non-blocking signal channel. It carries no data; a pending
// signal absorbs later ones until it is received.
type Chan struct {
	c chan struct{}
}

// New creates a signal channel with the given buffer.
func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit signals without blocking.
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C returns the receive side for select.
func (c *Chan) C() <-chan struct{} {
	return c.c
}

// Broker fans one Emit out to every subscriber.
type Broker struct {
	mu   sync.RWMutex
	subs map[*Chan]struct{}
}

// NewBroker creates a broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*Chan]struct{})}
}

// Subscribe registers a new signal channel. The returned cancel func
// unregisters it and must be called when the subscriber goes away.
func (b *Broker) Subscribe() (*Chan, func()) {
	ch := New(1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// Emit signals every subscriber without blocking.
func (b *Broker) Emit() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		ch.Emit()
	}
}

// Len returns the number of live subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
