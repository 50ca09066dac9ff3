package shutdown

import (
	"context"
	"sync"
	"time"

	"github.com/memed/arena/pkg/logger"
)

// Handler releases one resource. It must return once ctx is done.
type Handler func(ctx context.Context) error

type callback struct {
	name string
	fn   Handler
}

// Manager runs registered cleanup callbacks concurrently on shutdown.
type Manager struct {
	callbacks []callback
	mu        sync.Mutex
	once      sync.Once
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown registers a named callback.
func (m *Manager) OnShutdown(name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback{name: name, fn: handler})
}

// Shutdown runs every callback once and waits for them or for timeout.
// Later calls are no-ops.
func (m *Manager) Shutdown(timeout time.Duration) {
	m.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		m.run(ctx)
	})
}

func (m *Manager) run(ctx context.Context) {
	m.mu.Lock()
	callbacks := append([]callback(nil), m.callbacks...)
	m.mu.Unlock()

	if len(callbacks) == 0 {
		return
	}
	logger.Infof("shutting down %d components", len(callbacks))

	var wg sync.WaitGroup
	for _, cb := range callbacks {
		wg.Add(1)
		go func(cb callback) {
			defer wg.Done()
			if err := cb.fn(ctx); err != nil {
				logger.WithField("component", cb.name).Warnf("shutdown: %v", err)
			}
		}(cb)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-ctx.Done():
		logger.Warnf("shutdown timed out: %v", ctx.Err())
	}
}
