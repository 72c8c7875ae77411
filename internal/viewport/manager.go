package viewport

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager is the single writer of the current viewport size. It observes
// size sources and publishes changes to subscribers.
type Manager struct {
	mu      sync.Mutex
	current Size
	subs    map[int]func(Size)
	nextID  int
	stops   []func()
	closed  bool
	logger  *zap.Logger
}

// NewManager creates a manager with an initial size.
func NewManager(initial Size, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		current: initial,
		subs:    make(map[int]func(Size)),
		logger:  logger,
	}
}

// Observe starts watching primary. When primary cannot observe sizes it
// degrades to fallback instead of failing; fallback may be nil.
func (m *Manager) Observe(primary, fallback Source) error {
	stop, err := primary.Watch(m.publish)
	if errors.Is(err, ErrUnsupported) && fallback != nil {
		m.logger.Info("element size observation unavailable, using fallback source")
		stop, err = fallback.Watch(m.publish)
	}
	if err != nil {
		return fmt.Errorf("observing viewport: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		stop()
		return nil
	}
	m.stops = append(m.stops, stop)
	return nil
}

// Subscribe registers fn to receive size changes. The returned function
// removes the subscription.
func (m *Manager) Subscribe(fn func(Size)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Current returns the latest published size.
func (m *Manager) Current() Size {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close stops every source and drops every subscriber.
func (m *Manager) Close() {
	m.mu.Lock()
	stops := m.stops
	m.stops = nil
	m.subs = make(map[int]func(Size))
	m.closed = true
	m.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}

// publish records size and notifies subscribers if it changed. Zero-area
// sizes are ignored; a collapsed container keeps its last layout.
func (m *Manager) publish(size Size) {
	if size.IsZero() {
		return
	}

	m.mu.Lock()
	if m.closed || size == m.current {
		m.mu.Unlock()
		return
	}
	m.current = size
	subs := make([]func(Size), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.logger.Debug("viewport resized",
		zap.Float64("width", size.Width),
		zap.Float64("height", size.Height))
	for _, fn := range subs {
		fn(size)
	}
}
