package scene

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultTickInterval is roughly one animation frame.
const DefaultTickInterval = 16 * time.Millisecond

// ErrStopped is returned when sending to a loop that is no longer running.
var ErrStopped = errors.New("scene loop stopped")

// FrameSink receives the scene after each visible change. It runs on the
// loop goroutine and must not retain the scene.
type FrameSink func(*Scene)

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithTickInterval sets the time between simulation ticks.
func WithTickInterval(d time.Duration) LoopOption {
	return func(l *Loop) { l.interval = d }
}

// WithLoopLogger sets the loop logger.
func WithLoopLogger(logger *zap.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

// Loop owns a Scene on a single goroutine. Other goroutines change the
// scene by sending events, so positions and selection have one writer.
type Loop struct {
	scene    *Scene
	sink     FrameSink
	events   chan func(*Scene)
	done     chan struct{}
	interval time.Duration
	logger   *zap.Logger
}

// NewLoop creates a loop for s. sink may be nil.
func NewLoop(s *Scene, sink FrameSink, opts ...LoopOption) *Loop {
	l := &Loop{
		scene:    s,
		sink:     sink,
		events:   make(chan func(*Scene), 64),
		done:     make(chan struct{}),
		interval: DefaultTickInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes events and ticks until ctx is canceled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	dirty := true
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("scene loop stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case fn := <-l.events:
			fn(l.scene)
			dirty = true
		case <-ticker.C:
			moved := l.scene.Tick()
			if (moved || dirty) && l.sink != nil {
				l.sink(l.scene)
			}
			dirty = false
		}
	}
}

// Send queues fn to run on the loop goroutine. Events run in the order
// they are sent, each one completely between two ticks.
func (l *Loop) Send(ctx context.Context, fn func(*Scene)) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.events <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
