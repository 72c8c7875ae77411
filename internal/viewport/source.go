package viewport

import (
	"sync"
	"time"
)

// Source reports viewport sizes. Watch starts delivering sizes to publish
// and returns a function that stops delivery.
type Source interface {
	Watch(publish func(Size)) (stop func(), err error)
}

// StaticSource reports one fixed size.
type StaticSource Size

// Watch publishes the static size once.
func (s StaticSource) Watch(publish func(Size)) (func(), error) {
	publish(Size(s))
	return func() {}, nil
}

// ChanSource relays sizes pushed by a host, such as resize notifications
// received from a browser.
type ChanSource struct {
	mu          sync.Mutex
	ch          chan Size
	unsupported bool
}

// NewChanSource creates a ChanSource with a small buffer.
func NewChanSource() *ChanSource {
	return &ChanSource{ch: make(chan Size, 16)}
}

// SetUnsupported marks the source as unable to observe sizes. Subsequent
// Watch calls fail with ErrUnsupported.
func (s *ChanSource) SetUnsupported(unsupported bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsupported = unsupported
}

// Push offers a new size. When the buffer is full the oldest pending size is
// discarded since only the latest size matters.
func (s *ChanSource) Push(size Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		select {
		case s.ch <- size:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// Watch relays pushed sizes until stop is called.
func (s *ChanSource) Watch(publish func(Size)) (func(), error) {
	s.mu.Lock()
	if s.unsupported {
		s.mu.Unlock()
		return nil, ErrUnsupported
	}
	s.mu.Unlock()

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-done:
				return
			case size := <-s.ch:
				publish(size)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}, nil
}

// PollSource samples a size function on a fixed interval. It suits hosts
// that cannot deliver resize notifications.
type PollSource struct {
	Interval time.Duration
	Size     func() (Size, error)
}

// Watch publishes the current size immediately and then every Interval.
func (s PollSource) Watch(publish func(Size)) (func(), error) {
	if s.Size == nil {
		return nil, ErrUnsupported
	}
	first, err := s.Size()
	if err != nil {
		return nil, err
	}
	publish(first)

	interval := s.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if size, err := s.Size(); err == nil {
					publish(size)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}, nil
}
