package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/spawnd/internal/metrics"
)

// DefaultQueueSize bounds the number of events waiting for delivery.
const DefaultQueueSize = 256

// DefaultSendTimeout bounds a single Send to one sink.
const DefaultSendTimeout = 5 * time.Second

// Dispatcher delivers events to its sinks from a single goroutine.
// Publish never blocks; a full queue drops the event.
type Dispatcher struct {
	sinks   []Sink
	queue   chan Event
	log     *slog.Logger
	timeout time.Duration

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func NewDispatcher(sinks []Sink, size int, log *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		sinks:   sinks,
		queue:   make(chan Event, size),
		log:     log,
		timeout: DefaultSendTimeout,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues e. It returns false when the event was dropped.
func (d *Dispatcher) Publish(e Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- e:
		return true
	default:
		metrics.IncHistoryDropped()
		d.log.Debug("history queue full, event dropped", "type", e.Type, "name", e.Name)
		return false
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		for _, s := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			if err := s.Send(ctx, e); err != nil {
				d.log.Warn("history sink send failed", "type", e.Type, "name", e.Name, "error", err)
			}
			cancel()
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered,
// then closes every sink that is an io.Closer. If ctx ends first Close
// returns its error and the sinks are closed once the worker has drained,
// never under an in-flight Send. Later calls return the first result.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		select {
		case <-d.done:
			d.closeErr = d.closeSinks()
		case <-ctx.Done():
			d.closeErr = ctx.Err()
			go func() {
				<-d.done
				if err := d.closeSinks(); err != nil {
					d.log.Warn("history sink close failed", "error", err)
				}
			}()
		}
	})
	return d.closeErr
}

func (d *Dispatcher) closeSinks() error {
	var errs []error
	for _, s := range d.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
