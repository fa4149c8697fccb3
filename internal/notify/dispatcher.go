// Package notify delivers emitted signals to the configured notifiers.
// Emitters never block: signals are queued on a bounded buffer and dropped,
// with a warning and a counter, when the buffer is full.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/metrics"
)

const defaultDeliveryTimeout = 10 * time.Second

// Notifier delivers one signal to an external channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, signal models.Signal) error
}

// Dispatcher fans queued signals out to every notifier from one goroutine.
type Dispatcher struct {
	queue     chan models.Signal
	notifiers []Notifier
	timeout   time.Duration
	metrics   *metrics.Collector
	logger    *zap.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics counts emitted and dropped signals on c.
func WithMetrics(c *metrics.Collector) Option { return func(d *Dispatcher) { d.metrics = c } }

// WithDeliveryTimeout bounds every Notify call.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher starts a dispatcher with a queue of buffer signals.
func NewDispatcher(buffer int, notifiers []Notifier, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 1
	}
	d := &Dispatcher{
		queue:     make(chan models.Signal, buffer),
		notifiers: notifiers,
		timeout:   defaultDeliveryTimeout,
		logger:    logger,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	go d.run()
	return d
}

// Emit queues signal for delivery without blocking.
func (d *Dispatcher) Emit(signal models.Signal) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(signal, "dispatcher closed")
		return
	}

	select {
	case d.queue <- signal:
		d.metrics.SignalEmitted(signal.Kind)
	default:
		d.drop(signal, "queue full")
	}
}

// Dropped reports how many signals were discarded so far.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting signals and waits until the queued ones are
// delivered or ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for signal := range d.queue {
		d.deliver(signal)
	}
}

func (d *Dispatcher) deliver(signal models.Signal) {
	for _, n := range d.notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := n.Notify(ctx, signal)
		cancel()
		if err != nil {
			d.logger.Error("signal delivery failed",
				zap.String("notifier", n.Name()),
				zap.String("kind", string(signal.Kind)),
				zap.String("key", signal.Key()),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) drop(signal models.Signal, reason string) {
	d.dropped.Add(1)
	d.metrics.SignalDropped()
	d.logger.Warn("signal dropped",
		zap.String("reason", reason),
		zap.String("kind", string(signal.Kind)),
		zap.String("key", signal.Key()))
}
