package channel

import (
	"errors"
	"sync"

	"github.com/djlord-it/devtrigger/internal/domain"
)

// ErrBufferFull is returned when the queue has no free slot.
var ErrBufferFull = errors.New("event bus buffer full")

// ErrClosed is returned when emitting into a closed bus.
var ErrClosed = errors.New("event bus closed")

// MetricsSink receives buffer gauges. Methods must not block.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()
}

type Option func(*EventBus)

func WithMetrics(m MetricsSink) Option {
	return func(b *EventBus) {
		b.metrics = m
	}
}

// EventBus is a bounded in-memory queue of trigger events.
type EventBus struct {
	mu      sync.RWMutex
	ch      chan domain.TriggerEvent
	closed  bool
	metrics MetricsSink
}

func NewEventBus(buffer int, opts ...Option) *EventBus {
	b := &EventBus{
		ch: make(chan domain.TriggerEvent, buffer),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// TryEmit queues the event without waiting. It never blocks the caller.
func (b *EventBus) TryEmit(event domain.TriggerEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	select {
	case b.ch <- event:
		b.updateSize()
		return nil
	default:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBufferFull
	}
}

// Close stops accepting events. Buffered events stay readable from Channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}

func (b *EventBus) Channel() <-chan domain.TriggerEvent {
	return b.ch
}

func (b *EventBus) Len() int {
	return len(b.ch)
}

func (b *EventBus) updateSize() {
	if b.metrics != nil {
		b.metrics.BufferSizeUpdate(len(b.ch))
	}
}
