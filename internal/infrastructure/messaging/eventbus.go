// Package messaging implements the in-process event bus that carries domain
// events from command handlers to notification subscribers.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TayalAditya/TheAttendioBot/internal/domain/shared"
)

// ErrEventBusClosed is returned after Close.
var ErrEventBusClosed = errors.New("event bus is closed")

// Observer receives the outcome of every handler execution.
type Observer interface {
	ObserveEvent(eventType string, duration time.Duration, err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus dispatches events to subscribers in this process.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[shared.EventType][]shared.EventHandler
	async    bool
	slots    chan struct{}
	logger   *zap.Logger
	observer Observer
	closed   bool
	done     chan struct{}
	inflight sync.WaitGroup
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on the worker pool instead of the publisher's goroutine.
	AsyncMode bool

	// WorkerPoolSize caps concurrent async handlers.
	WorkerPoolSize int

	Logger   *zap.Logger
	Observer Observer
}

// DefaultInMemoryEventBusConfig returns async mode with 10 workers.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	return &InMemoryEventBus{
		handlers: make(map[shared.EventType][]shared.EventHandler),
		async:    config.AsyncMode,
		slots:    make(chan struct{}, config.WorkerPoolSize),
		logger:   config.Logger.Named("eventbus"),
		observer: config.Observer,
		done:     make(chan struct{}),
	}
}

// Subscribe registers handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.add(eventType, handler)
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.add(anyEvent, handler)
}

// anyEvent keys the handlers that receive every event.
const anyEvent shared.EventType = ""

func (b *InMemoryEventBus) add(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("eventbus: nil handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("handler subscribed", zap.String("event_type", string(eventType)))
	return nil
}

// Publish hands event to its subscribers. Handler errors are logged and
// observed, never returned.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("eventbus: nil event")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	targets := append(append([]shared.EventHandler(nil), b.handlers[event.EventType()]...), b.handlers[anyEvent]...)
	// Counted under the read lock so Close waits for them.
	if b.async {
		b.inflight.Add(len(targets))
	}
	b.mu.RUnlock()

	for _, h := range targets {
		if !b.async {
			b.execute(event, h)
			continue
		}
		go func(h shared.EventHandler) {
			defer b.inflight.Done()
			select {
			case b.slots <- struct{}{}:
				defer func() { <-b.slots }()
				b.execute(event, h)
			case <-b.done:
			}
		}(h)
	}
	return nil
}

func (b *InMemoryEventBus) execute(event shared.Event, handler shared.EventHandler) {
	began := time.Now()
	err := safeCall(handler, event)
	duration := time.Since(began)

	if b.observer != nil {
		b.observer.ObserveEvent(string(event.EventType()), duration, err)
	}
	if err != nil {
		b.logger.Error("event handler failed",
			zap.String("event_type", string(event.EventType())),
			zap.String("aggregate_id", event.AggregateID()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	}
}

func safeCall(handler shared.EventHandler, event shared.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return handler(event)
}

// Close stops accepting events and waits for running handlers.
// Handlers still queued for a worker slot are dropped.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.inflight.Wait()
	b.logger.Info("event bus closed")
	return nil
}
