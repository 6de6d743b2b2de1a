package event

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/Iron-Ham/flake/internal/logging"
)

// Handler is a function that handles an event.
type Handler func(Event)

// allEvents is the subscription key for handlers registered with SubscribeAll.
const allEvents = "*"

// Bus is a synchronous pub-sub event bus. Handlers run on the publishing
// goroutine, in registration order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler // eventType -> handlers
	logger   *logging.Logger
}

// NewBus creates a new event bus. Handler panics are recovered and reported
// to logger; a nil logger drops them.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) {
	b.Subscribe(allEvents, handler)
}

// Publish dispatches an event. Handlers subscribed to the event's type run
// first, then SubscribeAll handlers. A panicking handler is logged and
// skipped.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	specific := append([]Handler(nil), b.handlers[event.EventType()]...)
	wildcard := append([]Handler(nil), b.handlers[allEvents]...)
	b.mu.RUnlock()

	for _, handler := range specific {
		b.safeCall(handler, event)
	}
	for _, handler := range wildcard {
		b.safeCall(handler, event)
	}
}

func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", event.EventType(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	handler(event)
}
