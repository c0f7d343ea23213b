package usecase

import (
	"context"
	"sync"

	"github.com/fastygo/settlement/domain"
)

// Outcome describes what settling a single provider event did.
type Outcome struct {
	Action         string
	ContributionID *string
	Reason         string
	Audit          []domain.AuditRecord
}

// EventHandler settles one admitted provider event.
type EventHandler func(ctx context.Context, event *domain.ProviderEvent) (Outcome, error)

// EventDispatcher routes provider events to handlers by event type.
type EventDispatcher struct {
	handlers map[string]EventHandler
	mu       sync.RWMutex
}

func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[string]EventHandler),
	}
}

func (d *EventDispatcher) Register(handler EventHandler, eventTypes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, eventType := range eventTypes {
		d.handlers[eventType] = handler
	}
}

// Dispatch runs the handler registered for the event type. handled is false for unknown types.
func (d *EventDispatcher) Dispatch(ctx context.Context, event *domain.ProviderEvent) (outcome Outcome, handled bool, err error) {
	d.mu.RLock()
	handler, ok := d.handlers[event.Type]
	d.mu.RUnlock()
	if !ok {
		return Outcome{}, false, nil
	}
	outcome, err = handler(ctx, event)
	return outcome, true, err
}
