package shared

import "context"

// EventHandler reacts to published events. EventTypes lists the types it
// wants; an empty list means every event.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher is what application services depend on
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus fans published events out to subscribed handlers. Subscribe with
// no types falls back to the handler's own EventTypes.
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// PublishAndClear publishes the aggregate's pending events and clears them.
// Events are cleared even when publishing fails; the aggregate state is already persisted.
func PublishAndClear(ctx context.Context, publisher EventPublisher, aggregate EventSource) error {
	if publisher == nil {
		aggregate.ClearDomainEvents()
		return nil
	}
	events := aggregate.PendingEvents()
	aggregate.ClearDomainEvents()
	if len(events) == 0 {
		return nil
	}
	return publisher.Publish(ctx, events...)
}
