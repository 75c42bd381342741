package events

import "context"

// Publisher fans events out after the writes they describe have committed.
// Delivery is best effort; callers log errors and carry on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoOpPublisher is a publisher that does nothing (for testing or when AMQP is disabled)
type NoOpPublisher struct{}

// Publish does nothing
func (NoOpPublisher) Publish(ctx context.Context, event Event) error { return nil }
