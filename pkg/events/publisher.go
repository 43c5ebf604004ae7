package events

import "context"

// EventPublisher delivers callback outcomes.
type EventPublisher interface {
	PublishCallback(ctx context.Context, event *CallbackEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (when no transport carries events).
type NoOpPublisher struct{}

// PublishCallback is a no-op.
func (p *NoOpPublisher) PublishCallback(_ context.Context, _ *CallbackEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *CallbackEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *CallbackEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishCallback calls the callback.
func (p *CallbackPublisher) PublishCallback(ctx context.Context, event *CallbackEvent) error {
	return p.callback(ctx, event)
}
