package events

import "context"

// UpcallPublisher delivers feedback upcalls to a subscription.
type UpcallPublisher interface {
	PublishUpcall(ctx context.Context, upcall *Upcall) error
}

// NoOpPublisher is an UpcallPublisher that does nothing (for in-process usage without a bus).
type NoOpPublisher struct{}

// PublishUpcall is a no-op.
func (p *NoOpPublisher) PublishUpcall(_ context.Context, _ *Upcall) error {
	return nil
}

// CallbackPublisher is an UpcallPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, upcall *Upcall) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, upcall *Upcall) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishUpcall calls the callback.
func (p *CallbackPublisher) PublishUpcall(ctx context.Context, upcall *Upcall) error {
	return p.callback(ctx, upcall)
}
