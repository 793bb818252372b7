package queue

import "context"

// Publisher sends domain events. Publishing is best effort: callers log a
// failure and carry on.
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, event any, reqID string) error
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func NewNoop() Publisher { return Noop{} }

func (Noop) Publish(context.Context, string, string, any, string) error { return nil }
func (Noop) Close() error                                               { return nil }
