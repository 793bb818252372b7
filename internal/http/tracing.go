package http

import (
	"context"

	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// WithSpan runs fn inside a child span and tags it with fn's error.
func WithSpan(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	span, ctx2 := tracer.StartSpanFromContext(ctx, name)
	err := fn(ctx2)
	span.Finish(tracer.WithError(err))
	return err
}
