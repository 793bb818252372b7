package log

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// WithDD adds the active span's dd.trace_id and dd.span_id to base so log
// lines correlate with traces.
func WithDD(ctx context.Context, base *zap.Logger, extra ...zap.Field) *zap.Logger {
	sp, ok := tracer.SpanFromContext(ctx)
	if !ok {
		return base.With(extra...)
	}
	sc := sp.Context()
	fields := append([]zap.Field{
		zap.String("dd.trace_id", strconv.FormatUint(sc.TraceID(), 10)),
		zap.String("dd.span_id", strconv.FormatUint(sc.SpanID(), 10)),
	}, extra...)
	return base.With(fields...)
}
