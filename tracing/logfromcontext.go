package tracing

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/datatrails/go-wallpaper-mirror/logger"
)

// TraceIDFromContext returns the b3 trace id of the span in ctx, or "" when
// there is no span or the tracer does not emit b3 ids.
func TraceIDFromContext(ctx context.Context, log logger.Logger) string {
	span := opentracing.SpanFromContext(ctx)
	if span == nil {
		log.Debugf("TraceIDFromContext: no span")
		return ""
	}
	carrier := opentracing.TextMapCarrier{}
	err := opentracing.GlobalTracer().Inject(span.Context(), opentracing.TextMap, carrier)
	if err != nil {
		log.Debugf("TraceIDFromContext: can't inject span: %v", err)
		return ""
	}

	traceID, found := carrier[TraceID]
	if !found || traceID == "" {
		return ""
	}
	return traceID
}
