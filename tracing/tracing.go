// Package tracing sets up the zipkin tracer behind opentracing and carries
// b3 span headers across http requests.
package tracing

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	otnethttp "github.com/opentracing-contrib/go-stdlib/nethttp"
	opentracing "github.com/opentracing/opentracing-go"
	zipkinot "github.com/openzipkin-contrib/zipkin-go-opentracing"
	zipkin "github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/reporter/http"

	"github.com/datatrails/go-wallpaper-mirror/environment"
	"github.com/datatrails/go-wallpaper-mirror/logger"
)

const (
	ZipkinEndpointEnv = "ZIPKIN_ENDPOINT"
	DisableZipkinEnv  = "DISABLE_ZIPKIN"

	requestID         = "x-request-id"
	otSpanContext     = "x-ot-span-context"
	prefixTracerState = "x-b3-"
	TraceID           = prefixTracerState + "traceid"
	spanID            = prefixTracerState + "spanid"
	parentSpanID      = prefixTracerState + "parentspanid"
	sampled           = prefixTracerState + "sampled"
	flags             = prefixTracerState + "flags"
)

var otHeaders = []string{
	requestID,
	otSpanContext,
	TraceID,
	spanID,
	parentSpanID,
	sampled,
	flags,
}

// HTTPMiddleware starts a server span per request, joining the caller's trace
// when b3 headers are present.
func HTTPMiddleware(h http.Handler) http.Handler {
	return otnethttp.Middleware(
		opentracing.GlobalTracer(),
		h,
		otnethttp.OperationNameFunc(func(r *http.Request) string {
			return "HTTP " + r.Method + ":" + r.URL.EscapedPath() + " >"
		}),
	)
}

// IsTracingHeader reports whether key is one of the headers that carry trace
// state.
func IsTracingHeader(key string) bool {
	key = strings.ToLower(key)
	for _, tracingKey := range otHeaders {
		if key == tracingKey {
			return true
		}
	}
	return false
}

// NewFromEnv initialises tracing when ZIPKIN_ENDPOINT is set and
// DISABLE_ZIPKIN is not truthy. It returns nil when tracing is off.
func NewFromEnv(log logger.Logger, service string, port string) (io.Closer, error) {
	endpoint := environment.GetWithDefault(ZipkinEndpointEnv, "")
	if endpoint == "" {
		log.Infof("zipkin disabled, '%s' not set", ZipkinEndpointEnv)
		return nil, nil
	}
	if environment.GetTruthy(DisableZipkinEnv) {
		log.Infof("'%s' set, zipkin disabled", DisableZipkinEnv)
		return nil, nil
	}
	return New(service, fmt.Sprintf("localhost:%s", port), endpoint)
}

// New installs a zipkin backed tracer as the global opentracing tracer. The
// returned closer flushes the span reporter.
func New(service string, host string, zipkinEndpoint string) (io.Closer, error) {
	localEndpoint, err := zipkin.NewEndpoint(strings.ToLower(service), host)
	if err != nil {
		return nil, fmt.Errorf("zipkin local endpoint service '%s' host '%s': %w", service, host, err)
	}

	reporter := zipkinhttp.NewReporter(zipkinEndpoint, zipkinhttp.Logger(newZipkinLogger()))

	nativeTracer, err := zipkin.NewTracer(
		reporter,
		zipkin.WithLocalEndpoint(localEndpoint),
		zipkin.WithSharedSpans(false),
	)
	if err != nil {
		_ = reporter.Close()
		return nil, fmt.Errorf("zipkin tracer: %w", err)
	}

	opentracing.SetGlobalTracer(zipkinot.Wrap(nativeTracer))
	return reporter, nil
}
