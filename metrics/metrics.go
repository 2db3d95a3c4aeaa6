package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datatrails/go-wallpaper-mirror/environment"
)

const (
	UseMetricsEnv  = "USE_METRICS"
	MetricsPortEnv = "METRICS_PORT"

	namespace = "wallpaper_mirror"
)

// RequestsCounterMetric counts requests by method, service, resource and
// response code.
func RequestsCounterMetric() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests by method, service, resource and code.",
		},
		[]string{"method", "service", "resource", "code"},
	)
}

// RequestsLatencyMetric measures an SLA "95% of all requests must be made in less than 100ms" and to
// plot average response latency and the apdex score.
// bucket limits are in seconds...
func RequestsLatencyMetric() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "requests_latency",
			Help:      "Histogram of time to reply to request.",
			Buckets:   []float64{.005, .01, .02, .04, .08, .16, .32},
		},
		[]string{"method", "service", "resource"},
	)
}

// NotificationsCounterMetric counts applied notifications by category and
// kind (created, removed, ignored).
func NotificationsCounterMetric() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications applied by category and kind.",
		},
		[]string{"category", "kind"},
	)
}

// IndexChangesCounterMetric counts the mutations that changed set membership.
func IndexChangesCounterMetric() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_changes_total",
			Help:      "Set mutations that changed membership by category and kind.",
		},
		[]string{"category", "kind"},
	)
}

// BatchDurationMetric is the time to apply a batch, labelled by outcome.
func BatchDurationMetric() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Histogram of time to apply a notification batch.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"outcome"},
	)
}

// Metrics. Only those metrics specified
// are returned. The GoCollector and ProcessCollector metrics are omitted by
// using our own registry.
type Metrics struct {
	serviceName string
	port        string
	registry    *prometheus.Registry
	labels      []latencyObserveOffset
	log         Logger
}

type MetricsOption func(*Metrics)

// WithLabel observes requests whose path field at offset equals label.
func WithLabel(label string, offset int) MetricsOption {
	return func(m *Metrics) {
		m.labels = append(m.labels, latencyObserveOffset{label: label, offset: offset})
	}
}

func WithPort(port string) MetricsOption {
	return func(m *Metrics) {
		m.port = port
	}
}

func New(log Logger, serviceName string, opts ...MetricsOption) *Metrics {
	m := Metrics{
		log:         log,
		serviceName: strings.ToLower(serviceName),
		registry:    prometheus.NewRegistry(),
		labels:      []latencyObserveOffset{},
	}
	for _, opt := range opts {
		opt(&m)
	}
	return &m
}

// NewFromEnvironment returns nil unless USE_METRICS is truthy, in which case
// METRICS_PORT is required.
func NewFromEnvironment(log Logger, serviceName string, opts ...MetricsOption) (*Metrics, error) {
	if !environment.GetTruthy(UseMetricsEnv) {
		log.Infof("metrics disabled, '%s' not set", UseMetricsEnv)
		return nil, nil
	}
	port, err := environment.GetRequired(MetricsPortEnv)
	if err != nil {
		return nil, err
	}
	return New(log, serviceName, append(opts, WithPort(port))...), nil
}

func (m *Metrics) String() string {
	return m.serviceName
}

func (m *Metrics) Register(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}

func (m *Metrics) Port() string {
	if m != nil {
		return m.port
	}
	return ""
}

// NewPromHandler - this handler is used on the endpoint that serves metrics endpoint
// which is provided on a different port to the service.
// The default InstrumentMetricHandler is suppressed.
func (m *Metrics) NewPromHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
