package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/datatrails/go-wallpaper-mirror/notification"
	"github.com/datatrails/go-wallpaper-mirror/wallpaper"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

type latencyObserveOffset struct {
	label  string
	offset int
}

// Latency observers
type LatencyObservers struct {
	requestsCounter *prometheus.CounterVec
	requestsLatency *prometheus.HistogramVec
	serviceName     string
	labels          []latencyObserveOffset
	log             Logger
}

// NewLatencyObservers is specific to calculating the network latency and packet count.
func NewLatencyObservers(m *Metrics) LatencyObservers {

	o := LatencyObservers{
		log:             m.log,
		requestsCounter: RequestsCounterMetric(),
		requestsLatency: RequestsLatencyMetric(),
		serviceName:     strings.ToLower(m.serviceName),
		labels:          m.labels,
	}

	m.Register(o.requestsCounter, o.requestsLatency)
	return o
}

func (o *LatencyObservers) resource(fields []string) (string, bool) {
	for _, label := range o.labels {
		if len(fields) > label.offset && fields[label.offset] == label.label {
			return label.label, true
		}
	}
	return "", false
}

func (o *LatencyObservers) ObserveRequestsCount(fields []string, method string, code int) {
	if resource, ok := o.resource(fields); ok {
		o.log.Debugf("Count %s: %s %d", resource, method, code)
		o.requestsCounter.WithLabelValues(method, o.serviceName, resource, strconv.Itoa(code)).Inc()
	}
}

func (o *LatencyObservers) ObserveRequestsLatency(elapsed float64, fields []string, method string) {
	if resource, ok := o.resource(fields); ok {
		o.log.Debugf("Latency %v %s: %s", elapsed, resource, method)
		o.requestsLatency.WithLabelValues(method, o.serviceName, resource).Observe(elapsed)
	}
}

// MirrorObservers records what the mirror does to the index.
type MirrorObservers struct {
	notifications *prometheus.CounterVec
	changes       *prometheus.CounterVec
	batches       *prometheus.HistogramVec
}

func NewMirrorObservers(m *Metrics) *MirrorObservers {
	o := MirrorObservers{
		notifications: NotificationsCounterMetric(),
		changes:       IndexChangesCounterMetric(),
		batches:       BatchDurationMetric(),
	}
	m.Register(o.notifications, o.changes, o.batches)
	return &o
}

func (o *MirrorObservers) ObserveNotification(c wallpaper.Category, kind notification.Kind, changed bool) {
	o.notifications.WithLabelValues(c.String(), kind.String()).Inc()
	if changed {
		o.changes.WithLabelValues(c.String(), kind.String()).Inc()
	}
}

func (o *MirrorObservers) ObserveBatch(elapsed time.Duration, err error) {
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	o.batches.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
