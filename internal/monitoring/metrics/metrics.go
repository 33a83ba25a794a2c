package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
)

// Set bundles the process collectors behind a private registry.
type Set struct {
	registry *prometheus.Registry

	probesTotal     *prometheus.CounterVec
	probeDuration   *prometheus.HistogramVec
	probesSkipped   prometheus.Counter
	alertsTriggered *prometheus.CounterVec
	alertsResolved  *prometheus.CounterVec
	rollupsTotal    prometheus.Counter
}

func NewSet() *Set {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Set{
		registry: reg,
		probesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsewatch",
			Name:      "probes_total",
			Help:      "Completed probes by result (success or error type).",
		}, []string{"result"}),
		probeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pulsewatch",
			Name:      "probe_duration_seconds",
			Help:      "Measured response time of probes that reached the server.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"result"}),
		probesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pulsewatch",
			Name:      "probes_skipped_total",
			Help:      "Probe cycles skipped because the previous probe was still in flight.",
		}),
		alertsTriggered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsewatch",
			Name:      "alerts_triggered_total",
			Help:      "Alerts opened, by type and severity.",
		}, []string{"alert_type", "severity"}),
		alertsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsewatch",
			Name:      "alerts_resolved_total",
			Help:      "Alerts closed, by type.",
		}, []string{"alert_type"}),
		rollupsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pulsewatch",
			Name:      "uptime_rollups_total",
			Help:      "Uptime metric rows recomputed.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ProbeCompleted records one durably saved probe result.
func (s *Set) ProbeCompleted(ep model.Endpoint, hc *model.HealthCheck) {
	result := "success"
	if !hc.IsSuccessful {
		result = string(hc.ErrorType)
	}
	s.probesTotal.WithLabelValues(result).Inc()
	if hc.ResponseTimeMs != nil {
		s.probeDuration.WithLabelValues(result).Observe(*hc.ResponseTimeMs / 1000)
	}
}

func (s *Set) ProbeSkipped(endpointID int64) {
	s.probesSkipped.Inc()
}

func (s *Set) AlertTriggered(a *model.Alert) {
	s.alertsTriggered.WithLabelValues(string(a.AlertType), string(a.Severity)).Inc()
}

func (s *Set) AlertResolved(a *model.Alert) {
	s.alertsResolved.WithLabelValues(string(a.AlertType)).Inc()
}

func (s *Set) RollupRecorded() {
	s.rollupsTotal.Inc()
}

// Notifier matches the alert notification surface so deliveries can be
// counted without this package knowing the concrete sink.
type Notifier interface {
	NotifyAlertTriggered(ctx context.Context, a *model.Alert)
	NotifyAlertResolved(ctx context.Context, a *model.Alert)
}

// InstrumentedNotifier counts alert transitions before delegating delivery.
type InstrumentedNotifier struct {
	next Notifier
	set  *Set
}

func InstrumentNotifier(next Notifier, set *Set) *InstrumentedNotifier {
	return &InstrumentedNotifier{next: next, set: set}
}

func (n *InstrumentedNotifier) NotifyAlertTriggered(ctx context.Context, a *model.Alert) {
	n.set.AlertTriggered(a)
	n.next.NotifyAlertTriggered(ctx, a)
}

func (n *InstrumentedNotifier) NotifyAlertResolved(ctx context.Context, a *model.Alert) {
	n.set.AlertResolved(a)
	n.next.NotifyAlertResolved(ctx, a)
}
