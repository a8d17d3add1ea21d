package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	CheckIns        *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	SessionsClosed  prometheus.Counter
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_checkins_total",
			Help: "Accepted check-ins by attendance status.",
		}, []string{"status"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_checkin_rejections_total",
			Help: "Rejected check-ins by reason.",
		}, []string{"reason"}),
		SessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_sessions_auto_completed_total",
			Help: "Active sessions completed by the sweeper.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.CheckIns, m.Rejections, m.SessionsClosed, m.Requests, m.RequestDuration)
	return m
}

// CheckedIn counts an accepted check-in.
func (m *Metrics) CheckedIn(status string) {
	if m != nil {
		m.CheckIns.WithLabelValues(status).Inc()
	}
}

// Rejected counts a refused check-in.
func (m *Metrics) Rejected(reason string) {
	if m != nil {
		m.Rejections.WithLabelValues(reason).Inc()
	}
}

// AutoCompleted counts sessions closed by the sweeper.
func (m *Metrics) AutoCompleted(n int) {
	if m != nil {
		m.SessionsClosed.Add(float64(n))
	}
}
