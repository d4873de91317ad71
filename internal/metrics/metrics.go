package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the checkout service collectors on a private registry. A
// nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Transitions *prometheus.CounterVec
	Payments    *prometheus.CounterVec
	Submissions *prometheus.CounterVec
	Requests    *prometheus.CounterVec
	LatencyMS   *prometheus.HistogramVec
}

func New(service string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ec",
			Subsystem: service,
			Name:      "checkout_transitions_total",
			Help:      "Checkout session state transitions.",
		}, []string{"from", "to"}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ec",
			Subsystem: service,
			Name:      "payment_attempts_total",
			Help:      "Resolved payment attempts by outcome.",
		}, []string{"status"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ec",
			Subsystem: service,
			Name:      "order_submissions_total",
			Help:      "Order submissions by payment method and result.",
		}, []string{"method", "result"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ec",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ec",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
	}
	m.registry.MustRegister(m.Transitions, m.Payments, m.Submissions, m.Requests, m.LatencyMS)
	return m
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) PaymentOutcome(status string) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(status).Inc()
}

func (m *Metrics) Submission(method, result string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(method, result).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(handler string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
