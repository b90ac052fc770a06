package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics interface the rest of the application records
// against. A noop implementation backs disabled deployments.
type Recorder interface {
	RecordAuthAttempt(method string, success bool, duration time.Duration)
	RecordUserProvisioned()
	RecordProxyRequest(method string, statusCode int, duration time.Duration)
	RecordErrorResponse(errorcode string)
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Authentication Metrics
	AuthAttemptsTotal *prometheus.CounterVec
	AuthDuration      *prometheus.HistogramVec

	// Provisioning Metrics
	UsersProvisionedTotal prometheus.Counter

	// Proxy Metrics
	ProxyRequestsTotal   *prometheus.CounterVec
	ProxyRequestDuration *prometheus.HistogramVec

	// Error Metrics
	ErrorResponsesTotal *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag.
// Uses sync.Once to ensure Prometheus metrics are only registered once.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		AuthAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_auth_attempts_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"method", "result"}, // trusted_header/password, success/denied
		),
		AuthDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_auth_duration_seconds",
				Help:    "Time taken to resolve a request identity",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		UsersProvisionedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_users_provisioned_total",
				Help: "Total number of shadow users created from LDAP",
			},
		),
		ProxyRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_proxy_requests_total",
				Help: "Total number of proxied backend requests",
			},
			[]string{"method", "status"},
		),
		ProxyRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_proxy_request_duration_seconds",
				Help:    "Backend round-trip time for proxied requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ErrorResponsesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_error_responses_total",
				Help: "Total number of error envelopes rendered",
			},
			[]string{"errorcode"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_http_requests_in_flight",
				Help: "Current number of in-flight HTTP requests",
			},
		),
	}
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "denied"
}

func (m *Metrics) RecordAuthAttempt(method string, success bool, duration time.Duration) {
	m.AuthAttemptsTotal.WithLabelValues(method, result(success)).Inc()
	m.AuthDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordUserProvisioned() {
	m.UsersProvisionedTotal.Inc()
}

func (m *Metrics) RecordProxyRequest(method string, statusCode int, duration time.Duration) {
	m.ProxyRequestsTotal.WithLabelValues(method, statusLabel(statusCode)).Inc()
	m.ProxyRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordErrorResponse(errorcode string) {
	m.ErrorResponsesTotal.WithLabelValues(errorcode).Inc()
}
