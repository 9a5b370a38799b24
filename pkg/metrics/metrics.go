package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Match results.
const (
	ResultExact    = "exact"
	ResultWildcard = "wildcard"
	ResultNone     = "none"
)

// Outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeSkipped   = "skipped"
	OutcomeDiscarded = "discarded"
)

// Store operations.
const (
	OpSave    = "save"
	OpLoad    = "load"
	OpLoadAll = "load_all"
	OpDelete  = "delete"
	OpCount   = "count"
	OpClear   = "clear"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	matches         *prometheus.CounterVec
	captures        *prometheus.CounterVec
	deferredWrites  *prometheus.CounterVec
	storeOps        *prometheus.CounterVec
	resources       prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stubd_requests_total",
			Help: "Total number of served requests",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stubd_request_duration_seconds",
			Help:    "Duration of served requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stubd_match_total",
			Help: "Resource match results",
		}, []string{"result"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stubd_capture_total",
			Help: "Captures by exchange phase and outcome",
		}, []string{"phase", "outcome"}),
		deferredWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stubd_deferred_writes_total",
			Help: "Deferred writes executed after the response was sent",
		}, []string{"outcome"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stubd_store_operations_total",
			Help: "Store operations by type",
		}, []string{"op"}),
		resources: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stubd_resources",
			Help: "Number of loaded resources",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.requestDuration, m.matches, m.captures,
			m.deferredWrites, m.storeOps, m.resources)
	}
	return m
}

// Nop returns collectors that are not registered anywhere.
func Nop() *Metrics {
	return New(nil)
}

// NewRegistry returns a registry with the Go runtime and process collectors
// already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveRequest records a served request.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	method = strings.ToUpper(method)
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveMatch records a match result.
func (m *Metrics) ObserveMatch(result string) {
	m.matches.WithLabelValues(result).Inc()
}

// ObserveCapture records a capture for a phase, e.g. "REQUEST_RECEIVED".
func (m *Metrics) ObserveCapture(phase, outcome string) {
	m.captures.WithLabelValues(strings.ToLower(phase), outcome).Inc()
}

// ObserveDeferred records the execution of a deferred write.
func (m *Metrics) ObserveDeferred(outcome string) {
	m.deferredWrites.WithLabelValues(outcome).Inc()
}

// ObserveStoreOp records a store operation.
func (m *Metrics) ObserveStoreOp(op string) {
	m.storeOps.WithLabelValues(op).Inc()
}

// SetResources records the number of loaded resources.
func (m *Metrics) SetResources(n int) {
	m.resources.Set(float64(n))
}

// OrNop returns m, or Nop when m is nil.
func OrNop(m *Metrics) *Metrics {
	if m == nil {
		return Nop()
	}
	return m
}
