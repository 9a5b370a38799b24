// Package metrics exposes Prometheus collectors for the mock engine.
//
// # Metrics
//
//   - stubd_requests_total: Counter of served requests (labels: method, status)
//   - stubd_request_duration_seconds: Histogram of request latency (labels: method)
//   - stubd_match_total: Counter of match results (labels: result)
//   - stubd_capture_total: Counter of captures (labels: phase, outcome)
//   - stubd_deferred_writes_total: Counter of deferred write executions (labels: outcome)
//   - stubd_store_operations_total: Counter of store operations (labels: op)
//   - stubd_resources: Gauge of loaded resources
//
// # Label Conventions
//
// All label values are lowercase, except HTTP methods:
//
//   - result: exact, wildcard, none
//   - phase: request_received, response_sent
//   - outcome: ok, error, skipped (capture); ok, error, discarded (deferred)
//   - op: save, load, load_all, delete, count, clear
//
// # Usage
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	m.ObserveMatch(metrics.ResultExact)
//	http.Handle("/system/metrics", metrics.Handler(reg))
//
// Components accept a *Metrics and fall back to Nop when given nil.
package metrics
