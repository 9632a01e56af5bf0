// Package prometheus renders goCred metrics in the Prometheus text format.
//
// [NewExporter] reads an Engine's MetricsSnapshot on every scrape. Counters
// are named gocred_*_total and the validate latency histogram is
// gocred_validate_latency_seconds. Nothing is registered globally; callers
// mount [Exporter.Handler] where they want it.
package prometheus
