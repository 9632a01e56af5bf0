// Package otel binds goCred counters to OpenTelemetry observable instruments.
//
// The caller owns the MeterProvider and passes a Meter to [NewExporter].
package otel
