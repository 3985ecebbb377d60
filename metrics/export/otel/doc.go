// Package otel publishes portal metrics through an OpenTelemetry Meter.
//
// [New] registers one Int64ObservableCounter per portal counter and one
// Int64ObservableGauge per cumulative latency bucket. A single callback
// takes a snapshot on every collection, so the exporter adds no work to
// the login path. The caller owns the MeterProvider.
package otel
