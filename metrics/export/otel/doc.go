// Package otel publishes the gateway's session metrics through an OpenTelemetry meter.
//
// Each counter becomes an Int64ObservableCounter and each histogram bucket an
// Int64ObservableGauge. One callback reads the provider's snapshot per collection. The caller
// owns the MeterProvider.
package otel
