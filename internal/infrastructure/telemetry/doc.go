// Package telemetry wires OpenTelemetry traces, metrics and logs and
// Pyroscope continuous profiling into the service.
//
// Every provider degrades to a no-op when its signal is disabled, so callers
// never need to branch on configuration.
package telemetry
