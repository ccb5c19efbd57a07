// Package observability provides an OpenTelemetry metrics extension for
// Burst. MetricsExtension implements lifecycle hooks to record plan, run,
// entry and replay counters.
//
// For per-delivery tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
