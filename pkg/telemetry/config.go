// Package telemetry provides drover's structured logging, Prometheus
// metrics and optional OpenTelemetry tracing.
package telemetry

import "time"

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format selects console or json output.
	Format string

	// Output is stdout, stderr or a file path.
	Output string
}

// DefaultLoggingConfig returns console logging to stderr at info level.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info", Format: "console", Output: "stderr"}
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	Enabled bool

	// ListenAddress is the address of the metrics HTTP listener.
	ListenAddress string

	// Namespace prefixes every metric name (default "drover").
	Namespace string
}

// TracingConfig configures OpenTelemetry trace export.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	Enabled bool

	// Exporter selects otlp or stdout.
	Exporter string

	// Endpoint is the OTLP gRPC collector endpoint.
	Endpoint string

	// Insecure disables TLS on the exporter connection.
	Insecure bool

	// ExportTimeout bounds each export batch.
	ExportTimeout time.Duration
}
