// Package tracing turns pipeline runs into OpenTelemetry spans and sets up
// the OTLP exporter used by the server.
package tracing
