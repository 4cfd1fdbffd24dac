// Package sinks implements concrete progress consumers: structured logging,
// Prometheus gauges, and an in-memory snapshot served over HTTP. Each sink
// satisfies the progress.Sink interface.
package sinks
