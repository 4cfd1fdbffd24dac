// Package progress reports how far a stage has come. A Tracker counts
// processed items for one stage and emits an Event every few items to a
// Fanout, which hands it synchronously to pluggable sinks such as structured
// logs, Prometheus gauges, or the snapshot served over HTTP.
package progress
