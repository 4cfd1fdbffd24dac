package sinks

import (
	"context"

	"github.com/JakeFAU/sbnation-corpus/internal/metrics"
	"github.com/JakeFAU/sbnation-corpus/internal/progress"
)

// PrometheusSink mirrors progress events into the per-stage done/total gauges.
type PrometheusSink struct{}

// NewPrometheusSink makes sure the collectors are registered.
func NewPrometheusSink() *PrometheusSink {
	metrics.Init()
	return &PrometheusSink{}
}

// Consume sets the gauges from the most recent event of each stage in the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		metrics.SetProgress(string(evt.Stage), evt.Done, evt.Total)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
