package progress

import (
	"context"

	"go.uber.org/zap"
)

// Sink consumes batches of progress events.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Fanout satisfies this interface so
// trackers stay agnostic about where events end up.
type Emitter interface {
	Emit(ctx context.Context, evt Event)
}

// Fanout delivers every event to each sink in order on the caller's goroutine.
// Sink failures are logged and never reach the tracker.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout builds a Fanout over the provided sinks.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{sinks: append([]Sink(nil), sinks...), logger: logger}
}

// Emit validates evt and forwards it to every sink.
func (f *Fanout) Emit(ctx context.Context, evt Event) {
	if f == nil {
		return
	}
	if err := evt.Validate(); err != nil {
		f.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	batch := []Event{evt}
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Consume(ctx, batch); err != nil {
			f.logger.Warn("progress sink consume failed", zap.Error(err))
		}
	}
}

// Close closes every sink.
func (f *Fanout) Close(ctx context.Context) error {
	if f == nil {
		return nil
	}
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			f.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
	return nil
}
