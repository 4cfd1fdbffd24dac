package sinks

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/progress"
)

// LogSink emits structured logs for progress streams. It stands in for the
// terminal progress bar.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Int("done", evt.Done),
			zap.Int("total", evt.Total),
			zap.String("percent", formatPercent(evt)),
			zap.Duration("elapsed", evt.Elapsed),
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		msg := "progress"
		if evt.Final {
			msg = "stage complete"
		}
		s.logger.Info(msg, fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

func formatPercent(evt progress.Event) string {
	if evt.Total <= 0 {
		return "n/a"
	}
	return strconv.FormatFloat(evt.Percent(), 'f', 1, 64) + "%"
}
