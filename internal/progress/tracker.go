package progress

import (
	"context"
	"time"
)

// Tracker counts processed items for one stage. It is not safe for
// concurrent use; every stage runs on a single goroutine.
type Tracker struct {
	runID   string
	stage   Stage
	total   int
	every   int
	done    int
	emitter Emitter
	now     func() time.Time
	started time.Time
	ended   bool
}

// NewTracker starts tracking a stage expected to process total items and
// reports every `every` items. A nil emitter makes the tracker silent.
func NewTracker(runID string, stage Stage, total, every int, emitter Emitter) *Tracker {
	if every <= 0 {
		every = 1
	}
	t := &Tracker{
		runID:   runID,
		stage:   stage,
		total:   total,
		every:   every,
		emitter: emitter,
		now:     func() time.Time { return time.Now().UTC() },
	}
	t.started = t.now()
	return t
}

// Start emits the initial zero-progress event.
func (t *Tracker) Start(ctx context.Context) {
	t.emit(ctx, false, "")
}

// Advance records n processed items and emits when a reporting boundary is crossed.
func (t *Tracker) Advance(ctx context.Context, n int, note string) {
	if n <= 0 || t.ended {
		return
	}
	before := t.done / t.every
	t.done += n
	if t.done/t.every != before {
		t.emit(ctx, false, note)
	}
}

// SetTotal adjusts the expected item count, e.g. once a listing has been parsed.
func (t *Tracker) SetTotal(total int) {
	if total >= 0 {
		t.total = total
	}
}

// Done emits the final event. Later calls are ignored.
func (t *Tracker) Done(ctx context.Context) {
	if t.ended {
		return
	}
	t.emit(ctx, true, "")
	t.ended = true
}

// Processed returns the number of items recorded so far.
func (t *Tracker) Processed() int {
	return t.done
}

func (t *Tracker) emit(ctx context.Context, final bool, note string) {
	if t.emitter == nil {
		return
	}
	now := t.now()
	t.emitter.Emit(ctx, Event{
		RunID:   t.runID,
		TS:      now,
		Stage:   t.stage,
		Done:    t.done,
		Total:   t.total,
		Elapsed: now.Sub(t.started),
		Final:   final,
		Note:    note,
	})
}
