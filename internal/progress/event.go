package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage names the pipeline step an Event belongs to.
type Stage string

// Supported progress stages.
const (
	StageLinks   Stage = "links"
	StageContent Stage = "content"
	StageCompile Stage = "compile"
)

// Event captures one progress report for a stage.
type Event struct {
	// RunID ties the event to a single process invocation.
	RunID string `json:"run_id"`
	// TS is the UTC timestamp recorded by the tracker.
	TS time.Time `json:"ts"`
	// Stage denotes which pipeline step is reporting.
	Stage Stage `json:"stage"`
	// Done counts items processed so far, skipped ones included.
	Done int `json:"done"`
	// Total is the number of items expected; zero when unknown.
	Total int `json:"total"`
	// Elapsed is the wall time since the tracker started.
	Elapsed time.Duration `json:"elapsed"`
	// Final marks the last event of a stage.
	Final bool `json:"final"`
	// Note lets trackers attach low-volume context such as the current month.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageLinks, StageContent, StageCompile:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Done < 0 || e.Total < 0 {
		return errors.New("counts must be >= 0")
	}
	if e.Elapsed < 0 {
		return errors.New("elapsed must be >= 0")
	}
	return nil
}

// Percent returns Done/Total in [0, 100], or 0 when Total is unknown.
func (e Event) Percent() float64 {
	if e.Total <= 0 {
		return 0
	}
	p := float64(e.Done) / float64(e.Total) * 100
	if p > 100 {
		return 100
	}
	return p
}
