package content

import (
	"time"

	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
	"github.com/JakeFAU/sbnation-corpus/internal/extract"
)

// Status is what happened to one listing during a content run.
type Status string

// Outcome statuses.
const (
	StatusAdded          Status = "added"
	StatusAlreadyPresent Status = "already_present"
	StatusSkipped        Status = "skipped"
)

// Reason explains a skipped listing.
type Reason string

// Skip reasons. The extraction reasons mirror extract.Reason.
const (
	ReasonNone          Reason = ""
	ReasonFetchError    Reason = "fetch_error"
	ReasonHTTPStatus    Reason = "http_status"
	ReasonUnparseable   Reason = Reason(extract.ReasonUnparseable)
	ReasonMissingBody   Reason = Reason(extract.ReasonMissingBody)
	ReasonMissingAuthor Reason = Reason(extract.ReasonMissingAuthor)
)

// Outcome is the explicit per-listing result of a content run.
type Outcome struct {
	Key             corpus.Key
	URL             string
	Status          Status
	Reason          Reason
	StatusCode      int
	Attempts        int
	Duration        time.Duration
	SummaryMissing  bool
	UsedReadability bool
	Err             error
}

// Stats aggregates outcomes.
type Stats struct {
	Processed        int
	Added            int
	AlreadyPresent   int
	Skipped          int
	SummariesMissing int
	ByReason         map[Reason]int
}

// Record folds one outcome into the totals.
func (s *Stats) Record(o Outcome) {
	s.Processed++
	switch o.Status {
	case StatusAdded:
		s.Added++
		if o.SummaryMissing {
			s.SummariesMissing++
		}
	case StatusAlreadyPresent:
		s.AlreadyPresent++
	case StatusSkipped:
		s.Skipped++
		if s.ByReason == nil {
			s.ByReason = make(map[Reason]int)
		}
		s.ByReason[o.Reason]++
	}
}
