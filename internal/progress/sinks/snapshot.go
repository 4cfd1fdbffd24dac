package sinks

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/sbnation-corpus/internal/progress"
)

// Snapshot keeps the latest event per stage for the /progress endpoint. It is
// safe for concurrent use; the HTTP server reads while a stage writes.
type Snapshot struct {
	mu     sync.RWMutex
	latest map[progress.Stage]progress.Event
}

// NewSnapshot returns an empty Snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{latest: make(map[progress.Stage]progress.Event)}
}

// Consume records the newest event of each stage.
func (s *Snapshot) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		prev, ok := s.latest[evt.Stage]
		if ok && evt.TS.Before(prev.TS) {
			continue
		}
		s.latest[evt.Stage] = evt
	}
	return nil
}

// Latest returns the newest event per stage, sorted by stage name.
func (s *Snapshot) Latest() []progress.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]progress.Event, 0, len(s.latest))
	for _, evt := range s.latest {
		out = append(out, evt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

// Close implements the Sink interface; it performs no action.
func (s *Snapshot) Close(context.Context) error {
	return nil
}
