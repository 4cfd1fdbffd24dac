package checkpoint

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/metrics"
)

// Flusher is the part of a Store the Checkpointer drives.
type Flusher interface {
	Name() string
	Len() int
	Flush(ctx context.Context) (string, error)
}

// Publisher pushes checkpoint notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Reason labels why a checkpoint was taken.
type Reason string

// Checkpoint reasons.
const (
	ReasonPeriodic Reason = "periodic"
	ReasonFinal    Reason = "final"
)

// Notification is the payload published after every flush.
type Notification struct {
	RunID   string    `json:"run_id"`
	Stage   string    `json:"stage"`
	Object  string    `json:"object"`
	URI     string    `json:"uri"`
	Records int       `json:"records"`
	Reason  Reason    `json:"reason"`
	At      time.Time `json:"at"`
}

// Config controls a Checkpointer.
type Config struct {
	Stage string
	RunID string
	// Every flushes after this many processed items; <= 0 disables periodic flushes.
	Every int
	Topic string
}

// Checkpointer flushes a store every Config.Every processed items and once at
// the end of a run, so a crash loses at most one batch.
type Checkpointer struct {
	target    Flusher
	cfg       Config
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
	pending   int
	flushes   int
}

// NewCheckpointer builds a Checkpointer. The publisher may be nil.
func NewCheckpointer(target Flusher, cfg Config, publisher Publisher, logger *zap.Logger) *Checkpointer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checkpointer{
		target:    target,
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Tick records one processed item and flushes when the batch is full. It
// reports whether a flush happened.
func (c *Checkpointer) Tick(ctx context.Context) (bool, error) {
	c.pending++
	if c.cfg.Every <= 0 || c.pending < c.cfg.Every {
		return false, nil
	}
	if err := c.flush(ctx, ReasonPeriodic); err != nil {
		return false, err
	}
	return true, nil
}

// Final flushes unconditionally.
func (c *Checkpointer) Final(ctx context.Context) error {
	return c.flush(ctx, ReasonFinal)
}

// Flushes returns how many flushes have completed.
func (c *Checkpointer) Flushes() int {
	return c.flushes
}

func (c *Checkpointer) flush(ctx context.Context, reason Reason) error {
	uri, err := c.target.Flush(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", c.target.Name(), err)
	}
	c.pending = 0
	c.flushes++
	metrics.ObserveCheckpoint(c.cfg.Stage, string(reason))
	c.logger.Info("checkpoint written",
		zap.String("stage", c.cfg.Stage),
		zap.String("uri", uri),
		zap.Int("records", c.target.Len()),
		zap.String("reason", string(reason)),
	)
	c.notify(ctx, uri, reason)
	return nil
}

func (c *Checkpointer) notify(ctx context.Context, uri string, reason Reason) {
	if c.publisher == nil || c.cfg.Topic == "" {
		return
	}
	payload := Notification{
		RunID:   c.cfg.RunID,
		Stage:   c.cfg.Stage,
		Object:  c.target.Name(),
		URI:     uri,
		Records: c.target.Len(),
		Reason:  reason,
		At:      c.now(),
	}
	if _, err := c.publisher.Publish(ctx, c.cfg.Topic, payload); err != nil {
		c.logger.Warn("checkpoint notification failed", zap.String("topic", c.cfg.Topic), zap.Error(err))
	}
}
