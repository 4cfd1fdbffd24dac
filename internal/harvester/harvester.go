// Package harvester pages through a site's monthly archive in a browser and
// collects article listings into a checkpointed store.
package harvester

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/browser"
	"github.com/JakeFAU/sbnation-corpus/internal/checkpoint"
	"github.com/JakeFAU/sbnation-corpus/internal/clock/system"
	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
	"github.com/JakeFAU/sbnation-corpus/internal/metrics"
	"github.com/JakeFAU/sbnation-corpus/internal/progress"
)

// ErrConsentUnavailable means the privacy-consent control never became
// clickable. Nothing can be harvested without dismissing it.
var ErrConsentUnavailable = errors.New("privacy consent control unavailable")

// Config drives pagination and parsing.
type Config struct {
	ArchiveRoot string
	// RefreshAfter is how many consecutive failed clicks trigger a page refresh.
	RefreshAfter int
	// SkipAfter is how many refreshes a month may use before it is abandoned.
	SkipAfter      int
	ClickDelay     time.Duration
	ClickWait      time.Duration
	YearDelay      time.Duration
	MaxClicks      int
	ConsentTimeout time.Duration
	Selectors      Selectors
}

// Keyer derives store keys from listings.
type Keyer interface {
	KeyOf(info corpus.ArticleInfo) corpus.Key
}

// Sleeper pauses between browser actions.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Checkpointer is the subset of checkpoint.Checkpointer the harvester drives.
type Checkpointer interface {
	Tick(ctx context.Context) (bool, error)
	Final(ctx context.Context) error
}

// MonthResult describes how pagination of one archive month went.
type MonthResult struct {
	Year          int
	Month         int
	Clicks        int
	ClickFailures int
	Refreshes     int
	// Abandoned is set when the refresh budget ran out; HTML still holds
	// whatever loaded.
	Abandoned bool
	// Capped is set when MaxClicks stopped pagination.
	Capped bool
	// Interrupted holds the browser error that cut pagination short. The
	// month is also Abandoned and HTML holds whatever loaded before it.
	Interrupted error
	HTML        string
}

// HarvestStats aggregates a whole run.
type HarvestStats struct {
	Months          int
	MonthsFailed    int
	MonthsAbandoned int
	Clicks          int
	ClickFailures   int
	Refreshes       int
	Parsed          int
	Added           int
	Duplicates      int
	Skipped         int
}

// Harvester drives a browser over archive months.
type Harvester struct {
	browser browser.Browser
	cfg     Config
	keyer   Keyer
	sleeper Sleeper
	logger  *zap.Logger
	emitter progress.Emitter
	runID   string
}

// Option customizes a Harvester.
type Option func(*Harvester)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Harvester) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithSleeper replaces the wall-clock sleeper.
func WithSleeper(s Sleeper) Option {
	return func(h *Harvester) {
		if s != nil {
			h.sleeper = s
		}
	}
}

// WithProgress reports one progress item per month.
func WithProgress(emitter progress.Emitter, runID string) Option {
	return func(h *Harvester) {
		h.emitter = emitter
		h.runID = runID
	}
}

// New builds a Harvester. A zero RefreshAfter, ClickWait, ConsentTimeout or
// Selectors falls back to its default. SkipAfter and MaxClicks are taken as
// given: zero SkipAfter abandons a month on its first failed click and zero
// MaxClicks means no limit.
func New(b browser.Browser, keyer Keyer, cfg Config, opts ...Option) (*Harvester, error) {
	if b == nil {
		return nil, fmt.Errorf("browser is required")
	}
	if keyer == nil {
		return nil, fmt.Errorf("keyer is required")
	}
	if cfg.ArchiveRoot == "" {
		return nil, fmt.Errorf("archive root is required")
	}
	if cfg.RefreshAfter <= 0 {
		cfg.RefreshAfter = 3
	}
	if cfg.ClickWait <= 0 {
		cfg.ClickWait = 2 * time.Second
	}
	if cfg.ConsentTimeout <= 0 {
		cfg.ConsentTimeout = 10 * time.Second
	}
	if cfg.Selectors == (Selectors{}) {
		cfg.Selectors = DefaultSelectors()
	}
	h := &Harvester{
		browser: b,
		cfg:     cfg,
		keyer:   keyer,
		sleeper: system.New(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// MonthURL returns the archive page for a month, e.g. <root>/2019/3.
func (h *Harvester) MonthURL(year, month int) string {
	return strings.TrimSuffix(h.cfg.ArchiveRoot, "/") + "/" + strconv.Itoa(year) + "/" + strconv.Itoa(month)
}

// Open loads the archive root and dismisses the privacy-consent control.
func (h *Harvester) Open(ctx context.Context) error {
	if err := h.browser.Navigate(ctx, h.cfg.ArchiveRoot); err != nil {
		return fmt.Errorf("open archive root: %w", err)
	}
	sel := h.cfg.Selectors.Consent
	if err := h.browser.WaitClickable(ctx, sel, h.cfg.ConsentTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrConsentUnavailable, err)
	}
	if err := h.browser.Click(ctx, sel); err != nil {
		return fmt.Errorf("%w: %w", ErrConsentUnavailable, err)
	}
	if err := h.browser.WaitInvisible(ctx, sel, h.cfg.ConsentTimeout); err != nil {
		h.logger.Warn("privacy consent still visible after click", zap.Error(err))
	}
	h.logger.Debug("opened archive and accepted privacy consent", zap.String("url", h.cfg.ArchiveRoot))
	return nil
}

// LoadMonth opens one archive month and clicks "load more" until the control
// disappears or the failure budget runs out. A failed click scrolls to the
// bottom; RefreshAfter consecutive failures reload the page; once SkipAfter
// reloads have been spent, the next failure abandons pagination. A browser
// error after the month loaded also abandons pagination; only a failure to
// load the month or read its HTML is returned as an error.
func (h *Harvester) LoadMonth(ctx context.Context, year, month int) (MonthResult, error) {
	res := MonthResult{Year: year, Month: month}
	log := h.logger.With(zap.Int("year", year), zap.Int("month", month))

	if err := h.sleeper.Sleep(ctx, h.cfg.ClickDelay); err != nil {
		return res, err
	}
	if err := h.browser.Navigate(ctx, h.MonthURL(year, month)); err != nil {
		return res, err
	}

	attemptsLeft := h.cfg.RefreshAfter
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := h.browser.CountLoadMore(ctx, h.cfg.Selectors.LoadMore)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			h.interrupt(log, &res, "count load more", err)
			break
		}
		// Only a single load-more control is followed.
		present := n == 1

		if present && attemptsLeft > 0 {
			if h.cfg.MaxClicks > 0 && res.Clicks >= h.cfg.MaxClicks {
				log.Warn("click limit reached, parsing what loaded", zap.Int("clicks", res.Clicks))
				res.Capped = true
				break
			}
			if err := h.sleeper.Sleep(ctx, h.cfg.ClickDelay); err != nil {
				return res, err
			}
			err := h.browser.ClickLoadMore(ctx, h.cfg.Selectors.LoadMore, h.cfg.ClickWait)
			if err == nil {
				res.Clicks++
				attemptsLeft = h.cfg.RefreshAfter
				metrics.ObserveLoadMore("clicked")
				continue
			}
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.ClickFailures++
			metrics.ObserveLoadMore("failed")
			if res.Refreshes >= h.cfg.SkipAfter {
				log.Info("too many failures, abandoning pagination",
					zap.Int("refreshes", res.Refreshes), zap.Error(err))
				res.Abandoned = true
				break
			}
			log.Debug("load more not clickable", zap.Int("attempts_left", attemptsLeft-1), zap.Error(err))
			if err := h.browser.ScrollToBottom(ctx); err != nil {
				log.Debug("scroll to bottom failed", zap.Error(err))
			}
			attemptsLeft--
			continue
		}

		if attemptsLeft == 0 {
			log.Debug("refreshing archive page", zap.Int("refreshes", res.Refreshes+1))
			if err := h.browser.Reload(ctx); err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				h.interrupt(log, &res, "reload", err)
				break
			}
			res.Refreshes++
			attemptsLeft = h.cfg.RefreshAfter
			metrics.ObserveLoadMore("refresh")
			continue
		}

		log.Debug("done clicking load more", zap.Int("clicks", res.Clicks))
		break
	}

	html, err := h.browser.HTML(ctx)
	if err != nil {
		return res, fmt.Errorf("read month html: %w", err)
	}
	res.HTML = html
	return res, nil
}

func (h *Harvester) interrupt(log *zap.Logger, res *MonthResult, action string, err error) {
	log.Warn("browser error during pagination, parsing what loaded",
		zap.String("action", action), zap.Int("clicks", res.Clicks), zap.Error(err))
	res.Interrupted = fmt.Errorf("%s: %w", action, err)
	res.Abandoned = true
	metrics.ObserveLoadMore("interrupted")
}

// Run opens the archive and harvests every (year, month) into store. A
// failure inside one month is logged and the run moves on; only a consent
// failure, cancellation, or a checkpoint write error ends it early.
func (h *Harvester) Run(
	ctx context.Context,
	years, months []int,
	store *checkpoint.Store[corpus.ArticleInfo],
	cp Checkpointer,
) (HarvestStats, error) {
	var stats HarvestStats
	if store == nil {
		return stats, fmt.Errorf("article list store is required")
	}
	tracker := progress.NewTracker(h.runID, progress.StageLinks, len(years)*len(months), 1, h.emitter)
	tracker.Start(ctx)

	if err := h.Open(ctx); err != nil {
		return stats, err
	}

	runErr := h.harvest(ctx, years, months, store, cp, tracker, &stats)

	if cp != nil {
		if err := cp.Final(context.WithoutCancel(ctx)); err != nil && runErr == nil {
			runErr = err
		}
	}
	tracker.Done(ctx)
	h.logger.Info("done processing archive",
		zap.Int("months", stats.Months),
		zap.Int("months_failed", stats.MonthsFailed),
		zap.Int("months_abandoned", stats.MonthsAbandoned),
		zap.Int("added", stats.Added),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("skipped", stats.Skipped),
		zap.Int("records", store.Len()),
	)
	return stats, runErr
}

func (h *Harvester) harvest(
	ctx context.Context,
	years, months []int,
	store *checkpoint.Store[corpus.ArticleInfo],
	cp Checkpointer,
	tracker *progress.Tracker,
	stats *HarvestStats,
) error {
	for i, year := range years {
		if i > 0 {
			if err := h.sleeper.Sleep(ctx, h.cfg.YearDelay); err != nil {
				return err
			}
		}
		for _, month := range months {
			if err := ctx.Err(); err != nil {
				return err
			}
			h.harvestMonth(ctx, year, month, store, stats)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if cp != nil {
				if _, err := cp.Tick(ctx); err != nil {
					return err
				}
			}
			tracker.Advance(ctx, 1, fmt.Sprintf("%d-%02d", year, month))
		}
	}
	return nil
}

func (h *Harvester) harvestMonth(
	ctx context.Context,
	year, month int,
	store *checkpoint.Store[corpus.ArticleInfo],
	stats *HarvestStats,
) {
	stats.Months++
	res, err := h.LoadMonth(ctx, year, month)
	stats.Clicks += res.Clicks
	stats.ClickFailures += res.ClickFailures
	stats.Refreshes += res.Refreshes
	if err != nil {
		if ctx.Err() == nil {
			stats.MonthsFailed++
			metrics.ObserveMonth("failed")
			h.logger.Warn("archive month failed",
				zap.Int("year", year), zap.Int("month", month), zap.Error(err))
		}
		return
	}
	if res.Abandoned {
		stats.MonthsAbandoned++
		metrics.ObserveMonth("abandoned")
	} else {
		metrics.ObserveMonth("complete")
	}

	listing, err := ParseListing(res.HTML, h.cfg.Selectors)
	if err != nil {
		stats.MonthsFailed++
		h.logger.Warn("archive month unparseable",
			zap.Int("year", year), zap.Int("month", month), zap.Error(err))
		return
	}
	stats.Parsed += len(listing.Infos)
	stats.Skipped += listing.Skipped
	for i := 0; i < listing.Skipped; i++ {
		metrics.ObserveArticleInfo("skipped")
	}
	for _, info := range listing.Infos {
		if store.Put(h.keyer.KeyOf(info), info) {
			stats.Added++
			metrics.ObserveArticleInfo("added")
		} else {
			stats.Duplicates++
			metrics.ObserveArticleInfo("duplicate")
		}
	}
	h.logger.Info("processed archive month",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("entries", len(listing.Infos)),
		zap.Int("with_byline", listing.WithByline),
		zap.Int("clicks", res.Clicks),
		zap.Bool("abandoned", res.Abandoned),
		zap.Int("records", store.Len()),
		zap.NamedError("interrupted", res.Interrupted),
	)
}
