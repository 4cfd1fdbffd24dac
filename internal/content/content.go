// Package content fetches the article behind every harvested listing and
// adds it to the articles store. Listings that fail are skipped and stay
// absent, so the next run retries them.
package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/checkpoint"
	"github.com/JakeFAU/sbnation-corpus/internal/clock/system"
	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
	"github.com/JakeFAU/sbnation-corpus/internal/extract"
	"github.com/JakeFAU/sbnation-corpus/internal/metrics"
	"github.com/JakeFAU/sbnation-corpus/internal/progress"
)

// Page is a fetched article page.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// PageFetcher performs a bounded-timeout GET.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Parser turns page HTML into article parts.
type Parser interface {
	Parse(html, pageURL, authorHint string) extract.Result
}

// Limiter paces requests.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// RetryPolicy decides whether a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Sleeper pauses between retries.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Checkpointer is the subset of checkpoint.Checkpointer a run drives.
type Checkpointer interface {
	Tick(ctx context.Context) (bool, error)
	Final(ctx context.Context) error
}

// errRetryableStatus marks responses worth another attempt.
var errRetryableStatus = errors.New("retryable http status")

// Fetcher runs the content stage.
type Fetcher struct {
	pages         PageFetcher
	parser        Parser
	limiter       Limiter
	retry         RetryPolicy
	sleeper       Sleeper
	logger        *zap.Logger
	emitter       progress.Emitter
	runID         string
	progressEvery int
	onOutcome     func(Outcome)
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithLimiter paces every request through l.
func WithLimiter(l Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithRetry retries failed fetches according to p.
func WithRetry(p RetryPolicy) Option {
	return func(f *Fetcher) { f.retry = p }
}

// WithSleeper replaces the wall-clock sleeper used between retries.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) {
		if s != nil {
			f.sleeper = s
		}
	}
}

// WithProgress reports progress every `every` listings.
func WithProgress(emitter progress.Emitter, runID string, every int) Option {
	return func(f *Fetcher) {
		f.emitter = emitter
		f.runID = runID
		f.progressEvery = every
	}
}

// WithOutcomeHook observes every outcome, e.g. for audit logs.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(f *Fetcher) { f.onOutcome = fn }
}

// New builds a Fetcher.
func New(pages PageFetcher, parser Parser, opts ...Option) (*Fetcher, error) {
	if pages == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	f := &Fetcher{
		pages:         pages,
		parser:        parser,
		sleeper:       system.New(),
		logger:        zap.NewNop(),
		progressEvery: 100,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Run processes every listing in infos, in store order. It stops early only
// on cancellation or when a checkpoint cannot be written; the final
// checkpoint is attempted either way.
func (f *Fetcher) Run(
	ctx context.Context,
	infos *checkpoint.Store[corpus.ArticleInfo],
	articles *checkpoint.Store[corpus.Article],
	cp Checkpointer,
) (Stats, error) {
	var stats Stats
	if infos == nil || articles == nil {
		return stats, fmt.Errorf("article list and articles stores are required")
	}

	keys := infos.Keys()
	tracker := progress.NewTracker(f.runID, progress.StageContent, len(keys), f.progressEvery, f.emitter)
	tracker.Start(ctx)
	f.logger.Info("started scraping content for articles",
		zap.Int("listings", len(keys)), zap.Int("existing_articles", articles.Len()))

	runErr := f.process(ctx, keys, infos, articles, cp, tracker, &stats)

	if cp != nil {
		if err := cp.Final(context.WithoutCancel(ctx)); err != nil && runErr == nil {
			runErr = err
		}
	}
	tracker.Done(ctx)
	f.logStats("content run finished", stats, articles.Len())
	return stats, runErr
}

func (f *Fetcher) process(
	ctx context.Context,
	keys []corpus.Key,
	infos *checkpoint.Store[corpus.ArticleInfo],
	articles *checkpoint.Store[corpus.Article],
	cp Checkpointer,
	tracker *progress.Tracker,
	stats *Stats,
) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, _ := infos.Get(key)
		outcome := f.Process(ctx, key, info, articles)
		if err := ctx.Err(); err != nil {
			return err
		}

		stats.Record(outcome)
		f.observe(outcome)

		if cp != nil {
			flushed, err := cp.Tick(ctx)
			if err != nil {
				return err
			}
			if flushed {
				f.logStats("content checkpoint", *stats, articles.Len())
			}
		}
		tracker.Advance(ctx, 1, "")
	}
	return nil
}

// Process handles a single listing and reports what happened to it.
func (f *Fetcher) Process(
	ctx context.Context,
	key corpus.Key,
	info corpus.ArticleInfo,
	articles *checkpoint.Store[corpus.Article],
) Outcome {
	out := Outcome{Key: key, URL: info.URL}
	if articles.Has(key) {
		out.Status = StatusAlreadyPresent
		return out
	}

	page, attempts, err := f.fetch(ctx, info.URL)
	out.Attempts = attempts
	out.StatusCode = page.StatusCode
	out.Duration = page.Duration
	if ctxErr := ctx.Err(); ctxErr != nil {
		out.Status, out.Reason, out.Err = StatusSkipped, ReasonFetchError, ctxErr
		return out
	}
	if err != nil && !errors.Is(err, errRetryableStatus) {
		out.Status, out.Reason, out.Err = StatusSkipped, ReasonFetchError, err
		return out
	}
	if page.StatusCode < 200 || page.StatusCode > 299 {
		out.Status, out.Reason = StatusSkipped, ReasonHTTPStatus
		out.Err = fmt.Errorf("unexpected status %d", page.StatusCode)
		return out
	}

	res := f.parser.Parse(string(page.Body), info.URL, info.Author)
	out.SummaryMissing = res.SummaryMissing
	out.UsedReadability = res.UsedReadability
	if !res.OK() {
		out.Status, out.Reason = StatusSkipped, Reason(res.Reason)
		return out
	}

	articles.Put(key, corpus.NewArticle(info, res.Author, res.Summary, res.Body))
	out.Status = StatusAdded
	return out
}

func (f *Fetcher) fetch(ctx context.Context, url string) (Page, int, error) {
	attempt := 0
	for {
		attempt++
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, url); err != nil {
				return Page{}, attempt, err
			}
		}
		page, err := f.pages.Fetch(ctx, url)
		if err == nil && retryableStatus(page.StatusCode) {
			err = fmt.Errorf("%w: %d", errRetryableStatus, page.StatusCode)
		}
		if err == nil {
			return page, attempt, nil
		}
		if f.retry == nil || ctx.Err() != nil || !f.retry.ShouldRetry(err, attempt) {
			return page, attempt, err
		}
		delay := f.retry.Backoff(attempt)
		f.logger.Debug("retrying article fetch",
			zap.String("url", url), zap.Int("attempt", attempt), zap.Duration("backoff", delay), zap.Error(err))
		if err := f.sleeper.Sleep(ctx, delay); err != nil {
			return page, attempt, err
		}
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func (f *Fetcher) observe(o Outcome) {
	metrics.ObserveFetch(o.URL, string(o.Status), string(o.Reason), o.Duration)
	if f.onOutcome != nil {
		f.onOutcome(o)
	}
	if o.Status != StatusSkipped {
		return
	}
	fields := []zap.Field{
		zap.Stringer("key", o.Key),
		zap.String("url", o.URL),
		zap.String("reason", string(o.Reason)),
		zap.Int("attempts", o.Attempts),
	}
	if o.StatusCode != 0 {
		fields = append(fields, zap.Int("status_code", o.StatusCode))
	}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err))
	}
	f.logger.Debug("skipped article", fields...)
}

func (f *Fetcher) logStats(msg string, s Stats, records int) {
	fields := []zap.Field{
		zap.Int("processed", s.Processed),
		zap.Int("added", s.Added),
		zap.Int("already_present", s.AlreadyPresent),
		zap.Int("skipped", s.Skipped),
		zap.Int("summaries_missing", s.SummariesMissing),
		zap.Int("records", records),
	}
	for reason, n := range s.ByReason {
		fields = append(fields, zap.Int("skipped_"+string(reason), n))
	}
	f.logger.Info(msg, fields...)
}
