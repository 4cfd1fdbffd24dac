package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/checkpoint"
	"github.com/JakeFAU/sbnation-corpus/internal/compiler"
	"github.com/JakeFAU/sbnation-corpus/internal/content"
	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
	"github.com/JakeFAU/sbnation-corpus/internal/extract"
	"github.com/JakeFAU/sbnation-corpus/internal/harvester"
	"github.com/JakeFAU/sbnation-corpus/internal/hash/sha1"
	"github.com/JakeFAU/sbnation-corpus/internal/policy/ratelimit"
	"github.com/JakeFAU/sbnation-corpus/internal/policy/retry"
	"github.com/JakeFAU/sbnation-corpus/internal/progress"
	"github.com/JakeFAU/sbnation-corpus/internal/summary"
	"github.com/JakeFAU/sbnation-corpus/internal/telemetry"
)

// Summary stages accepted by Summary.
const (
	SummaryLinks    = "links"
	SummaryArticles = "articles"
)

// LoadArticleList loads the listing store and logs its summary.
func (a *App) LoadArticleList(ctx context.Context) (*checkpoint.Store[corpus.ArticleInfo], error) {
	store, err := checkpoint.Load[corpus.ArticleInfo](ctx, a.objects, a.cfg.Files.ArticleList)
	if err != nil {
		return nil, err
	}
	a.logger.Info("loaded article list", zap.String("object", store.Name()), zap.Int("records", store.Len()))
	summary.Summarize(store).Log(a.logger, store.Name())
	return store, nil
}

// LoadArticles loads the articles store and logs its summary.
func (a *App) LoadArticles(ctx context.Context) (*checkpoint.Store[corpus.Article], error) {
	store, err := checkpoint.Load[corpus.Article](ctx, a.objects, a.cfg.Files.Articles)
	if err != nil {
		return nil, err
	}
	a.logger.Info("loaded articles", zap.String("object", store.Name()), zap.Int("records", store.Len()))
	summary.Summarize(store).Log(a.logger, store.Name())
	return store, nil
}

func (a *App) checkpointer(stage progress.Stage, target checkpoint.Flusher, every int) *checkpoint.Checkpointer {
	return checkpoint.NewCheckpointer(target, checkpoint.Config{
		Stage: string(stage),
		RunID: a.runID,
		Every: every,
		Topic: a.cfg.Notify.Topic,
	}, a.publisher, a.logger)
}

// Harvest runs the links stage over the configured years and months. The
// article list is flushed after every month.
func (a *App) Harvest(ctx context.Context) (stats harvester.HarvestStats, err error) {
	ctx, end := telemetry.StartStage(ctx, string(progress.StageLinks), a.runID)
	defer func() { end(err) }()

	hc := a.cfg.Harvest
	store, err := a.LoadArticleList(ctx)
	if err != nil {
		return harvester.HarvestStats{}, err
	}

	b := a.browsers()
	defer func() {
		if err := b.Close(); err != nil {
			a.logger.Warn("close browser", zap.Error(err))
		}
	}()

	h, err := harvester.New(b, sha1.New(), harvester.Config{
		ArchiveRoot:    hc.ArchiveRoot,
		RefreshAfter:   hc.RefreshAfter,
		SkipAfter:      hc.SkipAfter,
		ClickDelay:     hc.ClickDelay,
		ClickWait:      hc.ClickWait,
		YearDelay:      hc.YearDelay,
		MaxClicks:      hc.MaxClicks,
		ConsentTimeout: hc.ConsentTimeout,
		Selectors: harvester.Selectors{
			Entry:      hc.Selectors.Entry,
			TitleLink:  hc.Selectors.TitleLink,
			Byline:     hc.Selectors.Byline,
			BylineItem: hc.Selectors.BylineItem,
			Consent:    hc.Selectors.Consent,
			LoadMore:   hc.Selectors.LoadMore,
		},
	}, harvester.WithLogger(a.logger), harvester.WithProgress(a.progress, a.runID))
	if err != nil {
		return harvester.HarvestStats{}, fmt.Errorf("build harvester: %w", err)
	}

	stats, err = h.Run(ctx, hc.Years, hc.Months, store, a.checkpointer(progress.StageLinks, store, 1))
	summary.Summarize(store).Log(a.logger, store.Name())
	return stats, err
}

// FetchContent runs the content stage over every harvested listing.
func (a *App) FetchContent(ctx context.Context) (stats content.Stats, err error) {
	ctx, end := telemetry.StartStage(ctx, string(progress.StageContent), a.runID)
	defer func() { end(err) }()

	fc := a.cfg.Fetch
	infos, err := a.LoadArticleList(ctx)
	if err != nil {
		return content.Stats{}, err
	}
	articles, err := a.LoadArticles(ctx)
	if err != nil {
		return content.Stats{}, err
	}

	parser := extract.New(extract.Selectors{
		Hero:    fc.Selectors.Hero,
		Summary: fc.Selectors.Summary,
		Author:  fc.Selectors.Author,
		Body:    fc.Selectors.Body,
	}, fc.ReadabilityFallback)

	opts := []content.Option{
		content.WithLogger(a.logger),
		content.WithRetry(retry.NewExponential(fc.MaxAttempts, fc.BackoffInitial, fc.BackoffMax)),
		content.WithProgress(a.progress, a.runID, progressEvery(infos.Len())),
	}
	if fc.RatePerSecond > 0 {
		opts = append(opts, content.WithLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   fc.RatePerSecond,
			DefaultBurst: fc.Burst,
		})))
	}
	f, err := content.New(a.pages, parser, opts...)
	if err != nil {
		return content.Stats{}, fmt.Errorf("build content fetcher: %w", err)
	}

	stats, err = f.Run(ctx, infos, articles, a.checkpointer(progress.StageContent, articles, fc.BatchSize))
	summary.Summarize(articles).Log(a.logger, articles.Name())
	return stats, err
}

// Compile writes the corpus for author, or for every author when author is nil.
func (a *App) Compile(ctx context.Context, author *string) (res compiler.Result, err error) {
	ctx, end := telemetry.StartStage(ctx, string(progress.StageCompile), a.runID)
	defer func() { end(err) }()

	c := compiler.New(a.objects, a.logger, a.progress, a.runID)
	return c.Run(ctx, a.cfg.Files.Articles, a.cfg.Files.Corpus, author)
}

// Summary loads the store for stage and summarizes it.
func (a *App) Summary(ctx context.Context, stage string) (summary.Summary, error) {
	switch stage {
	case SummaryLinks:
		store, err := a.LoadArticleList(ctx)
		if err != nil {
			return summary.Summary{}, err
		}
		return summary.Summarize(store), nil
	case SummaryArticles:
		store, err := a.LoadArticles(ctx)
		if err != nil {
			return summary.Summary{}, err
		}
		return summary.Summarize(store), nil
	default:
		return summary.Summary{}, fmt.Errorf("unknown summary stage %q", stage)
	}
}

// progressEvery reports roughly every percent of a stage.
func progressEvery(total int) int {
	if total < 100 {
		return 1
	}
	return total / 100
}
