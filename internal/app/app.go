// Package app holds the long-lived services a command needs and runs the
// pipeline stages against them. It is built once per process by the cobra
// root command and closed when the command finishes.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/browser"
	chromedpbrowser "github.com/JakeFAU/sbnation-corpus/internal/browser/chromedp"
	"github.com/JakeFAU/sbnation-corpus/internal/checkpoint"
	"github.com/JakeFAU/sbnation-corpus/internal/config"
	"github.com/JakeFAU/sbnation-corpus/internal/content"
	collyfetcher "github.com/JakeFAU/sbnation-corpus/internal/fetcher/colly"
	"github.com/JakeFAU/sbnation-corpus/internal/id/uuid"
	"github.com/JakeFAU/sbnation-corpus/internal/progress"
	progresssinks "github.com/JakeFAU/sbnation-corpus/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/sbnation-corpus/internal/publisher/pubsub"
	"github.com/JakeFAU/sbnation-corpus/internal/server"
	"github.com/JakeFAU/sbnation-corpus/internal/storage"
	gcsstorage "github.com/JakeFAU/sbnation-corpus/internal/storage/gcs"
	localstorage "github.com/JakeFAU/sbnation-corpus/internal/storage/local"
	memorystorage "github.com/JakeFAU/sbnation-corpus/internal/storage/memory"
	"github.com/JakeFAU/sbnation-corpus/internal/telemetry"
)

// BrowserFactory opens a fresh browser session for the links stage.
type BrowserFactory func() browser.Browser

// App holds all the shared, long-lived services for one command.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	runID     string
	objects   storage.ObjectStore
	publisher checkpoint.Publisher
	progress  *progress.Fanout
	snapshot  *progresssinks.Snapshot
	server    *server.Server
	browsers  BrowserFactory
	pages     content.PageFetcher
	closers   []func(context.Context) error
}

// Option customizes how New wires the App.
type Option func(*App)

// WithObjectStore bypasses the configured storage backend.
func WithObjectStore(objects storage.ObjectStore) Option {
	return func(a *App) { a.objects = objects }
}

// WithPublisher bypasses the configured Pub/Sub publisher.
func WithPublisher(p checkpoint.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithBrowserFactory replaces the chromedp session used by the links stage.
func WithBrowserFactory(f BrowserFactory) Option {
	return func(a *App) { a.browsers = f }
}

// WithPageFetcher replaces the colly fetcher used by the content stage.
func WithPageFetcher(f content.PageFetcher) Option {
	return func(a *App) { a.pages = f }
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(a *App) { a.runID = id }
}

// New builds the App from cfg. It fails fast if a configured backend cannot
// be reached.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.runID == "" {
		id, err := uuid.New().NewID()
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
		a.runID = id
	}
	a.logger = logger.With(zap.String("run_id", a.runID))

	tp, err := telemetry.InitTracerProvider(ctx, "sbcorpus", a.runID)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)

	if a.objects == nil {
		objects, err := a.openStorage(ctx)
		if err != nil {
			a.closeAll(ctx)
			return nil, err
		}
		a.objects = objects
	}

	if a.publisher == nil && cfg.Notify.Enabled() {
		pub, err := gcppublisher.Dial(ctx, cfg.Notify.ProjectID)
		if err != nil {
			a.closeAll(ctx)
			return nil, fmt.Errorf("initialize publisher: %w", err)
		}
		a.logger.Info("publishing checkpoint notifications", zap.String("topic", cfg.Notify.Topic))
		a.publisher = pub
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
	}

	a.snapshot = progresssinks.NewSnapshot()
	a.progress = progress.NewFanout(a.logger,
		progresssinks.NewLogSink(a.logger),
		progresssinks.NewPrometheusSink(),
		a.snapshot,
	)
	a.closers = append(a.closers, a.progress.Close)

	if cfg.Metrics.ListenAddr != "" {
		a.server = server.New(a.snapshot, a.logger)
		if _, err := a.server.Start(cfg.Metrics.ListenAddr); err != nil {
			a.closeAll(ctx)
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
		a.closers = append(a.closers, a.server.Shutdown)
	}

	if a.browsers == nil {
		a.browsers = func() browser.Browser {
			return chromedpbrowser.New(chromedpbrowser.Config{
				Headless:          cfg.Harvest.Headless,
				UserAgent:         cfg.Harvest.UserAgent,
				NavigationTimeout: cfg.Harvest.NavTimeout,
			}, a.logger)
		}
	}
	if a.pages == nil {
		a.pages = collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.Fetch.UserAgent,
			RespectRobots: cfg.Fetch.RespectRobots,
			Timeout:       cfg.Fetch.Timeout,
		})
	}

	a.logger.Info("application services initialized",
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("notify", a.publisher != nil),
		zap.String("metrics_addr", cfg.Metrics.ListenAddr),
	)
	return a, nil
}

func (a *App) openStorage(ctx context.Context) (storage.ObjectStore, error) {
	sc := a.cfg.Storage
	switch sc.Backend {
	case config.BackendLocal:
		a.logger.Info("using local storage", zap.String("base_dir", sc.BaseDir))
		objects, err := localstorage.New(localstorage.Config{BaseDir: sc.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("initialize storage: %w", err)
		}
		return objects, nil
	case config.BackendMemory:
		a.logger.Info("using in-memory storage; nothing will be persisted")
		return memorystorage.NewBlobStore(), nil
	case config.BackendGCS:
		a.logger.Info("using GCS storage", zap.String("bucket", sc.GCSBucket), zap.String("prefix", sc.Prefix))
		objects, err := gcsstorage.Dial(ctx, gcsstorage.Config{Bucket: sc.GCSBucket, Prefix: sc.Prefix})
		if err != nil {
			return nil, fmt.Errorf("initialize storage: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return objects.Close() })
		return objects, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", sc.Backend)
	}
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// RunID identifies this process in logs, progress events and notifications.
func (a *App) RunID() string { return a.runID }

// Objects returns the storage backend.
func (a *App) Objects() storage.ObjectStore { return a.objects }

// Progress returns the latest progress event per stage.
func (a *App) Progress() []progress.Event { return a.snapshot.Latest() }

// Close releases every resource in reverse order of acquisition and syncs the
// logger.
func (a *App) Close(ctx context.Context) error {
	err := a.closeAll(ctx)
	_ = a.logger.Sync()
	return err
}

func (a *App) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
