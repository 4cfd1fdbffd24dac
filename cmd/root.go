// Package cmd defines the sbcorpus command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/app"
	"github.com/JakeFAU/sbnation-corpus/internal/config"
	"github.com/JakeFAU/sbnation-corpus/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// session carries the App from PersistentPreRunE to the point where it is
// closed, which also has to happen when RunE fails.
type session struct {
	app *app.App
}

func (s *session) close(ctx context.Context) {
	if s.app == nil {
		return
	}
	if err := s.app.Close(context.WithoutCancel(ctx)); err != nil {
		fmt.Fprintf(os.Stderr, "close application: %v\n", err)
	}
	s.app = nil
}

func newRootCmd(s *session) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "sbcorpus",
		Short: "Builds a text corpus from an SB Nation team blog.",
		Long: `sbcorpus harvests article links from an SB Nation archive, fetches
every article's text and compiles the stored articles into a single corpus
suitable for language-model fine-tuning. Each stage checkpoints its output
so an interrupted run resumes where it stopped.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := cfgFile
			if path == "" {
				path = config.Discover(config.SearchPaths())
			}
			cfg, err := config.LoadWith(v, path)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
				File:        cfg.Logging.File,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if path != "" {
				logger.Info("using config file", zap.String("path", path))
			}

			a, err := newApp(cmd.Context(), &cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			s.app = a
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			s.close(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./sbcorpus.yaml, ~/.sbcorpus/sbcorpus.yaml or /etc/sbcorpus/sbcorpus.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("dev", false, "human-friendly console logging")
	flags.String("storage", config.BackendLocal, "storage backend (local, memory, gcs)")
	flags.String("data-dir", "scraped_data", "base directory for the local storage backend")
	flags.String("metrics-addr", "", "serve /metrics, /progress and /healthz on this address")
	mustBind(v, "logging.level", flags.Lookup("log-level"))
	mustBind(v, "logging.development", flags.Lookup("dev"))
	mustBind(v, "storage.backend", flags.Lookup("storage"))
	mustBind(v, "storage.base_dir", flags.Lookup("data-dir"))
	mustBind(v, "metrics.listen_addr", flags.Lookup("metrics-addr"))

	cmd.AddCommand(
		newLinksCmd(),
		newContentCmd(),
		newCompileCmd(v),
		newSummaryCmd(),
	)
	return cmd
}

// Execute runs the CLI until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	s := &session{}
	err := newRootCmd(s).ExecuteContext(ctx)
	s.close(ctx)
	stop()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted; progress up to the last checkpoint is saved")
		}
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}
