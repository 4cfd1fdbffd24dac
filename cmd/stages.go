package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/app"
)

func newLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links",
		Short: "Harvests article links from the monthly archive pages",
		Long: `Opens every configured archive month in a headless browser, clicks
"load more" until the whole month is listed and records one entry per
article in the article list store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := a.Harvest(cmd.Context())
			a.Logger().Info("links stage finished",
				zap.Int("months", stats.Months),
				zap.Int("months_failed", stats.MonthsFailed),
				zap.Int("months_abandoned", stats.MonthsAbandoned),
				zap.Int("clicks", stats.Clicks),
				zap.Int("added", stats.Added),
				zap.Int("duplicates", stats.Duplicates),
				zap.Int("skipped", stats.Skipped),
			)
			if err != nil {
				return fmt.Errorf("harvest links: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d listings across %d months\n", stats.Added, stats.Months)
			return nil
		},
	}
}

func newContentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "content",
		Short: "Fetches the text of every harvested article",
		Long: `Fetches each listing that is not yet in the articles store, extracts
its summary, byline and body and stores the synthesized content. Failed
listings stay absent so the next run retries them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := a.FetchContent(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch content: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d articles, %d already present, %d skipped\n",
				stats.Added, stats.AlreadyPresent, stats.Skipped)
			return nil
		},
	}
}

func newCompileCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Writes the stored articles as a single corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var author *string
			if name := a.Config().Compile.Author; name != "" {
				author = &name
			}
			res, err := a.Compile(cmd.Context(), author)
			if err != nil {
				return fmt.Errorf("compile corpus: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d articles (%d bytes) to %s\n", res.Articles, res.Bytes, res.URI)
			return nil
		},
	}
	cmd.Flags().String("author", "", "only include articles by this author (case-insensitive)")
	cmd.Flags().String("output", "corpus.txt", "object path of the compiled corpus")
	mustBind(v, "compile.author", cmd.Flags().Lookup("author"))
	mustBind(v, "files.corpus", cmd.Flags().Lookup("output"))
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var stage string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Prints per-month and per-author counts for a store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			s, err := a.Summary(cmd.Context(), stage)
			if err != nil {
				return err
			}
			title := "Articles"
			if stage == app.SummaryLinks {
				title = "Listings"
			}
			s.Render(cmd.OutOrStdout(), title)
			return nil
		},
	}
	cmd.Flags().StringVar(&stage, "stage", app.SummaryArticles, "store to summarize (links or articles)")
	return cmd
}
