package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"ancile/internal/config"
	"ancile/internal/ingest"
	"ancile/internal/logging"
	"ancile/internal/notifications"
	"ancile/internal/pipeline"
	"ancile/internal/publish"
	"ancile/internal/publish/social"
	"ancile/internal/publish/strapi"
	"ancile/internal/relevance"
	"ancile/internal/rewrite"
	"ancile/internal/services/gemini"
	"ancile/internal/store"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var maxArticles int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline pass",
		Long: `Run ingests the configured feeds, filters and rewrites new items, and
drains the publish queue. Only one run may execute at a time; a second
invocation exits immediately instead of queueing behind the first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lock := flock.New(cfg.LockPath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another run is already in progress (lock %s)", cfg.LockPath())
			}
			defer lock.Unlock()

			logger, err := logging.NewForRun(cfg.Paths.LogDir, cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			orchestrator, st, err := buildPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			report, runErr := orchestrator.Run(runCtx, pipeline.Options{
				DryRun:      dryRun,
				MaxArticles: maxArticles,
			})
			printReport(cmd, report)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Score and report items without rewriting or publishing")
	cmd.Flags().IntVar(&maxArticles, "max-articles", 0, "Override the per-run article quota")
	return cmd
}

// buildPipeline assembles every stage from configuration. The caller owns
// closing the returned store.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Orchestrator, *store.Store, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	notifier := notifications.NewService(cfg)
	sources := ingest.NewSources(cfg.Ingest, logger)
	filter := relevance.New(cfg.Relevance)

	geminiOpts := []gemini.Option{
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithModel(cfg.Gemini.Model),
	}
	if cfg.Gemini.TimeoutSeconds > 0 {
		geminiOpts = append(geminiOpts, gemini.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
		}))
	}
	rewriter := gemini.NewClient(cfg.Gemini.APIKey, geminiOpts...)
	stage := rewrite.NewStage(rewriter, cfg.Rewrite, logger)

	publishers := []publish.Publisher{strapi.New(cfg.Strapi)}
	if cfg.Social.Enabled {
		publishers = append(publishers, social.New(cfg.Social))
	}
	queue := publish.NewQueue(st, logger)
	dispatcher := publish.NewDispatcher(st, cfg.Publish, logger, publishers...).WithNotifier(notifier)

	orchestrator := pipeline.New(cfg, st, sources, filter, stage, queue, dispatcher, notifier, logger)
	return orchestrator, st, nil
}

func printReport(cmd *cobra.Command, report *pipeline.RunReport) {
	if report == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s finished in %s (dry run: %s)\n",
		report.RunID, report.Duration.Round(time.Millisecond), yesNo(report.DryRun))
	fmt.Fprintf(out, "  ingested:        %d (%d source errors)\n", report.Ingested, report.SourceErrors)
	fmt.Fprintf(out, "  duplicates:      %d\n", report.Deduplicated)
	fmt.Fprintf(out, "  below threshold: %d\n", report.FilteredOut)
	fmt.Fprintf(out, "  over quota:      %d\n", report.QuotaSkipped)
	fmt.Fprintf(out, "  past deadline:   %d\n", report.DeadlineSkipped)
	fmt.Fprintf(out, "  rewritten:       %d\n", report.Rewritten)
	fmt.Fprintf(out, "  rewrite failed:  %d\n", report.RewriteFailed)
	for channel, delivered := range report.Delivered {
		fmt.Fprintf(out, "  delivered to %s: %d\n", channel, delivered)
	}
	for channel, failed := range report.Failed {
		fmt.Fprintf(out, "  failed on %s: %d\n", channel, failed)
	}
	for _, outcome := range report.Skipped {
		if outcome.Reason == pipeline.SkipRewriteFailed {
			fmt.Fprintf(out, "  ! %s: %s\n", outcome.Title, outcome.Detail)
		}
	}
}
