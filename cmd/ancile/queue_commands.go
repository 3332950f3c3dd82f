package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ancile/internal/news"
	"ancile/internal/store"
)

var statusTitle = cases.Title(language.English)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the publish queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List publish tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			status := news.TaskFailedTerminal
			if statusFlag != "" {
				parsed, ok := news.ParseTaskStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown task status %q", statusFlag)
				}
				status = parsed
			}

			tasks, err := st.TasksByStatus(cmd.Context(), status)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			if len(tasks) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s tasks\n", status)
				return nil
			}

			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				rows = append(rows, []string{
					strconv.FormatInt(task.ID, 10),
					strconv.FormatInt(task.ArticleID, 10),
					string(task.Channel),
					formatStatus(string(task.Status)),
					strconv.Itoa(task.AttemptCount),
					formatTaskTime(task),
					truncate(task.LastError, 60),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Article", "Channel", "Status", "Attempts", "Next / Delivered", "Last Error"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Task status to list (default failed_terminal)")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue counts per channel and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			stats, err := st.TaskStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("queue stats: %w", err)
			}

			rows := make([][]string, 0)
			for _, channel := range news.AllChannels() {
				byStatus, ok := stats[channel]
				if !ok {
					continue
				}
				for _, status := range []news.TaskStatus{
					news.TaskPending,
					news.TaskInFlight,
					news.TaskDelivered,
					news.TaskFailedRetryable,
					news.TaskFailedTerminal,
				} {
					if count := byStatus[status]; count > 0 {
						rows = append(rows, []string{
							string(channel),
							formatStatus(string(status)),
							strconv.Itoa(count),
						})
					}
				}
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Channel", "Status", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [task-id...]",
		Short: "Requeue terminally failed tasks",
		Long: `Retry resets failed_terminal tasks back to pending with a clean attempt
counter. Without arguments every terminally failed task is requeued.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid task id %q", arg)
				}
				ids = append(ids, id)
			}

			requeued, err := st.RetryTerminalTasks(cmd.Context(), ids...)
			if err != nil {
				return fmt.Errorf("retry tasks: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d task(s)\n", requeued)
			return nil
		},
	}
}

func formatStatus(status string) string {
	return statusTitle.String(strings.ReplaceAll(status, "_", " "))
}

func formatTaskTime(task *news.PublishTask) string {
	if task.DeliveredAt != nil {
		return task.DeliveredAt.Local().Format(time.DateTime)
	}
	if task.NextAttemptAt != nil {
		return task.NextAttemptAt.Local().Format(time.DateTime)
	}
	return "-"
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
