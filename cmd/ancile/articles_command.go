package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ancile/internal/news"
	"ancile/internal/store"
)

func newArticlesCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List processed articles",
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

			status := news.StatusPublished
			if statusFlag != "" {
				parsed, ok := news.ParseArticleStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown article status %q", statusFlag)
				}
				status = parsed
			}

			articles, err := st.ArticlesByStatus(cmd.Context(), status)
			if err != nil {
				return fmt.Errorf("list articles: %w", err)
			}
			if len(articles) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s articles\n", status)
				return nil
			}

			rows := make([][]string, 0, len(articles))
			for _, article := range articles {
				rows = append(rows, []string{
					strconv.FormatInt(article.ID, 10),
					string(article.Category),
					truncate(article.Title, 50),
					strconv.Itoa(article.WordCount),
					fmt.Sprintf("%.2f", article.RelevanceScore),
					formatStatus(string(article.Status)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Category", "Title", "Words", "Score", "Status"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Article status to list (default published)")
	return cmd
}
