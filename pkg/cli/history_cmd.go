package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dataframehub/internal/domain"
	"dataframehub/internal/service/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune the query history",
	}
	cmd.AddCommand(newHistoryListCmd(a))
	cmd.AddCommand(newHistoryPruneCmd(a))
	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	var (
		organization, dataset, status, pageToken string
		maxResults                               int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executed queries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStack(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			filter := domain.QueryHistoryFilter{
				Page: domain.PageRequest{MaxResults: maxResults, PageToken: pageToken},
			}
			if organization != "" {
				filter.Organization = &organization
			}
			if dataset != "" {
				filter.Dataset = &dataset
			}
			if status != "" {
				s := strings.ToUpper(status)
				filter.Status = &s
			}

			entries, total, err := st.service.History(cmd.Context(), filter)
			if err != nil {
				return err
			}
			next := domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total)

			if outputFormat(cmd) == outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"entries":         historyJSON(entries),
					"total":           total,
					"next_page_token": next,
				})
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rowsReturned := ""
				if e.RowsReturned != nil {
					rowsReturned = strconv.FormatInt(*e.RowsReturned, 10)
				}
				rows = append(rows, []string{
					e.CreatedAt.UTC().Format(time.RFC3339),
					domain.DatasetKey(e.Organization, e.Dataset),
					e.Principal,
					e.Status,
					rowsReturned,
					strconv.FormatInt(e.DurationMs, 10),
					deref(e.ErrorMessage),
				})
			}
			if err := printTable(cmd.OutOrStdout(), []string{"created_at", "dataset", "principal", "status", "rows", "ms", "error"}, rows); err != nil {
				return err
			}
			if next != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "More entries: --page-token %s\n", next)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&organization, "organization", "", "Only entries for this organization")
	flags.StringVar(&dataset, "dataset", "", "Only entries for this dataset")
	flags.StringVar(&status, "status", "", "Only entries with this status (success, error)")
	flags.IntVar(&maxResults, "max-results", 0, "Page size")
	flags.StringVar(&pageToken, "page-token", "", "Token of the page to fetch")
	return cmd
}

func historyJSON(entries []domain.QueryHistoryEntry) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		m := map[string]interface{}{
			"id":           e.ID,
			"organization": e.Organization,
			"dataset":      e.Dataset,
			"principal":    e.Principal,
			"status":       e.Status,
			"duration_ms":  e.DurationMs,
			"created_at":   e.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if e.Description != nil {
			m["description"] = *e.Description
		}
		if e.CompiledSQL != nil {
			m["compiled_sql"] = *e.CompiledSQL
		}
		if e.ErrorMessage != nil {
			m["error_message"] = *e.ErrorMessage
		}
		if e.RowsReturned != nil {
			m["rows_returned"] = *e.RowsReturned
		}
		out = append(out, m)
	}
	return out
}

func newHistoryPruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history entries older than the retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			retention := a.cfg.HistoryRetention
			if cmd.Flags().Changed("older-than") {
				retention = olderThan
			}
			st, err := a.openStack(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			pruner, err := history.NewPruner(st.history, retention, a.cfg.HistoryPruneSchedule, a.logger)
			if err != nil {
				return err
			}
			n, err := pruner.Prune(cmd.Context())
			if err != nil {
				return err
			}
			if outputFormat(cmd) == outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]int64{"deleted": n})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Retention to apply instead of HISTORY_RETENTION")
	return cmd
}
