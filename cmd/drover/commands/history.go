package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		historyDB string
		limit     int
		runID     string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded with --history-db, newest first. With --run, show the
per-task results of one run instead.`,
		Example: `  drover history --history-db ~/.drover/history.db
  drover history --history-db ~/.drover/history.db --run 5f3a...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := stores.Open(cmd.Context(), historyDB)
			if err != nil {
				return err
			}
			defer store.Close()

			if runID != "" {
				results, err := store.ListResults(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(results)
				}
				for _, r := range results {
					name := r.Task
					if r.Handler {
						name = "handler: " + name
					}
					fmt.Printf("%-8s %-10s %-32s %s\n", r.Status, r.Module, name, r.Reason)
				}
				return nil
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			for _, r := range runs {
				status := "ok"
				if r.Failed {
					status = "failed"
				}
				if r.DryRun {
					status += " (dry-run)"
				}
				fmt.Printf("%s  %-24s %-16s %d host(s)  %s  %s\n",
					r.ID, r.Play, status, r.Hosts,
					r.StartedAt.Local().Format(time.RFC3339), r.Duration.Round(time.Millisecond))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&historyDB, "history-db", "", "SQLite history database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show task results for this run ID")
	_ = cmd.MarkFlagRequired("history-db")
	return cmd
}
