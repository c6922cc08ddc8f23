package cmd

import (
	"fmt"
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/model"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "List past grabs, newest first",
	Long: `List the run records written after each successful grab: the date
window, how many channels and programmes were written, and what happened to
each resource (fetched, not modified, recently cached, cache valid).

Given a run id (or a unique prefix of one), show only that run.`,
	Example: `  tvguidefetch history
  tvguidefetch history --limit 5 --format csv
  tvguidefetch history 3f2a --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		var runs []model.RunRecord
		if len(args) == 1 {
			run, found, err := deps.Store.GetRun(args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no run matching %q", args[0])
			}
			runs = []model.RunRecord{run}
		} else {
			runs, err = deps.Store.ListRuns(historyLimit)
			if err != nil {
				return fmt.Errorf("reading store: %w", err)
			}
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
			return nil
		}

		result := newResult(model.KindRun, "history", runs, len(runs), started)
		if len(runs) == 1 {
			result.Warnings = runs[0].Warnings
		}
		return emit(cmd, result)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list (0 for all)")
}
