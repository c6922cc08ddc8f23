package cmd

import (
	"fmt"
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/model"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect the merged schedules saved by the last grab",
	Long: `Every successful grab saves each channel's final merged schedule to the
local database, replacing the previous one. These commands read it back
without touching the network.`,
}

// ─── schedule list ────────────────────────────────────────────────────────────

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved channel schedules",
	Example: `  tvguidefetch schedule list
  tvguidefetch schedule list --format json`,
	Args: cobra.NoArgs,
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

		list, err := deps.Store.ListSchedules()
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No schedules saved yet.")
			fmt.Fprintln(cmd.OutOrStdout(), "  Run a grab first: tvguidefetch -o guide.xml")
			return nil
		}
		return emit(cmd, newResult(model.KindScheduleList, "schedule list", list, len(list), started))
	},
}

// ─── schedule show ────────────────────────────────────────────────────────────

var scheduleShowCmd = &cobra.Command{
	Use:   "show CHANNEL",
	Short: "Show the saved programmes of one channel",
	Example: `  tvguidefetch schedule show ABC-NSW
  tvguidefetch schedule show ABC-NSW --format csv`,
	Args: cobra.ExactArgs(1),
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

		rec, found, err := deps.Store.GetSchedule(args[0])
		if err != nil {
			return fmt.Errorf("reading store: %w", err)
		}
		if !found {
			return fmt.Errorf("no saved schedule for channel %q (see 'tvguidefetch schedule list')", args[0])
		}
		return emit(cmd, newResult(model.KindSchedule, "schedule show", &rec, len(rec.Programmes), started))
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleShowCmd)
}
