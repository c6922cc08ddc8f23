package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/derickschaefer/tvguidefetch/internal/store"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and manage the local history database",
	Long: `Commands for inspecting and clearing the local bbolt database that holds
saved schedules and run history.

The database is separate from the HTTP cache: clearing it never causes guide
data to be downloaded again.`,
}

// ─── store stats ──────────────────────────────────────────────────────────────

var storeStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  tvguidefetch store stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		stats, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		// Sort by bucket name for deterministic output
		sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n\n", deps.Store.Path())
		printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, s := range stats {
				add(s.Name, fmt.Sprintf("%d", s.Count), humanBytes(s.Bytes))
			}
		})
		return nil
	},
}

// ─── store clear ──────────────────────────────────────────────────────────────

var (
	storeClearAll    bool
	storeClearBucket string
)

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete entries from the local database",
	Long: `Delete entries from one or all buckets.

Note: bbolt does not shrink the database file automatically after clearing.
Free pages are reused internally on the next write. To reclaim disk space,
run 'tvguidefetch store compact' after clearing.`,
	Example: `  tvguidefetch store clear --all
  tvguidefetch store clear --bucket runs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !storeClearAll && storeClearBucket == "" {
			return fmt.Errorf("specify --all or --bucket <n>\n\nBuckets: %s", strings.Join(store.AllBuckets, ", "))
		}

		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		out := cmd.OutOrStdout()
		if storeClearAll {
			if err := deps.Store.ClearAll(); err != nil {
				return fmt.Errorf("clearing all buckets: %w", err)
			}
			fmt.Fprintln(out, "✓ Cleared all buckets")
			fmt.Fprintln(out, "  Run 'tvguidefetch store compact' to reclaim disk space.")
			return nil
		}

		if err := deps.Store.ClearBucket(storeClearBucket); err != nil {
			return fmt.Errorf("clearing bucket %q: %w", storeClearBucket, err)
		}
		fmt.Fprintf(out, "✓ Cleared bucket %q\n", storeClearBucket)
		fmt.Fprintln(out, "  Run 'tvguidefetch store compact' to reclaim disk space.")
		return nil
	},
}

// ─── store compact ────────────────────────────────────────────────────────────

var storeCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the database file to reclaim freed disk space",
	Long: `Compact copies all live data into a fresh bbolt file and replaces the
original with it, recovering space freed by prior 'store clear' operations.`,
	Example: `  tvguidefetch store compact`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		// Compact reopens the underlying bolt.DB; the Store stays usable.
		defer deps.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Compacting %s ...\n", deps.Store.Path())

		before, after, err := deps.Store.Compact()
		if err != nil {
			return fmt.Errorf("compaction failed: %w", err)
		}

		saved := before - after
		fmt.Fprintf(out, "✓ Compaction complete\n")
		fmt.Fprintf(out, "  Before: %s\n", humanBytes(before))
		fmt.Fprintf(out, "  After:  %s\n", humanBytes(after))
		if saved > 0 {
			fmt.Fprintf(out, "  Saved:  %s\n", humanBytes(saved))
		} else {
			fmt.Fprintln(out, "  No space reclaimed (database was already compact).")
		}
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeCompactCmd)

	storeClearCmd.Flags().BoolVar(&storeClearAll, "all", false, "clear all buckets")
	storeClearCmd.Flags().StringVar(&storeClearBucket, "bucket", "",
		"clear a specific bucket: "+strings.Join(store.AllBuckets, "|"))
	_ = storeClearCmd.RegisterFlagCompletionFunc("bucket", completeFixed(store.AllBuckets))
}
