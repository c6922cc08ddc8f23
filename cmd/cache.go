package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/guide"
	"github.com/derickschaefer/tvguidefetch/internal/httpcache"
	"github.com/derickschaefer/tvguidefetch/internal/model"
	"github.com/derickschaefer/tvguidefetch/internal/tvdate"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the downloaded guide files",
	Long: `Commands for the HTTP cache directory (cache_path). Each downloaded
resource is stored as-is next to a .header file holding the response headers
used for conditional requests.

Day files older than today are pruned automatically during a grab.`,
}

// ─── cache list ───────────────────────────────────────────────────────────────

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached resources",
	Example: `  tvguidefetch cache list
  tvguidefetch cache list --format csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		entries, warnings, err := cacheEntries(deps.Cache)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Cache %s is empty.\n", deps.Cache.Dir())
			return nil
		}
		result := newResult(model.KindCacheEntry, "cache list", entries, len(entries), started)
		result.Warnings = warnings
		return emit(cmd, result)
	},
}

// cacheEntries describes every cached resource. An unreadable header is
// reported as a warning and the entry is listed without header fields.
func cacheEntries(c *httpcache.Cache) ([]model.CacheEntry, []string, error) {
	names, err := c.List()
	if err != nil {
		return nil, nil, err
	}
	var (
		entries  []model.CacheEntry
		warnings []string
	)
	for _, name := range names {
		e := model.CacheEntry{Name: name}
		if fi, err := os.Stat(filepath.Join(c.Dir(), name)); err == nil {
			e.Bytes = fi.Size()
		}
		h, err := c.Header(name)
		switch {
		case err == nil:
			e.Encoding = h.Get("Content-Encoding")
			if lm, err := h.LastModified(); err == nil {
				e.LastModified = lm.Format(tvdate.XMLTV)
			}
			if d, err := h.Date(); err == nil {
				e.FetchedAt = d.Format(tvdate.XMLTV)
			}
		case !errors.Is(err, httpcache.ErrNotCached):
			warnings = append(warnings, fmt.Sprintf("%s: %v", name, err))
		}
		entries = append(entries, e)
	}
	return entries, warnings, nil
}

// ─── cache clear ──────────────────────────────────────────────────────────────

var (
	cacheClearAll   bool
	cacheClearStale bool
)

var cacheClearCmd = &cobra.Command{
	Use:   "clear [NAME...]",
	Short: "Delete cached resources",
	Long: `Delete the named cache entries, every day file older than today (--stale)
or everything (--all). The header file is removed with each entry.

The next grab downloads whatever was removed.`,
	Example: `  tvguidefetch cache clear --stale
  tvguidefetch cache clear ABC-NSW_2026-10-14.xml.gz
  tvguidefetch cache clear --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cacheClearAll && !cacheClearStale && len(args) == 0 {
			return fmt.Errorf("specify cache entry names, --stale or --all")
		}

		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()

		var names []string
		switch {
		case cacheClearAll:
			if names, err = deps.Cache.List(); err != nil {
				return err
			}
		case cacheClearStale:
			if names, err = staleDayFiles(deps.Cache, tvdate.Now().DayString()); err != nil {
				return err
			}
		default:
			names = args
		}

		for _, name := range names {
			if err := deps.Cache.Remove(name); err != nil {
				return fmt.Errorf("removing %s: %w", name, err)
			}
			deps.Logger.Debug("Removing cache file", "uri", name)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d cache entries from %s\n", len(names), deps.Cache.Dir())
		return nil
	},
}

// staleDayFiles returns the day files dated before today.
func staleDayFiles(c *httpcache.Cache, today string) ([]string, error) {
	names, err := c.List()
	if err != nil {
		return nil, err
	}
	var stale []string
	for _, name := range names {
		if _, day, ok := guide.ParseDayURI(name); ok && day < today {
			stale = append(stale, name)
		}
	}
	return stale, nil
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().BoolVar(&cacheClearAll, "all", false, "remove every cached resource")
	cacheClearCmd.Flags().BoolVar(&cacheClearStale, "stale", false, "remove day files older than today")
}
