package cmd

import (
	"os"
	"strings"

	"github.com/derickschaefer/tvguidefetch/internal/config"
	"github.com/derickschaefer/tvguidefetch/internal/httpcache"
	"github.com/derickschaefer/tvguidefetch/internal/store"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Print a completion script for your shell.

Besides commands and flags, the scripts complete values read from your own
setup: channel ids for 'schedule show' (saved schedules, then the channel
map in tvguide.yaml), run ids for 'history', file names for 'cache clear'
and bucket names for 'store clear --bucket'.

  source <(tvguidefetch completion bash)
  tvguidefetch completion fish > ~/.config/fish/completions/tvguidefetch.fish`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.ExactValidArgs(1),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, out := cmd.Root(), cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(out, true)
		case "zsh":
			return root.GenZshCompletion(out)
		case "fish":
			return root.GenFishCompletion(out, true)
		default:
			return root.GenPowerShellCompletionWithDesc(out)
		}
	},
}

// ─── Value completion ─────────────────────────────────────────────────────────

// Completion runs inside the user's shell: every failure yields no
// suggestions rather than an error.

const noFiles = cobra.ShellCompDirectiveNoFileComp

// withStore runs fn against an existing history database. Completion never
// creates the database or the cache directory.
func withStore(cfg *config.Config, fn func(*store.Store) []string) []string {
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil
	}
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil
	}
	defer s.Close()
	return fn(s)
}

func matching(candidates []string, prefix string) []string {
	var out []string
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// channelIDs lists channels with a saved schedule first, then the output
// ids of the configured channel map.
func channelIDs(cfg *config.Config, saved []string) []string {
	ids := append([]string(nil), saved...)
	for _, ch := range cfg.Channels {
		if ch.ID != "" {
			ids = append(ids, ch.ID)
		} else {
			ids = append(ids, ch.OztivoID)
		}
	}
	return ids
}

func completeChannels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, noFiles
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, noFiles
	}
	saved := withStore(cfg, func(s *store.Store) []string {
		list, err := s.ListSchedules()
		if err != nil {
			return nil
		}
		ids := make([]string, len(list))
		for i, sum := range list {
			ids[i] = sum.ChannelID
		}
		return ids
	})
	return matching(channelIDs(cfg, saved), toComplete), noFiles
}

func completeRuns(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, noFiles
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, noFiles
	}
	ids := withStore(cfg, func(s *store.Store) []string {
		runs, err := s.ListRuns(historyLimit)
		if err != nil {
			return nil
		}
		ids := make([]string, len(runs))
		for i, r := range runs {
			ids[i] = r.ID
		}
		return ids
	})
	return matching(ids, toComplete), noFiles
}

func completeCacheNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, noFiles
	}
	if _, err := os.Stat(cfg.CachePath); err != nil {
		return nil, noFiles
	}
	c, err := httpcache.New(cfg.CachePath)
	if err != nil {
		return nil, noFiles
	}
	names, err := c.List()
	if err != nil {
		return nil, noFiles
	}
	return matching(names, toComplete), noFiles
}

func completeFixed(values []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return matching(values, toComplete), noFiles
	}
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(completionCmd)

	scheduleShowCmd.ValidArgsFunction = completeChannels
	historyCmd.ValidArgsFunction = completeRuns
	cacheClearCmd.ValidArgsFunction = completeCacheNames
}
