package cmd

import (
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/guide"
	"github.com/derickschaefer/tvguidefetch/internal/model"
	"github.com/spf13/cobra"
)

var channelsConfigured bool

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the channels the catalogue offers",
	Long: `Fetch the catalogue (datalist) and list every channel it offers.

Channels named in the channel map are marked configured. With --configured
only the channel map is listed, with local overrides and fillin feeds applied
exactly as a grab would use them.`,
	Example: `  tvguidefetch channels
  tvguidefetch channels --configured
  tvguidefetch channels --format csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		started := time.Now()
		deps, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer deps.Close()
		cfg := deps.Config

		asm := guide.NewAssembler(deps.Client, deps.Cache, guide.Options{Logger: deps.Logger})
		cat, err := asm.FetchCatalogue(cmd.Context(), cfg.BaseURLs, cfg.Datalist)
		if err != nil {
			return err
		}

		var (
			chans    []*guide.Channel
			warnings []string
		)
		if channelsConfigured {
			chans, warnings, err = guide.ResolveChannels(cat, cfg.Channels, deps.Logger)
		} else {
			chans, err = cat.Channels()
		}
		if err != nil {
			return err
		}

		configured := make(map[string]bool, len(cfg.Channels))
		for _, c := range cfg.Channels {
			configured[c.OztivoID] = true
		}
		infos := make([]model.ChannelInfo, 0, len(chans))
		for _, ch := range chans {
			info := ch.Info()
			info.Configured = info.Configured || configured[info.OztivoID]
			infos = append(infos, info)
		}

		result := newResult(model.KindChannel, "channels", infos, len(infos), started)
		result.Warnings = warnings
		return emit(cmd, result)
	},
}

func init() {
	rootCmd.AddCommand(channelsCmd)
	channelsCmd.Flags().BoolVar(&channelsConfigured, "configured", false,
		"list only the channel map, with overrides applied")
}
