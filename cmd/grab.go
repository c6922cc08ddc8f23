package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/derickschaefer/tvguidefetch/internal/app"
	"github.com/derickschaefer/tvguidefetch/internal/config"
	"github.com/derickschaefer/tvguidefetch/internal/fetch"
	"github.com/derickschaefer/tvguidefetch/internal/guide"
	"github.com/derickschaefer/tvguidefetch/internal/model"
	"github.com/derickschaefer/tvguidefetch/internal/store"
	"github.com/spf13/cobra"
)

// capabilities are the XMLTV grabber capabilities this grabber supports.
var capabilities = []string{"baseline", "manualconfig", "preferredmethod"}

const (
	preferredMethod = "allatonce"
	maxTimezone     = 12 * 60
)

var grabFlags struct {
	Days            int
	Offset          int
	Timezone        int
	Description     bool
	Capabilities    bool
	PreferredMethod bool
	Version         bool
	NoHistory       bool
}

// forcedOffset returns the --timezone override in seconds, or nil when the
// flag was not given.
func forcedOffset(cmd *cobra.Command) (*int, error) {
	if !cmd.Flags().Changed("timezone") {
		return nil, nil
	}
	tz := grabFlags.Timezone
	if tz < -maxTimezone || tz > maxTimezone {
		return nil, fmt.Errorf("--timezone %d out of range (-%d to %d minutes)", tz, maxTimezone, maxTimezone)
	}
	secs := tz * 60
	return &secs, nil
}

// introspect handles the XMLTV grabber query flags. It reports whether one
// was given.
func introspect(cmd *cobra.Command) bool {
	out := cmd.OutOrStdout()
	switch {
	case grabFlags.Description:
		fmt.Fprintln(out, fetch.Description)
	case grabFlags.Capabilities:
		fmt.Fprintln(out, strings.Join(capabilities, "\n"))
	case grabFlags.PreferredMethod:
		fmt.Fprintln(out, preferredMethod)
	case grabFlags.Version:
		fmt.Fprintf(out, "%s version %s\n", fetch.Name, fetch.Version)
	default:
		return false
	}
	return true
}

func runGrab(cmd *cobra.Command, args []string) error {
	if introspect(cmd) {
		return nil
	}
	forced, err := forcedOffset(cmd)
	if err != nil {
		return err
	}
	started := time.Now()
	window, err := guide.NewWindow(started, grabFlags.Offset, grabFlags.Days)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	deps, err := depsFor(cmd, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()
	log := deps.Logger
	log.Debug("options",
		"config", cfg.ConfigPath, "cache", cfg.CachePath, "days", grabFlags.Days,
		"offset", grabFlags.Offset, "output", globalFlags.Out, "user", cfg.Username,
		"password", cfg.RedactedPassword())

	ctx := cmd.Context()
	asm := guide.NewAssembler(deps.Client, deps.Cache, guide.Options{ForcedOffset: forced, Logger: log})
	cat, err := asm.FetchCatalogue(ctx, cfg.BaseURLs, cfg.Datalist)
	if err != nil {
		return err
	}
	channels, warnings, err := guide.ResolveChannels(cat, cfg.Channels, log)
	if err != nil {
		return err
	}
	g, err := asm.Run(ctx, channels, window)
	if err != nil {
		return err
	}

	log.Info("Generating xmltv output file")
	w, closeFn, err := outputWriter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := guide.WriteXMLTV(w, g); err != nil {
		closeFn()
		return fmt.Errorf("writing guide: %w", err)
	}
	if err := closeFn(); err != nil {
		return fmt.Errorf("writing guide: %w", err)
	}

	if !grabFlags.NoHistory {
		if err := recordRun(deps, g, started, warnings); err != nil {
			log.Warn("history not saved", "error", err)
		}
	}
	log.Info("All done.")
	return nil
}

// recordRun persists each channel's final schedule and a run summary.
func recordRun(deps *app.Deps, g *guide.Guide, started time.Time, warnings []string) error {
	if err := deps.RequireStore(); err != nil {
		return err
	}
	runID := store.NewRunID()
	for _, rec := range g.Records(runID) {
		if err := deps.Store.PutSchedule(rec); err != nil {
			return err
		}
	}
	run, err := deps.Store.PutRun(model.RunRecord{
		ID:         runID,
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Today:      g.Window.Today,
		FirstDay:   g.Window.First,
		LastDay:    g.Window.Last,
		Channels:   len(g.Entries),
		Programmes: g.Programmes(),
		Counts:     g.Counts,
		Output:     globalFlags.Out,
		Mirror:     deps.Selector.Last(),
		Warnings:   warnings,
	})
	if err != nil {
		return err
	}
	deps.Logger.Debug("run recorded", "id", run.ID)
	return nil
}

func init() {
	f := rootCmd.Flags()
	f.IntVarP(&grabFlags.Days, "days", "d", config.DefaultDays,
		"number of days of guide data to grab")
	f.IntVar(&grabFlags.Offset, "offset", 0,
		"start this many days after today")
	f.IntVar(&grabFlags.Timezone, "timezone", 0,
		"report every programme at this UTC offset in minutes (-720 to 720)")
	f.BoolVar(&grabFlags.Description, "description", false,
		"print the grabber description and exit")
	f.BoolVar(&grabFlags.Capabilities, "capabilities", false,
		"print the supported grabber capabilities and exit")
	f.BoolVar(&grabFlags.PreferredMethod, "preferredmethod", false,
		"print the preferred grab method and exit")
	f.BoolVarP(&grabFlags.Version, "version", "v", false,
		"print the grabber version and exit")
	f.BoolVar(&grabFlags.NoHistory, "no-history", false,
		"do not record the run in the history store")
}
