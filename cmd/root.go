// Package cmd implements the tvguidefetch CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"os"

	"github.com/derickschaefer/tvguidefetch/internal/app"
	"github.com/derickschaefer/tvguidefetch/internal/config"
	"github.com/derickschaefer/tvguidefetch/internal/render"
	"github.com/spf13/cobra"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	ConfigFile string
	Format     string
	Out        string
	Quiet      bool
	Verbose    bool
	Debug      bool
}

// rootCmd runs the grab when invoked without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "tvguidefetch",
	Short: "tvguidefetch: XMLTV grabber for the OzTiVo guide mirrors",
	Long: `tvguidefetch downloads Australian TV guide data from the OzTiVo mirrors,
merges each channel's primary and fillin feeds and writes an XMLTV document.

Downloads are cached; a day whose catalogue timestamp matches the cached copy
is never fetched again.

Quick start:
  tvguidefetch config init          # create a tvguide.yaml channel map
  tvguidefetch channels             # list what the catalogue offers
  tvguidefetch -d 7 -o guide.xml    # grab a week of guide data`,
	Args:          cobra.NoArgs,
	RunE:          runGrab,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// configureDeps runs after the container is built. Tests replace it to
// disable the mirror delays.
var configureDeps = func(*app.Deps) {}

// loadConfig resolves config and applies CLI flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalFlags.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg.Quiet = globalFlags.Quiet
	cfg.Debug = globalFlags.Debug
	return cfg, nil
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE. Log output goes to the
// command's stderr so stdout carries only the document.
func buildDeps(cmd *cobra.Command) (*app.Deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return depsFor(cmd, cfg)
}

// depsFor constructs the container around an already resolved config.
func depsFor(cmd *cobra.Command, cfg *config.Config) (*app.Deps, error) {
	logger := app.NewLogger(cmd.ErrOrStderr(), cfg.Debug, cfg.Quiet)
	deps, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	configureDeps(deps)
	return deps, nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&globalFlags.ConfigFile, "config-file", "c", "",
		"channel map and connection settings (default: ./tvguide.yaml)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"listing format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVarP(&globalFlags.Out, "output", "o", "",
		"write output to file instead of stdout")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress progress messages")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after listings")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log requests and merge decisions")
	_ = rootCmd.RegisterFlagCompletionFunc("format", completeFixed(render.Formats))
}
