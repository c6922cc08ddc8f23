package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/derickschaefer/tvguidefetch/internal/fetch"
	"github.com/spf13/cobra"
)

// Version is the canonical release string. The default here is the fallback
// for `go run` and untagged builds. Production builds overwrite this via:
//
//	go build -ldflags "-X github.com/derickschaefer/tvguidefetch/cmd.Version=v1.1.1"
//
// The grabber version reported by --version and the user agent is
// fetch.Version; this one tracks CLI releases.
var Version = "v1.1.0"

// versionInfo is the structured payload for --format json output.
// All fields are exported so encoding/json picks them up.
type versionInfo struct {
	Version   string `json:"version"`
	Grabber   string `json:"grabber"`
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
	BuildTime string `json:"build_time,omitempty"`
}

// BuildTime is optionally injected at build time alongside Version:
//
//	-ldflags "-X github.com/derickschaefer/tvguidefetch/cmd.Version=v1.1.1
//	           -X github.com/derickschaefer/tvguidefetch/cmd.BuildTime=2026-10-14T12:00:00Z"
var BuildTime = ""

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tvguidefetch version and build information",
	Long: `Print the tvguidefetch version string and build metadata.

Default output is plain text, suitable for shell scripts and pipelines.
Use --format json for structured output.

Examples:
  tvguidefetch version
  tvguidefetch version --format json
  tvguidefetch version --format json | jq .version`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := globalFlags.Format
		if format == "" {
			format = "text"
		}

		info := versionInfo{
			Version:   Version,
			Grabber:   fetch.Name + " " + fetch.Version,
			GoVersion: runtime.Version(),
			GOOS:      runtime.GOOS,
			GOARCH:    runtime.GOARCH,
			BuildTime: BuildTime,
		}

		switch format {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)

		case "jsonl":
			// Single object on one line for JSONL pipelines.
			b, err := json.Marshal(info)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return nil

		default:
			// Plain text, one value per line.
			fmt.Fprintf(cmd.OutOrStdout(), "tvguidefetch %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "grabber      %s\n", info.Grabber)
			fmt.Fprintf(cmd.OutOrStdout(), "go           %s\n", info.GoVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "os           %s/%s\n", info.GOOS, info.GOARCH)
			if info.BuildTime != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "built        %s\n", info.BuildTime)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
