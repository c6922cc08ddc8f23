package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/derickschaefer/tvguidefetch/internal/config"
	"github.com/derickschaefer/tvguidefetch/internal/render"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tvguidefetch configuration",
	Long:  `Read and write the connection settings and channel map stored in tvguide.yaml.`,
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template tvguide.yaml in the current directory",
	Example: `  tvguidefetch config init
  tvguidefetch config init -c ~/.xmltv/tvguide.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := globalFlags.ConfigFile
		if path == "" {
			path = config.DefaultConfigFile
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created %s\n", path)
		fmt.Fprintln(out, "  Edit the channels section, then list the catalogue with: tvguidefetch channels")
		return nil
	},
}

var configGetShowSecrets bool

// configView is the --format json payload of config get.
type configView struct {
	ConfigPath string           `json:"config_path,omitempty"`
	CachePath  string           `json:"cache_path"`
	DBPath     string           `json:"db_path"`
	Datalist   string           `json:"datalist"`
	BaseURLs   []string         `json:"base_urls"`
	Timeout    string           `json:"timeout"`
	Rate       float64          `json:"rate"`
	UserAgent  string           `json:"user_agent,omitempty"`
	Username   string           `json:"username,omitempty"`
	Password   string           `json:"password,omitempty"`
	Channels   []config.Channel `json:"channels"`
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		password := cfg.RedactedPassword()
		if configGetShowSecrets {
			password = cfg.Password
		}

		view := configView{
			ConfigPath: cfg.ConfigPath,
			CachePath:  cfg.CachePath,
			DBPath:     cfg.DBPath,
			Datalist:   cfg.Datalist,
			BaseURLs:   cfg.BaseURLs,
			Timeout:    cfg.Timeout.String(),
			Rate:       cfg.Rate,
			UserAgent:  cfg.UserAgent,
			Username:   cfg.Username,
			Password:   password,
			Channels:   cfg.Channels,
		}

		out := cmd.OutOrStdout()
		if resolveFormat() == render.FormatJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}

		src := view.ConfigPath
		if src == "" {
			src = "(not found)"
		}
		orNotSet := func(s string) string {
			if s == "" {
				return "(not set)"
			}
			return s
		}
		printKVTable(out, [][]string{
			{"config_file", src},
			{"cache_path", view.CachePath},
			{"db_path", view.DBPath},
			{"datalist", view.Datalist},
			{"base_urls", strings.Join(view.BaseURLs, ", ")},
			{"timeout", view.Timeout},
			{"rate", strconv.FormatFloat(view.Rate, 'f', -1, 64) + " req/s"},
			{"user_agent", orNotSet(view.UserAgent)},
			{"username", orNotSet(view.Username)},
			{"password", orNotSet(view.Password)},
			{"channels", strconv.Itoa(len(view.Channels))},
		})
		if !cfg.HasChannelMap {
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠  no channels section defined; run 'tvguidefetch config init'")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configGetCmd.Flags().BoolVar(&configGetShowSecrets, "show-secrets", false, "show the password in plain text")
}
