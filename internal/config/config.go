// Package config handles loading and resolving tvguidefetch configuration.
// Resolution order (later layers win):
//  1. built-in defaults
//  2. tvguide.yaml (or the file named by --config-file)
//  3. a .env file in the working directory
//  4. environment variables TVGUIDE_*
//  5. CLI flags, applied by the caller after Load
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile = "tvguide.yaml"
	DefaultDatalist   = "datalist.xml.gz"
	DefaultBaseURL    = "http://www.oztivo.net/xmltv/"
	DefaultTimeout    = 60 * time.Second
	DefaultRate       = 5.0
	DefaultDays       = 14

	EnvUsername  = "TVGUIDE_USERNAME"
	EnvPassword  = "TVGUIDE_PASSWORD"
	EnvCachePath = "TVGUIDE_CACHE_PATH"
	EnvDBPath    = "TVGUIDE_DB_PATH"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")
	// ErrNoChannelMap is returned when the file has no channels section.
	ErrNoChannelMap = fmt.Errorf("%w: no channels section defined", ErrInvalid)
)

// Connection is the on-disk connection section.
type Connection struct {
	CachePath string   `yaml:"cache_path,omitempty"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Datalist  string   `yaml:"datalist"`
	BaseURLs  []string `yaml:"base_urls"`
	Timeout   string   `yaml:"timeout,omitempty"`
	Rate      float64  `yaml:"rate,omitempty"`
	UserAgent string   `yaml:"user_agent,omitempty"`
}

// Channel is one entry of the channel map. Only OztivoID is required; every
// other field overrides what the catalogue says about the channel.
type Channel struct {
	OztivoID         string            `yaml:"oztivoid" json:"oztivoid" validate:"required"`
	FillinID         string            `yaml:"fillinid,omitempty" json:"fillinid,omitempty"`
	ID               string            `yaml:"id,omitempty" json:"id,omitempty"`
	TimeOffset       *int              `yaml:"timeoffset,omitempty" json:"timeoffset,omitempty" validate:"omitempty,gte=-43200,lte=43200"`
	DisplayName      string            `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	DisplayNameAttrs map[string]string `yaml:"display_name_attrs,omitempty" json:"display_name_attrs,omitempty"`
	LCN              string            `yaml:"lcn,omitempty" json:"lcn,omitempty"`
	Icon             string            `yaml:"icon,omitempty" json:"icon,omitempty"`
}

// File is the on-disk representation of tvguide.yaml.
type File struct {
	Connection Connection `yaml:"connection"`
	Channels   []Channel  `yaml:"channels"`
	DBPath     string     `yaml:"db_path,omitempty"`
}

// Config is the fully-resolved runtime configuration.
type Config struct {
	CachePath string   `validate:"required"`
	Username  string
	Password  string
	Datalist  string   `validate:"required"`
	BaseURLs  []string `validate:"required,min=1,dive,url"`
	Timeout   time.Duration
	Rate      float64 `validate:"gte=0"`
	UserAgent string
	Channels  []Channel `validate:"dive"`
	DBPath    string

	// HasChannelMap is false when the file had no channels key at all.
	HasChannelMap bool
	// ConfigPath is the file that was loaded, empty if none was found.
	ConfigPath string

	// Runtime overrides set from CLI flags after Load()
	Quiet bool
	Debug bool
}

// Load resolves configuration from all sources. path names the config file;
// empty means DefaultConfigFile, which may be absent. An explicitly named
// file that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{
		CachePath: DefaultCacheDir(),
		Datalist:  DefaultDatalist,
		BaseURLs:  []string{DefaultBaseURL},
		Timeout:   DefaultTimeout,
		Rate:      DefaultRate,
	}

	// Layer 1: config file
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	f, abs, err := loadFile(path)
	switch {
	case err == nil:
		applyFile(cfg, f, abs)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	// Layer 2: .env then environment. godotenv never overrides variables
	// that are already set, so the real environment wins.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv(EnvCachePath); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Set default DB path if still unset
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath()
	}

	return cfg, nil
}

// Validate returns an error wrapping ErrInvalid if anything required for a
// grab is missing or out of range.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = describe(fe)
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !c.HasChannelMap {
		return ErrNoChannelMap
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "min":
		return field + " is required"
	case "url":
		return fmt.Sprintf("%s %q is not a URL", field, fe.Value())
	case "gte", "lte":
		return fmt.Sprintf("%s must be within %s", field, rangeFor(fe.StructField()))
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

func rangeFor(field string) string {
	if field == "TimeOffset" {
		return "-43200..43200 seconds"
	}
	return "range"
}

// RedactedPassword returns the password with most characters replaced by
// asterisks. Safe for logging and display.
func (c *Config) RedactedPassword() string {
	if c.Password == "" {
		return ""
	}
	if len(c.Password) <= 4 {
		return "****"
	}
	return c.Password[:1] + "****" + c.Password[len(c.Password)-1:]
}

// DefaultCacheDir is $HOME/.xmltv/tvguide_cache, or /var/tmp/tvguide_cache
// when there is no home directory.
func DefaultCacheDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".xmltv", "tvguide_cache")
	}
	return "/var/tmp/tvguide_cache"
}

func defaultDBPath() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".xmltv", "tvguidefetch.db")
	}
	return "/var/tmp/tvguidefetch.db"
}

// loadFile reads and parses a YAML config file.
func loadFile(path string) (*File, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, abs, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	c := f.Connection
	if c.CachePath != "" {
		cfg.CachePath = expandHome(c.CachePath)
	}
	cfg.Username = c.Username
	cfg.Password = c.Password
	if c.Datalist != "" {
		cfg.Datalist = c.Datalist
	}
	if len(c.BaseURLs) > 0 {
		cfg.BaseURLs = c.BaseURLs
	}
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if c.Rate > 0 {
		cfg.Rate = c.Rate
	}
	if c.UserAgent != "" {
		cfg.UserAgent = c.UserAgent
	}
	if f.Channels != nil {
		cfg.Channels = f.Channels
		cfg.HasChannelMap = true
	}
	if f.DBPath != "" {
		cfg.DBPath = expandHome(f.DBPath)
	}
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial tvguide.yaml via `tvguidefetch config init`.
func Template() File {
	return File{
		Connection: Connection{
			CachePath: DefaultCacheDir(),
			Datalist:  DefaultDatalist,
			BaseURLs:  []string{DefaultBaseURL},
			Timeout:   DefaultTimeout.String(),
			Rate:      DefaultRate,
		},
		Channels: []Channel{
			{OztivoID: "ABC-NSW", DisplayName: "ABC", LCN: "2"},
		},
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
