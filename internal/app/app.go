// Package app wires together configuration, the file cache, the mirror
// selector, the HTTP client and the history store into a single Deps struct
// that commands receive at runtime.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/derickschaefer/tvguidefetch/internal/config"
	"github.com/derickschaefer/tvguidefetch/internal/fetch"
	"github.com/derickschaefer/tvguidefetch/internal/httpcache"
	"github.com/derickschaefer/tvguidefetch/internal/mirror"
	"github.com/derickschaefer/tvguidefetch/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is opened lazily by RequireStore.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Cache    *httpcache.Cache
	Selector *mirror.Selector
	Client   *fetch.Client
	Store    *store.Store
}

// New builds a Deps from resolved config. The cache directory is created
// if it does not exist.
func New(cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := httpcache.New(cfg.CachePath)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", cfg.CachePath, err)
	}
	sel := mirror.New(logger)
	client := fetch.NewClient(cache, sel, fetch.Options{
		Timeout:   cfg.Timeout,
		Rate:      cfg.Rate,
		UserAgent: cfg.UserAgent,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Logger:    logger,
	})
	return &Deps{
		Config:   cfg,
		Logger:   logger,
		Cache:    cache,
		Selector: sel,
		Client:   client,
	}, nil
}

// RequireStore opens the history database if it is not already open.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	d.Store = s
	return nil
}

// Close releases the store, if open.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}

// NewLogger returns a text logger on w. debug wins over quiet.
func NewLogger(w io.Writer, debug, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case debug:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
