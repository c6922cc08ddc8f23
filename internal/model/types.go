// Package model defines the data types shared by the store, the renderers
// and the command layer, plus the result envelope every listing command
// returns.
package model

import "time"

// ─── Guide Entity Types ───────────────────────────────────────────────────────

// ChannelInfo describes a channel as the catalogue (and any local override)
// presents it.
type ChannelInfo struct {
	ID          string   `json:"id"`
	OztivoID    string   `json:"oztivoid"`
	FillinID    string   `json:"fillinid,omitempty"`
	DisplayName string   `json:"display_name"`
	Number      string   `json:"lcn,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	TimeOffset  int      `json:"timeoffset,omitempty"`
	Days        int      `json:"days"`
	FirstDay    string   `json:"first_day,omitempty"`
	LastDay     string   `json:"last_day,omitempty"`
	Mirrors     []string `json:"mirrors,omitempty"`
	Configured  bool     `json:"configured"`
}

// Programme is one merged interval, times in XMLTV form.
type Programme struct {
	Start string `json:"start"`
	Stop  string `json:"stop"`
	Title string `json:"title"`
}

// ScheduleRecord is a channel's final schedule as saved after a run.
type ScheduleRecord struct {
	ChannelID   string      `json:"channel_id"`
	DisplayName string      `json:"display_name"`
	RunID       string      `json:"run_id"`
	FirstDay    string      `json:"first_day"`
	LastDay     string      `json:"last_day"`
	SavedAt     time.Time   `json:"saved_at"`
	Programmes  []Programme `json:"programmes"`
}

// ScheduleSummary is a ScheduleRecord without its programmes.
type ScheduleSummary struct {
	ChannelID   string    `json:"channel_id"`
	DisplayName string    `json:"display_name"`
	RunID       string    `json:"run_id"`
	FirstDay    string    `json:"first_day"`
	LastDay     string    `json:"last_day"`
	Count       int       `json:"count"`
	SavedAt     time.Time `json:"saved_at"`
}

// Summary drops the programme list.
func (r ScheduleRecord) Summary() ScheduleSummary {
	return ScheduleSummary{
		ChannelID:   r.ChannelID,
		DisplayName: r.DisplayName,
		RunID:       r.RunID,
		FirstDay:    r.FirstDay,
		LastDay:     r.LastDay,
		Count:       len(r.Programmes),
		SavedAt:     r.SavedAt,
	}
}

// FetchCounts tallies what happened to each resource during a run.
type FetchCounts struct {
	Fetched     int `json:"fetched"`
	NotModified int `json:"not_modified"`
	Trusted     int `json:"recently_cached"`
	CacheValid  int `json:"cache_valid"`
	Pruned      int `json:"pruned"`
}

// RunRecord is the history entry written after every successful grab.
type RunRecord struct {
	ID         string      `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Today      string      `json:"today"`
	FirstDay   string      `json:"first_day"`
	LastDay    string      `json:"last_day"`
	Channels   int         `json:"channels"`
	Programmes int         `json:"programmes"`
	Counts     FetchCounts `json:"counts"`
	Output     string      `json:"output,omitempty"`
	// Mirror is the last server a request went to; empty when every
	// resource came from the cache.
	Mirror     string      `json:"mirror,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
}

// CacheEntry is one file in the HTTP cache directory.
type CacheEntry struct {
	Name         string `json:"name"`
	Bytes        int64  `json:"bytes"`
	Encoding     string `json:"encoding,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	FetchedAt    string `json:"fetched_at,omitempty"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries timing metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every listing command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindChannel      = "channel"
	KindSchedule     = "schedule"
	KindScheduleList = "schedule_list"
	KindRun          = "run"
	KindCacheEntry   = "cache_entry"
)
