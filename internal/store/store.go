// Package store provides a thin bbolt wrapper for tvguidefetch's local
// history.
//
// The HTTP cache directory stays the source of truth for guide data; the
// store only records what each run produced so it can be inspected later.
//
// Buckets:
//
//	schedules: latest merged schedule per channel, keyed by channel id
//	runs: one record per successful run, keyed by start time + run id
//	_meta: schema version, created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/tvguidefetch/internal/model"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketSchedules = []byte("schedules")
	bucketRuns      = []byte("runs")
	bucketInternal  = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{"schedules", "runs"}

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSchedules, bucketRuns, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Schedules ────────────────────────────────────────────────────────────────

// PutSchedule stores a channel's schedule, replacing the previous one and
// stamping SavedAt.
func (s *Store) PutSchedule(rec model.ScheduleRecord) error {
	if rec.ChannelID == "" {
		return fmt.Errorf("schedule without channel id")
	}
	rec.SavedAt = time.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding schedule: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSchedules).Put([]byte(rec.ChannelID), data)
	})
}

// GetSchedule retrieves a channel's schedule.
// Returns (rec, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetSchedule(channelID string) (model.ScheduleRecord, bool, error) {
	var rec model.ScheduleRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSchedules).Get([]byte(channelID))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return rec, false, err
	}
	return rec, rec.ChannelID != "", nil
}

// ListSchedules returns summaries of every stored schedule, sorted by
// channel id.
func (s *Store) ListSchedules() ([]model.ScheduleSummary, error) {
	var out []model.ScheduleSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSchedules).ForEach(func(k, v []byte) error {
			var rec model.ScheduleRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec.Summary())
			return nil
		})
	})
	return out, err
}

// ─── Runs ─────────────────────────────────────────────────────────────────────

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// runKey orders runs chronologically: <started_at RFC3339Nano>|<id>.
func runKey(rec model.RunRecord) []byte {
	return []byte(rec.StartedAt.UTC().Format(time.RFC3339Nano) + "|" + rec.ID)
}

// PutRun records a run. An empty ID is filled in.
func (s *Store) PutRun(rec model.RunRecord) (model.RunRecord, error) {
	if rec.ID == "" {
		rec.ID = NewRunID()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("encoding run: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put(runKey(rec), data)
	})
	return rec, err
}

// ListRuns returns runs newest first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]model.RunRecord, error) {
	var runs []model.RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec model.RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			runs = append(runs, rec)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	return runs, err
}

// GetRun finds a run by id or unique id prefix.
func (s *Store) GetRun(id string) (model.RunRecord, bool, error) {
	var (
		found model.RunRecord
		hits  int
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			_, runID, _ := strings.Cut(string(k), "|")
			if !strings.HasPrefix(runID, id) {
				return nil
			}
			hits++
			return json.Unmarshal(v, &found)
		})
	})
	if err != nil {
		return model.RunRecord{}, false, err
	}
	if hits > 1 {
		return model.RunRecord{}, false, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
	return found, hits == 1, nil
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	if !validBucket(name) {
		return fmt.Errorf("unknown bucket %q (valid: %s)", name, strings.Join(AllBuckets, ", "))
	}
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}

// Compact rewrites the database into a fresh file to reclaim free pages,
// then swaps it into place and reopens. Returns sizes before and after.
func (s *Store) Compact() (before, after int64, err error) {
	path := s.db.Path()
	if fi, statErr := os.Stat(path); statErr == nil {
		before = fi.Size()
	}

	tmpPath := path + ".compact"
	dst, err := bolt.Open(tmpPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return before, 0, fmt.Errorf("opening compaction target: %w", err)
	}
	if err := bolt.Compact(dst, s.db, 0); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return before, 0, fmt.Errorf("compacting: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return before, 0, err
	}
	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return before, 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return before, 0, fmt.Errorf("replacing db: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return before, 0, fmt.Errorf("reopening db: %w", err)
	}
	s.db = db
	if fi, statErr := os.Stat(path); statErr == nil {
		after = fi.Size()
	}
	return before, after, nil
}

func validBucket(name string) bool {
	for _, b := range AllBuckets {
		if b == name {
			return true
		}
	}
	return false
}
