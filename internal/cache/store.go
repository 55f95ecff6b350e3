// Package cache persists per-year prayer-day collections as one JSON file
// per (rounded latitude, rounded longitude, year). Prayer times for a fixed
// location and date are deterministic, so entries never expire on their own;
// the only cache-wide purge is the location-drift invalidation.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"vakit/internal/prayer"
)

// SchemaVersion is bumped whenever the file layout changes; files carrying
// any other version are discarded wholesale on load.
const SchemaVersion = 2

// DriftThreshold is the positional change (degrees, per axis) beyond which
// every cached year is invalidated. Roughly 2 km.
const DriftThreshold = 0.02

// RefStore persists the reference location the drift check compares against.
// Satisfied by *state.Store.
type RefStore interface {
	GetFloat(key string) (float64, bool, error)
	SetFloat(key string, v float64) error
}

// Reference-location keys, matching the state package's well-known names.
const (
	refLatKey = "ref_lat"
	refLonKey = "ref_lon"
)

// yearFile is the on-disk document: {version, latitude, longitude, altitude,
// year, days[]}.
type yearFile struct {
	Version   int          `json:"version"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Altitude  float64      `json:"altitude"`
	Year      int          `json:"year"`
	Days      []prayer.Day `json:"days"`
}

// Store reads and writes year-cache files under a root directory.
type Store struct {
	dir    string
	refs   RefStore
	logger *slog.Logger
}

// NewStore creates a year-cache store rooted at dir.
func NewStore(dir string, refs RefStore, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir, refs: refs, logger: logger}, nil
}

// Dir returns the cache root directory.
func (s *Store) Dir() string { return s.dir }

// fileName builds the per-(location, year) file name. Coordinates are
// rounded to 4 decimals with invariant formatting so nearby fixes share a
// file.
func (s *Store) fileName(loc prayer.LocationFix, year int) string {
	lat := strconv.FormatFloat(round4(loc.Latitude), 'f', 4, 64)
	lon := strconv.FormatFloat(round4(loc.Longitude), 'f', 4, 64)
	return filepath.Join(s.dir, fmt.Sprintf("times_%s_%s_%d.json", lat, lon, year))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// --------------------------------------------------------------------------
// Load / Save
// --------------------------------------------------------------------------

// Load returns the cached days for (loc, year). An absent, unreadable or
// version-mismatched file yields (nil, false) — corruption is recovered by
// refetching, never surfaced to callers.
func (s *Store) Load(loc prayer.LocationFix, year int) ([]prayer.Day, bool) {
	path := s.fileName(loc, year)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("cache file unreadable", "path", path, "error", err)
		}
		return nil, false
	}

	var f yearFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.logger.Warn("cache file corrupt, discarding", "path", path, "error", err)
		return nil, false
	}
	if f.Version != SchemaVersion {
		s.logger.Info("cache schema version mismatch, discarding",
			"path", path, "have", f.Version, "want", SchemaVersion)
		return nil, false
	}
	return f.Days, true
}

// Save rewrites the whole file for (loc, year). Writes go through a temp
// file and rename so readers never observe a partial document.
func (s *Store) Save(loc prayer.LocationFix, year int, days []prayer.Day) error {
	f := yearFile{
		Version:   SchemaVersion,
		Latitude:  round4(loc.Latitude),
		Longitude: round4(loc.Longitude),
		Altitude:  loc.Altitude,
		Year:      year,
		Days:      days,
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal year cache: %w", err)
	}

	path := s.fileName(loc, year)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write year cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace year cache: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Merge
// --------------------------------------------------------------------------

// Merge unions two day sets by calendar date; incoming entries overwrite
// existing ones for shared dates (incoming is treated as fresher). The
// result is sorted ascending. Merging the same set twice is a no-op.
func Merge(existing, incoming []prayer.Day) []prayer.Day {
	merged := make([]prayer.Day, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)
	return prayer.DedupeByDate(merged)
}

// --------------------------------------------------------------------------
// Drift invalidation
// --------------------------------------------------------------------------

// InvalidateIfMoved compares loc against the persisted reference location.
// If either axis drifted beyond DriftThreshold, every year-cache file is
// removed and the reference is reset to loc. Returns whether a purge
// happened. The first call (no reference yet) records loc without purging.
func (s *Store) InvalidateIfMoved(loc prayer.LocationFix) (bool, error) {
	refLat, haveLat, err := s.refs.GetFloat(refLatKey)
	if err != nil {
		return false, fmt.Errorf("read reference latitude: %w", err)
	}
	refLon, haveLon, err := s.refs.GetFloat(refLonKey)
	if err != nil {
		return false, fmt.Errorf("read reference longitude: %w", err)
	}

	if !haveLat || !haveLon {
		return false, s.storeReference(loc)
	}

	if math.Abs(loc.Latitude-refLat) <= DriftThreshold &&
		math.Abs(loc.Longitude-refLon) <= DriftThreshold {
		return false, nil
	}

	s.logger.Info("location drift beyond threshold, purging year caches",
		"ref_lat", refLat, "ref_lon", refLon,
		"new_lat", loc.Latitude, "new_lon", loc.Longitude)

	if err := s.Purge(); err != nil {
		return false, err
	}
	return true, s.storeReference(loc)
}

// Purge removes every year-cache file under the root.
func (s *Store) Purge() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "times_*.json"))
	if err != nil {
		return fmt.Errorf("list cache files: %w", err)
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// Stats reports the cache file count and total size in bytes.
func (s *Store) Stats() (files int, bytes int64, err error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "times_*.json"))
	if err != nil {
		return 0, 0, fmt.Errorf("list cache files: %w", err)
	}
	for _, path := range matches {
		info, statErr := os.Stat(path)
		if statErr != nil {
			continue
		}
		files++
		bytes += info.Size()
	}
	return files, bytes, nil
}

func (s *Store) storeReference(loc prayer.LocationFix) error {
	if err := s.refs.SetFloat(refLatKey, loc.Latitude); err != nil {
		return fmt.Errorf("store reference latitude: %w", err)
	}
	if err := s.refs.SetFloat(refLonKey, loc.Longitude); err != nil {
		return fmt.Errorf("store reference longitude: %w", err)
	}
	return nil
}
