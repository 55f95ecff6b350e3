// Package repository orchestrates the hybrid read path: year cache when
// sufficiently complete, else the JSON backend, else the legacy XML backend,
// merging every successful fetch back into the cache.
//
// Nothing here throws across the public boundary: every network, parse or
// cache failure is logged and folded into a soft "no data" result. The only
// all-nil outcome is an empty cache combined with both backends failing or
// the network being unreachable.
package repository

import (
	"context"
	"log/slog"
	"time"

	"vakit/internal/cache"
	"vakit/internal/prayer"
	"vakit/internal/provider"
)

// minMonthDays is the completeness threshold: a cached month with at least
// this many days is served without touching the network.
const minMonthDays = 28

// Repository is the hybrid prayer-time read path.
type Repository struct {
	store    *cache.Store
	primary  provider.Source
	fallback provider.Source
	reach    Reachability
	logger   *slog.Logger
}

// New creates a repository. fallback may be nil (no legacy tier); reach may
// be nil (assume online).
func New(store *cache.Store, primary, fallback provider.Source, reach Reachability, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	if reach == nil {
		reach = alwaysOnline{}
	}
	return &Repository{
		store:    store,
		primary:  primary,
		fallback: fallback,
		reach:    reach,
		logger:   logger,
	}
}

// --------------------------------------------------------------------------
// GetMonth
// --------------------------------------------------------------------------

// GetMonth returns the days of (year, month) for loc.
//
// Unless forceRefresh, a cached month holding at least minMonthDays is
// returned without a fetch. Otherwise the JSON backend is tried, then the
// XML backend; a non-empty result is merged into the year cache and
// persisted. When both backends fail, whatever the cache holds for the month
// is returned — partial stale data beats no data — and nil only when the
// cache is empty too.
func (r *Repository) GetMonth(ctx context.Context, loc prayer.LocationFix, year int, month time.Month, forceRefresh bool) []prayer.Day {
	cached, _ := r.store.Load(loc, year)
	cachedMonth := prayer.FilterMonth(cached, year, month)

	if !forceRefresh && len(cachedMonth) >= minMonthDays {
		return cachedMonth
	}

	if !r.reach.Online(ctx) {
		r.logger.Info("offline, serving cached month", "year", year, "month", int(month), "days", len(cachedMonth))
		return nonEmptyOrNil(cachedMonth)
	}

	fetched := r.fetchMonth(ctx, loc, year, month)
	if len(fetched) == 0 {
		r.logger.Warn("all backends failed for month, serving cached days",
			"year", year, "month", int(month), "cached", len(cachedMonth))
		return nonEmptyOrNil(cachedMonth)
	}

	merged := r.persistMerge(loc, year, cached, fetched)
	return prayer.FilterMonth(merged, year, month)
}

// --------------------------------------------------------------------------
// GetDay
// --------------------------------------------------------------------------

// GetDay returns one day's times for loc. The cached entry wins when present
// (a single day is deterministic, so it is never stale); otherwise the JSON
// daily endpoint is tried, then the legacy backend, with the same
// merge-and-persist behavior as GetMonth.
func (r *Repository) GetDay(ctx context.Context, loc prayer.LocationFix, date time.Time) *prayer.Day {
	year := date.Year()
	cached, _ := r.store.Load(loc, year)
	if d := findDay(cached, date); d != nil {
		return d
	}

	if !r.reach.Online(ctx) {
		r.logger.Info("offline and day not cached", "date", prayer.DateKey(date))
		return nil
	}

	day, err := r.primary.Daily(ctx, loc, date)
	if err != nil {
		r.logger.Warn("primary daily fetch failed", "backend", r.primary.Name(),
			"date", prayer.DateKey(date), "error", err)
		if r.fallback == nil {
			return nil
		}
		day, err = r.fallback.Daily(ctx, loc, date)
		if err != nil {
			r.logger.Warn("fallback daily fetch failed", "backend", r.fallback.Name(),
				"date", prayer.DateKey(date), "error", err)
			return nil
		}
	}

	merged := r.persistMerge(loc, year, cached, []prayer.Day{*day})
	return findDay(merged, date)
}

// --------------------------------------------------------------------------
// EnsureDaysRange
// --------------------------------------------------------------------------

// EnsureDaysRange guarantees forward coverage for alarm pre-population: it
// returns the days of [start, start+daysNeeded) obtainable from the cache or
// either backend, deduplicated and ascending. Months already cached beyond
// the completeness threshold are not refetched; a failed monthly fetch
// degrades to one daily call per missing day, accepted as a last resort
// during partial outages.
func (r *Repository) EnsureDaysRange(ctx context.Context, loc prayer.LocationFix, start time.Time, daysNeeded int) []prayer.Day {
	start = truncateDate(start)
	end := start.AddDate(0, 0, daysNeeded)

	var collected []prayer.Day
	for cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); cursor.Before(end); cursor = cursor.AddDate(0, 1, 0) {
		collected = append(collected, r.GetMonth(ctx, loc, cursor.Year(), cursor.Month(), false)...)

		// Fill any date of the window the month pass did not cover with one
		// daily call each (N+1 fallback).
		for d := cursor; d.Before(cursor.AddDate(0, 1, 0)) && d.Before(end); d = d.AddDate(0, 0, 1) {
			if d.Before(start) || findDay(collected, d) != nil {
				continue
			}
			if day := r.GetDay(ctx, loc, d); day != nil {
				collected = append(collected, *day)
			}
		}
	}

	return filterRange(prayer.DedupeByDate(collected), start, end)
}

// --------------------------------------------------------------------------
// Internals
// --------------------------------------------------------------------------

// fetchMonth tries the primary backend, then the fallback. Returns nil when
// both fail; errors never escape.
func (r *Repository) fetchMonth(ctx context.Context, loc prayer.LocationFix, year int, month time.Month) []prayer.Day {
	days, err := r.primary.Monthly(ctx, loc, year, month)
	if err == nil && len(days) > 0 {
		return days
	}
	if err != nil {
		r.logger.Warn("primary monthly fetch failed", "backend", r.primary.Name(),
			"year", year, "month", int(month), "error", err)
	}

	if r.fallback == nil {
		return nil
	}
	days, err = r.fallback.Monthly(ctx, loc, year, month)
	if err != nil {
		r.logger.Warn("fallback monthly fetch failed", "backend", r.fallback.Name(),
			"year", year, "month", int(month), "error", err)
		return nil
	}
	return days
}

// persistMerge merges fetched days into the cached year set and rewrites the
// year file. A failed write is logged and the merged set still returned; the
// next successful fetch rewrites the file anyway.
func (r *Repository) persistMerge(loc prayer.LocationFix, year int, cached, fetched []prayer.Day) []prayer.Day {
	merged := cache.Merge(cached, fetched)
	if err := r.store.Save(loc, year, merged); err != nil {
		r.logger.Warn("year cache write failed", "year", year, "error", err)
	}
	return merged
}

func findDay(days []prayer.Day, date time.Time) *prayer.Day {
	want := prayer.DateKey(date)
	for i := range days {
		t, err := days[i].Date()
		if err != nil {
			continue
		}
		if prayer.DateKey(t) == want {
			return &days[i]
		}
	}
	return nil
}

func filterRange(days []prayer.Day, start, end time.Time) []prayer.Day {
	out := make([]prayer.Day, 0, len(days))
	for _, d := range days {
		t, err := d.Date()
		if err != nil {
			continue
		}
		if !t.Before(start) && t.Before(end) {
			out = append(out, d)
		}
	}
	return out
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nonEmptyOrNil(days []prayer.Day) []prayer.Day {
	if len(days) == 0 {
		return nil
	}
	return days
}
