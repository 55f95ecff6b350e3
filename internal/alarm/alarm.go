// Package alarm turns a day's prayer times plus user preferences into
// deterministic alarm requests and hands them to the platform sink.
//
// Pass shape: load preferences → ensure day coverage via the repository →
// emit one request per enabled kind per day → persist the coverage
// watermark. Ids are a pure function of (date, kind), so re-running a pass
// re-emits the same ids and supersedes the previous schedule instead of
// duplicating it.
package alarm

import (
	"context"
	"fmt"
	"time"

	"vakit/internal/prayer"
	"vakit/internal/state"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultWindowDays is how far ahead a full pass schedules.
	DefaultWindowDays = 30

	// watermarkLead is the future margin under which a non-forced pass is
	// skipped: coverage more than this far ahead means nothing to do.
	watermarkLead = 3 * 24 * time.Hour

	// rescheduleCooldown rate-limits non-forced passes. A limiter, not a
	// correctness mechanism.
	rescheduleCooldown = 6 * time.Hour

	// idYearSpan and idSlotsPerYear size the deterministic id rotation:
	// 8 kinds x 366 days x 10 years with no collisions and no persisted
	// id counter.
	idYearSpan     = 10
	idSlotsPerYear = 366 * prayer.KindCount
)

// --------------------------------------------------------------------------
// Per-(day, kind) schedule states
// --------------------------------------------------------------------------

// Status tracks one (day, kind) slot through a pass. The scheduler owns the
// NotScheduled -> Scheduled transition and the Superseded re-emit; Fired and
// Cancelled are sink-side outcomes.
type Status int

const (
	StatusNotScheduled Status = iota
	StatusScheduled
	StatusFired
	StatusSuperseded
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusNotScheduled:
		return "not_scheduled"
	case StatusScheduled:
		return "scheduled"
	case StatusFired:
		return "fired"
	case StatusSuperseded:
		return "superseded"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// --------------------------------------------------------------------------
// Request
// --------------------------------------------------------------------------

// Request is one alarm handed to the sink: the offset-adjusted trigger
// instant, the deterministic id, and the display payload.
type Request struct {
	ID    int
	Kind  prayer.Kind
	At    time.Time
	Title string
	Body  string
	Sound string
}

// ID computes the deterministic id for (date, kind): unique across the
// 8-kind x 366-day x 10-year rotation, stable across restarts, and
// intentionally recycled after ten years.
func ID(date time.Time, kind prayer.Kind) int {
	return (date.Year()%idYearSpan)*idSlotsPerYear + (date.YearDay()-1)*prayer.KindCount + int(kind)
}

// --------------------------------------------------------------------------
// Preferences
// --------------------------------------------------------------------------

// Preferences is one kind's reminder configuration.
type Preferences struct {
	Enabled   bool
	OffsetMin int
	Sound     string
}

// ConfigStore is the injected key/value state the scheduler reads and
// writes: preferences, watermark, cooldown stamp. Satisfied by *state.Store.
type ConfigStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	GetBool(key string) (bool, bool, error)
	GetInt(key string) (int, bool, error)
	GetTime(key string) (time.Time, bool, error)
	SetTime(key string, t time.Time) error
}

// LoadPreferences reads one kind's preferences from the store. Absent keys
// default to a disabled reminder with zero offset.
func LoadPreferences(cfg ConfigStore, kind prayer.Kind) (Preferences, error) {
	var p Preferences
	enabled, ok, err := cfg.GetBool(state.PrefKey(kind.Name(), "enabled"))
	if err != nil {
		return p, fmt.Errorf("read %s enabled: %w", kind.Name(), err)
	}
	if ok {
		p.Enabled = enabled
	}
	offset, ok, err := cfg.GetInt(state.PrefKey(kind.Name(), "offset_min"))
	if err != nil {
		return p, fmt.Errorf("read %s offset: %w", kind.Name(), err)
	}
	if ok {
		p.OffsetMin = offset
	}
	sound, _, err := cfg.Get(state.PrefKey(kind.Name(), "sound"))
	if err != nil {
		return p, fmt.Errorf("read %s sound: %w", kind.Name(), err)
	}
	p.Sound = sound
	return p, nil
}

// --------------------------------------------------------------------------
// Collaborator interfaces
// --------------------------------------------------------------------------

// DaysSource supplies forward day coverage; satisfied by
// *repository.Repository.
type DaysSource interface {
	EnsureDaysRange(ctx context.Context, loc prayer.LocationFix, start time.Time, daysNeeded int) []prayer.Day
}

// LocationSource supplies the (possibly stale) position to schedule for.
type LocationSource interface {
	Current(ctx context.Context) (prayer.LocationFix, error)
}

// FixedLocation is a LocationSource pinned to one position.
type FixedLocation prayer.LocationFix

// Current implements LocationSource.
func (f FixedLocation) Current(context.Context) (prayer.LocationFix, error) {
	return prayer.LocationFix(f), nil
}
