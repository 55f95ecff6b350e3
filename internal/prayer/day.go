// Package prayer holds the domain types shared by the providers, the cache
// and the alarm scheduler: one calendar day's prayer times for a location,
// plus the date-key normalization both backends' payloads are funneled
// through.
package prayer

import (
	"fmt"
	"sort"
	"time"
)

// --------------------------------------------------------------------------
// Kinds
// --------------------------------------------------------------------------

// Kind identifies one of the eight per-day prayer time fields. The ordinal
// values are wire- and id-stable; do not reorder.
type Kind int

const (
	KindFalseFajr Kind = iota
	KindFajr
	KindSunrise
	KindDhuhr
	KindAsr
	KindMaghrib
	KindIsha
	KindEndOfIsha

	KindCount = 8
)

var kindNames = [KindCount]string{
	"false_fajr", "fajr", "sunrise", "dhuhr", "asr", "maghrib", "isha", "end_of_isha",
}

var kindTitles = [KindCount]string{
	"False Fajr", "Fajr", "Sunrise", "Dhuhr", "Asr", "Maghrib", "Isha", "End of Isha",
}

// Kinds returns all eight kinds in canonical order.
func Kinds() []Kind {
	out := make([]Kind, KindCount)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// Name returns the stable snake_case name used in state-store keys.
func (k Kind) Name() string {
	if k < 0 || k >= KindCount {
		return "unknown"
	}
	return kindNames[k]
}

// Title returns the human-readable display name.
func (k Kind) Title() string {
	if k < 0 || k >= KindCount {
		return "Unknown"
	}
	return kindTitles[k]
}

// --------------------------------------------------------------------------
// LocationFix
// --------------------------------------------------------------------------

// LocationFix is a possibly-stale position supplied by the location
// collaborator. Altitude is optional; zero means sea level.
type LocationFix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// --------------------------------------------------------------------------
// Day
// --------------------------------------------------------------------------

// Day is one calendar day's prayer times for a location. Time fields are
// "HH:mm" wall-clock strings; DateKey is whatever the producing backend
// emitted and must normalize under NormalizeDateKey.
type Day struct {
	DateKey   string  `json:"date"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	TZOffset  float64 `json:"tz_offset"`
	DST       bool    `json:"dst"`

	FalseFajr string `json:"false_fajr"`
	Fajr      string `json:"fajr"`
	Sunrise   string `json:"sunrise"`
	Dhuhr     string `json:"dhuhr"`
	Asr       string `json:"asr"`
	Maghrib   string `json:"maghrib"`
	Isha      string `json:"isha"`
	EndOfIsha string `json:"end_of_isha"`
}

// TimeFor returns the "HH:mm" value for a kind.
func (d *Day) TimeFor(k Kind) string {
	switch k {
	case KindFalseFajr:
		return d.FalseFajr
	case KindFajr:
		return d.Fajr
	case KindSunrise:
		return d.Sunrise
	case KindDhuhr:
		return d.Dhuhr
	case KindAsr:
		return d.Asr
	case KindMaghrib:
		return d.Maghrib
	case KindIsha:
		return d.Isha
	case KindEndOfIsha:
		return d.EndOfIsha
	}
	return ""
}

// Date returns the normalized calendar date for the day's key.
func (d *Day) Date() (time.Time, error) {
	return NormalizeDateKey(d.DateKey)
}

// --------------------------------------------------------------------------
// Date-key normalization
// --------------------------------------------------------------------------

// dateLayouts are the accepted date-key formats, tried in order. The JSON
// backend emits ISO dates (sometimes with a time part); the legacy XML
// backend emits dd/MM/yyyy, and some historic cache files carry dotted dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"02.01.2006",
	"01/02/2006 15:04:05",
}

// NormalizeDateKey parses a date key under one of the accepted layouts and
// truncates it to the calendar date (UTC midnight).
func NormalizeDateKey(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date key %q", s)
}

// DateKey formats a time as the canonical ISO date key.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ClockTime combines a calendar date with an "HH:mm" (or "HH:mm:ss")
// wall-clock string in the given location.
func ClockTime(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	var h, m, s int
	if _, err := fmt.Sscanf(clock, "%d:%d:%d", &h, &m, &s); err != nil {
		s = 0
		if _, err := fmt.Sscanf(clock, "%d:%d", &h, &m); err != nil {
			return time.Time{}, fmt.Errorf("unrecognized clock value %q", clock)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return time.Time{}, fmt.Errorf("clock value %q out of range", clock)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, s, 0, loc), nil
}

// --------------------------------------------------------------------------
// Collection helpers
// --------------------------------------------------------------------------

// SortDays orders days ascending by normalized date. Days with unparseable
// keys sort last, preserving their relative order.
func SortDays(days []Day) {
	sort.SliceStable(days, func(i, j int) bool {
		di, erri := days[i].Date()
		dj, errj := days[j].Date()
		if erri != nil {
			return false
		}
		if errj != nil {
			return true
		}
		return di.Before(dj)
	})
}

// DedupeByDate collapses days sharing a calendar date; the last occurrence
// wins (later entries are treated as fresher). Days with unparseable keys
// are dropped. The result is sorted ascending.
func DedupeByDate(days []Day) []Day {
	byDate := make(map[string]Day, len(days))
	for _, d := range days {
		t, err := d.Date()
		if err != nil {
			continue
		}
		byDate[DateKey(t)] = d
	}
	out := make([]Day, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, d)
	}
	SortDays(out)
	return out
}

// FilterMonth returns the days falling in (year, month), order preserved.
func FilterMonth(days []Day, year int, month time.Month) []Day {
	var out []Day
	for _, d := range days {
		t, err := d.Date()
		if err != nil {
			continue
		}
		if t.Year() == year && t.Month() == month {
			out = append(out, d)
		}
	}
	return out
}
