package alarm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vakit/internal/prayer"
	"vakit/internal/state"
)

// Scheduler runs the monthly alarm pass.
type Scheduler struct {
	days       DaysSource
	location   LocationSource
	cfg        ConfigStore
	sink       Sink
	tz         *time.Location
	windowDays int
	logger     *slog.Logger

	// now is stubbed in tests.
	now func() time.Time
}

// NewScheduler creates a scheduler. tz is the wall-clock zone alarm instants
// are built in; nil means time.Local. windowDays <= 0 means
// DefaultWindowDays.
func NewScheduler(days DaysSource, location LocationSource, cfg ConfigStore, sink Sink, tz *time.Location, windowDays int, logger *slog.Logger) *Scheduler {
	if tz == nil {
		tz = time.Local
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		days:       days,
		location:   location,
		cfg:        cfg,
		sink:       sink,
		tz:         tz,
		windowDays: windowDays,
		logger:     logger,
		now:        time.Now,
	}
}

// PassResult summarizes one SetMonthlyAlarms run.
type PassResult struct {
	DaysCovered  int
	Scheduled    int
	Skipped      int
	CancelledAll bool
	SkippedPass  bool
	Watermark    time.Time
	Duration     time.Duration
}

// Summary renders a one-line log summary.
func (r PassResult) Summary() string {
	if r.CancelledAll {
		return "all reminders disabled, alarms cancelled"
	}
	if r.SkippedPass {
		return "pass skipped (coverage fresh or within cooldown)"
	}
	return fmt.Sprintf("%d alarms over %d days, watermark %s",
		r.Scheduled, r.DaysCovered, r.Watermark.Format("2006-01-02"))
}

// --------------------------------------------------------------------------
// SetMonthlyAlarms
// --------------------------------------------------------------------------

// SetMonthlyAlarms runs the top-level pass.
//
// With every kind disabled it cancels all pending alarms and clears the
// coverage watermark; a repeat call is then a no-op. A non-forced pass is
// skipped while the watermark is more than three days ahead, and also within
// six hours of the last automatic run. Otherwise it requests a windowDays
// range from the repository, schedules every enabled kind, and persists the
// furthest successfully scheduled date as the new watermark.
func (s *Scheduler) SetMonthlyAlarms(ctx context.Context, forceReschedule bool) (result PassResult, err error) {
	start := s.now()
	defer func() { result.Duration = time.Since(start) }()

	prefs, anyEnabled, err := s.loadAllPreferences()
	if err != nil {
		return result, err
	}

	if !anyEnabled {
		if err := s.sink.CancelAll(); err != nil {
			return result, fmt.Errorf("cancel all alarms: %w", err)
		}
		if err := s.cfg.Delete(state.KeyWatermark); err != nil {
			return result, fmt.Errorf("clear watermark: %w", err)
		}
		result.CancelledAll = true
		s.logger.Info("alarm pass finished", "summary", result.Summary())
		return result, nil
	}

	if !forceReschedule && s.coverageFresh(start) {
		result.SkippedPass = true
		return result, nil
	}

	loc, err := s.location.Current(ctx)
	if err != nil {
		return result, fmt.Errorf("resolve location: %w", err)
	}

	today := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	days := s.days.EnsureDaysRange(ctx, loc, today, s.windowDays)
	result.DaysCovered = len(days)
	if len(days) == 0 {
		return result, fmt.Errorf("no day coverage available for alarm pass")
	}

	var watermark time.Time
	for i := range days {
		scheduled, skipped := s.ScheduleDay(&days[i], prefs)
		result.Scheduled += scheduled
		result.Skipped += skipped
		if scheduled > 0 {
			if t, err := days[i].Date(); err == nil && t.After(watermark) {
				watermark = t
			}
		}
	}

	if !watermark.IsZero() {
		if err := s.cfg.SetTime(state.KeyWatermark, watermark); err != nil {
			return result, fmt.Errorf("persist watermark: %w", err)
		}
		result.Watermark = watermark
	}
	if err := s.cfg.SetTime(state.KeyLastAlarmRun, start); err != nil {
		return result, fmt.Errorf("persist last-run stamp: %w", err)
	}

	s.logger.Info("alarm pass finished", "summary", result.Summary())
	return result, nil
}

// CancelAll cancels every pending alarm and clears the watermark without
// touching preferences.
func (s *Scheduler) CancelAll() error {
	if err := s.sink.CancelAll(); err != nil {
		return fmt.Errorf("cancel all alarms: %w", err)
	}
	if err := s.cfg.Delete(state.KeyWatermark); err != nil {
		return fmt.Errorf("clear watermark: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Per-day scheduling
// --------------------------------------------------------------------------

// ScheduleDay emits one request per enabled kind for the day. A kind stays
// NotScheduled when its time is missing, unparseable, or — for today — the
// offset-adjusted trigger has already passed.
func (s *Scheduler) ScheduleDay(day *prayer.Day, prefs [prayer.KindCount]Preferences) (scheduled, skipped int) {
	date, err := day.Date()
	if err != nil {
		s.logger.Warn("day with unusable date key skipped", "key", day.DateKey, "error", err)
		return 0, prayer.KindCount
	}

	now := s.now()
	isToday := date.Year() == now.Year() && date.YearDay() == now.YearDay()

	for _, kind := range prayer.Kinds() {
		p := prefs[kind]
		if !p.Enabled {
			continue
		}
		clock := day.TimeFor(kind)
		if clock == "" {
			skipped++
			continue
		}
		at, err := prayer.ClockTime(date, clock, s.tz)
		if err != nil {
			s.logger.Warn("unparseable prayer time skipped",
				"date", day.DateKey, "kind", kind.Name(), "value", clock)
			skipped++
			continue
		}
		at = at.Add(-time.Duration(p.OffsetMin) * time.Minute)

		if isToday && at.Before(now) {
			skipped++
			continue
		}

		req := Request{
			ID:    ID(date, kind),
			Kind:  kind,
			At:    at,
			Title: kind.Title(),
			Body:  fmt.Sprintf("%s at %s", kind.Title(), clock),
			Sound: p.Sound,
		}
		if err := s.sink.Schedule(req); err != nil {
			s.logger.Warn("sink rejected alarm", "id", req.ID, "error", err)
			skipped++
			continue
		}
		scheduled++
	}
	return scheduled, skipped
}

// --------------------------------------------------------------------------
// Internals
// --------------------------------------------------------------------------

func (s *Scheduler) loadAllPreferences() ([prayer.KindCount]Preferences, bool, error) {
	var prefs [prayer.KindCount]Preferences
	anyEnabled := false
	for _, kind := range prayer.Kinds() {
		p, err := LoadPreferences(s.cfg, kind)
		if err != nil {
			return prefs, false, err
		}
		prefs[kind] = p
		if p.Enabled {
			anyEnabled = true
		}
	}
	return prefs, anyEnabled, nil
}

// coverageFresh reports whether a non-forced pass can be skipped: the
// watermark is comfortably ahead, or the last automatic run is inside the
// cooldown.
func (s *Scheduler) coverageFresh(now time.Time) bool {
	if watermark, ok, err := s.cfg.GetTime(state.KeyWatermark); err == nil && ok {
		if watermark.After(now.Add(watermarkLead)) {
			return true
		}
	}
	if lastRun, ok, err := s.cfg.GetTime(state.KeyLastAlarmRun); err == nil && ok {
		if now.Sub(lastRun) < rescheduleCooldown {
			return true
		}
	}
	return false
}
