package alarm

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vakit/internal/prayer"
	"vakit/internal/state"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

// memConfig is an in-memory ConfigStore.
type memConfig map[string]string

func (m memConfig) Get(key string) (string, bool, error) { v, ok := m[key]; return v, ok, nil }
func (m memConfig) Set(key, value string) error          { m[key] = value; return nil }
func (m memConfig) Delete(key string) error              { delete(m, key); return nil }

func (m memConfig) GetBool(key string) (bool, bool, error) {
	v, ok := m[key]
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, nil
	}
	return b, true, nil
}

func (m memConfig) GetInt(key string) (int, bool, error) {
	v, ok := m[key]
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

func (m memConfig) GetTime(key string) (time.Time, bool, error) {
	v, ok := m[key]
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (m memConfig) SetTime(key string, t time.Time) error {
	m[key] = t.Format(time.RFC3339)
	return nil
}

func (m memConfig) enable(kind prayer.Kind, offsetMin int) {
	m[state.PrefKey(kind.Name(), "enabled")] = "true"
	m[state.PrefKey(kind.Name(), "offset_min")] = strconv.Itoa(offsetMin)
}

// captureSink records everything handed to it.
type captureSink struct {
	scheduled  []Request
	cancelled  []int
	cancelAlls int
}

func (s *captureSink) Schedule(req Request) error { s.scheduled = append(s.scheduled, req); return nil }
func (s *captureSink) Cancel(id int) error        { s.cancelled = append(s.cancelled, id); return nil }
func (s *captureSink) CancelAll() error           { s.cancelAlls++; return nil }

// rangeSource serves a synthetic contiguous day range.
type rangeSource struct {
	calls int
}

func (r *rangeSource) EnsureDaysRange(_ context.Context, _ prayer.LocationFix, start time.Time, daysNeeded int) []prayer.Day {
	r.calls++
	days := make([]prayer.Day, 0, daysNeeded)
	for i := 0; i < daysNeeded; i++ {
		d := start.AddDate(0, 0, i)
		days = append(days, prayer.Day{
			DateKey:   prayer.DateKey(d),
			FalseFajr: "04:30", Fajr: "05:12", Sunrise: "06:40", Dhuhr: "13:05",
			Asr: "16:20", Maghrib: "19:10", Isha: "20:35", EndOfIsha: "22:00",
		})
	}
	return days
}

func newTestScheduler(cfg memConfig, sink Sink, source DaysSource, now time.Time) *Scheduler {
	s := NewScheduler(source, FixedLocation{Latitude: 41.0082, Longitude: 28.9784}, cfg, sink,
		time.UTC, DefaultWindowDays, nil)
	s.now = func() time.Time { return now }
	return s
}

// noon on a fixed day, so "today" skipping is deterministic.
var testNow = time.Date(2025, time.March, 14, 12, 0, 0, 0, time.UTC)

// --------------------------------------------------------------------------
// Deterministic ids
// --------------------------------------------------------------------------

func TestIDUniqueAcrossRotation(t *testing.T) {
	seen := make(map[int]string)
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() < 2030; d = d.AddDate(0, 0, 1) {
		for _, kind := range prayer.Kinds() {
			id := ID(d, kind)
			slot := prayer.DateKey(d) + "/" + kind.Name()
			if prev, dup := seen[id]; dup {
				t.Fatalf("id %d collides: %s and %s", id, prev, slot)
			}
			seen[id] = slot
		}
	}
}

func TestIDStable(t *testing.T) {
	d := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, ID(d, prayer.KindFajr), ID(d, prayer.KindFajr))
	assert.NotEqual(t, ID(d, prayer.KindFajr), ID(d, prayer.KindIsha))
	assert.NotEqual(t, ID(d, prayer.KindFajr), ID(d.AddDate(0, 0, 1), prayer.KindFajr))
}

// --------------------------------------------------------------------------
// ScheduleDay
// --------------------------------------------------------------------------

func TestScheduleDayRespectsPreferences(t *testing.T) {
	cfg := memConfig{}
	cfg.enable(prayer.KindFajr, 10)
	cfg.enable(prayer.KindMaghrib, 0)
	sink := &captureSink{}
	s := newTestScheduler(cfg, sink, &rangeSource{}, testNow)

	prefs, anyEnabled, err := s.loadAllPreferences()
	require.NoError(t, err)
	assert.True(t, anyEnabled)

	tomorrow := testNow.AddDate(0, 0, 1)
	day := (&rangeSource{}).EnsureDaysRange(context.Background(), prayer.LocationFix{}, tomorrow, 1)[0]

	scheduled, skipped := s.ScheduleDay(&day, prefs)
	assert.Equal(t, 2, scheduled)
	assert.Equal(t, 0, skipped)
	require.Len(t, sink.scheduled, 2)

	// Fajr fires 10 minutes early; Maghrib on time.
	fajr := sink.scheduled[0]
	assert.Equal(t, prayer.KindFajr, fajr.Kind)
	assert.Equal(t, time.Date(2025, time.March, 15, 5, 2, 0, 0, time.UTC), fajr.At)
	maghrib := sink.scheduled[1]
	assert.Equal(t, time.Date(2025, time.March, 15, 19, 10, 0, 0, time.UTC), maghrib.At)
}

func TestScheduleDayNeverEmitsPastAlarmToday(t *testing.T) {
	cfg := memConfig{}
	for _, kind := range prayer.Kinds() {
		cfg.enable(kind, 0)
	}
	sink := &captureSink{}
	s := newTestScheduler(cfg, sink, &rangeSource{}, testNow)

	prefs, _, err := s.loadAllPreferences()
	require.NoError(t, err)

	today := (&rangeSource{}).EnsureDaysRange(context.Background(), prayer.LocationFix{}, testNow, 1)[0]
	scheduled, skipped := s.ScheduleDay(&today, prefs)

	// testNow is noon: the three morning kinds are already past and stay
	// NotScheduled; the afternoon and evening kinds still fire.
	for _, req := range sink.scheduled {
		assert.True(t, req.At.After(testNow), "emitted alarm in the past: %v", req.At)
	}
	assert.Equal(t, 5, scheduled)
	assert.Equal(t, 3, skipped)
}

// --------------------------------------------------------------------------
// SetMonthlyAlarms
// --------------------------------------------------------------------------

func TestSetMonthlyAlarmsFullPass(t *testing.T) {
	cfg := memConfig{}
	cfg.enable(prayer.KindFajr, 0)
	sink := &captureSink{}
	source := &rangeSource{}
	s := newTestScheduler(cfg, sink, source, testNow)

	result, err := s.SetMonthlyAlarms(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 30, result.DaysCovered)
	// One kind over 30 days, minus today's already-past fajr.
	assert.Equal(t, 29, result.Scheduled)
	assert.Len(t, sink.scheduled, 29)

	// Watermark is the furthest scheduled date.
	watermark, ok, err := cfg.GetTime(state.KeyWatermark)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2025-04-12", prayer.DateKey(watermark))
	assert.True(t, watermark.Equal(result.Watermark))

	// Last-run stamp persisted for the cooldown.
	_, ok, err = cfg.GetTime(state.KeyLastAlarmRun)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetMonthlyAlarmsAllDisabled(t *testing.T) {
	cfg := memConfig{}
	require.NoError(t, cfg.SetTime(state.KeyWatermark, testNow.AddDate(0, 0, 20)))
	sink := &captureSink{}
	source := &rangeSource{}
	s := newTestScheduler(cfg, sink, source, testNow)

	result, err := s.SetMonthlyAlarms(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.CancelledAll)
	assert.Equal(t, 1, sink.cancelAlls)
	assert.Equal(t, 0, source.calls)

	_, ok, err := cfg.GetTime(state.KeyWatermark)
	require.NoError(t, err)
	assert.False(t, ok, "watermark cleared")

	// A repeat call before re-enabling stays a no-op terminal state.
	result, err = s.SetMonthlyAlarms(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.CancelledAll)
	assert.Equal(t, 0, source.calls)
}

func TestSetMonthlyAlarmsSkipsWhenCoverageFresh(t *testing.T) {
	cfg := memConfig{}
	cfg.enable(prayer.KindFajr, 0)
	require.NoError(t, cfg.SetTime(state.KeyWatermark, testNow.AddDate(0, 0, 10)))
	sink := &captureSink{}
	source := &rangeSource{}
	s := newTestScheduler(cfg, sink, source, testNow)

	result, err := s.SetMonthlyAlarms(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.SkippedPass)
	assert.Equal(t, 0, source.calls)

	// force bypasses the freshness check.
	result, err = s.SetMonthlyAlarms(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, result.SkippedPass)
	assert.Equal(t, 1, source.calls)
}

func TestSetMonthlyAlarmsCooldown(t *testing.T) {
	cfg := memConfig{}
	cfg.enable(prayer.KindFajr, 0)
	// Watermark nearly exhausted, but the last automatic run was recent.
	require.NoError(t, cfg.SetTime(state.KeyWatermark, testNow.AddDate(0, 0, 1)))
	require.NoError(t, cfg.SetTime(state.KeyLastAlarmRun, testNow.Add(-2*time.Hour)))
	source := &rangeSource{}
	s := newTestScheduler(cfg, &captureSink{}, source, testNow)

	result, err := s.SetMonthlyAlarms(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.SkippedPass)
	assert.Equal(t, 0, source.calls)

	// Outside the cooldown the pass runs.
	require.NoError(t, cfg.SetTime(state.KeyLastAlarmRun, testNow.Add(-7*time.Hour)))
	result, err = s.SetMonthlyAlarms(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.SkippedPass)
	assert.Equal(t, 1, source.calls)
}

func TestReschedulingSupersedesSameIDs(t *testing.T) {
	cfg := memConfig{}
	cfg.enable(prayer.KindFajr, 0)
	sink := &captureSink{}
	s := newTestScheduler(cfg, sink, &rangeSource{}, testNow)

	_, err := s.SetMonthlyAlarms(context.Background(), true)
	require.NoError(t, err)
	firstIDs := idsOf(sink.scheduled)

	_, err = s.SetMonthlyAlarms(context.Background(), true)
	require.NoError(t, err)
	secondIDs := idsOf(sink.scheduled[len(firstIDs):])

	// Same window, same ids: the sink supersedes rather than duplicates.
	assert.Equal(t, firstIDs, secondIDs)
}

func idsOf(reqs []Request) []int {
	ids := make([]int, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ID)
	}
	return ids
}
