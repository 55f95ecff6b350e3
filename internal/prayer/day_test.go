package prayer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDateKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-03-14", "2025-03-14"},
		{"2025-03-14T00:00:00", "2025-03-14"},
		{"2025-03-14T21:45:10", "2025-03-14"},
		{"14/03/2025", "2025-03-14"},
		{"14.03.2025", "2025-03-14"},
		{"03/14/2025 00:00:00", "2025-03-14"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeDateKey(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, DateKey(got))
			assert.Equal(t, 0, got.Hour())
		})
	}

	for _, bad := range []string{"", "not-a-date", "2025/03/14", "32/13/2025"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := NormalizeDateKey(bad)
			assert.Error(t, err)
		})
	}
}

func TestClockTime(t *testing.T) {
	date := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

	at, err := ClockTime(date, "05:12", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 14, 5, 12, 0, 0, time.UTC), at)

	at, err = ClockTime(date, "18:45:30", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 30, at.Second())

	_, err = ClockTime(date, "25:00", time.UTC)
	assert.Error(t, err)
	_, err = ClockTime(date, "dawn", time.UTC)
	assert.Error(t, err)
}

func TestTimeFor(t *testing.T) {
	d := Day{
		FalseFajr: "04:30", Fajr: "05:12", Sunrise: "06:40", Dhuhr: "13:05",
		Asr: "16:20", Maghrib: "19:10", Isha: "20:35", EndOfIsha: "22:00",
	}
	want := []string{"04:30", "05:12", "06:40", "13:05", "16:20", "19:10", "20:35", "22:00"}
	for i, kind := range Kinds() {
		assert.Equal(t, want[i], d.TimeFor(kind), kind.Name())
	}
}

func TestDedupeByDate(t *testing.T) {
	days := []Day{
		{DateKey: "2025-03-02", Fajr: "05:00"},
		{DateKey: "02/03/2025", Fajr: "05:30"}, // same calendar date, later wins
		{DateKey: "2025-03-01", Fajr: "05:01"},
		{DateKey: "garbage"},
	}
	out := DedupeByDate(days)
	require.Len(t, out, 2)
	assert.Equal(t, "2025-03-01", out[0].DateKey)
	assert.Equal(t, "05:30", out[1].Fajr)

	// Idempotent: deduping the result again changes nothing.
	again := DedupeByDate(out)
	assert.Equal(t, out, again)
}

func TestFilterMonth(t *testing.T) {
	days := []Day{
		{DateKey: "2025-02-28"},
		{DateKey: "2025-03-01"},
		{DateKey: "2025-03-31"},
		{DateKey: "2025-04-01"},
	}
	out := FilterMonth(days, 2025, time.March)
	require.Len(t, out, 2)
	assert.Equal(t, "2025-03-01", out[0].DateKey)
	assert.Equal(t, "2025-03-31", out[1].DateKey)
}

func TestSortDaysMixedLayouts(t *testing.T) {
	days := []Day{
		{DateKey: "15/03/2025"},
		{DateKey: "2025-03-01"},
		{DateKey: "2025-03-07T00:00:00"},
	}
	SortDays(days)
	assert.Equal(t, "2025-03-01", days[0].DateKey)
	assert.Equal(t, "2025-03-07T00:00:00", days[1].DateKey)
	assert.Equal(t, "15/03/2025", days[2].DateKey)
}
