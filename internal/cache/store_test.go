package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vakit/internal/prayer"
)

// memRefs is an in-memory RefStore for tests.
type memRefs map[string]float64

func (m memRefs) GetFloat(key string) (float64, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memRefs) SetFloat(key string, v float64) error {
	m[key] = v
	return nil
}

var istanbul = prayer.LocationFix{Latitude: 41.0082, Longitude: 28.9784}

func newTestStore(t *testing.T) (*Store, memRefs) {
	t.Helper()
	refs := memRefs{}
	s, err := NewStore(t.TempDir(), refs, nil)
	require.NoError(t, err)
	return s, refs
}

func marchDays(n int) []prayer.Day {
	days := make([]prayer.Day, 0, n)
	for d := 1; d <= n; d++ {
		days = append(days, prayer.Day{
			DateKey: prayer.DateKey(time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)),
			Fajr:    "05:12",
		})
	}
	return days
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	days := marchDays(30)

	require.NoError(t, s.Save(istanbul, 2025, days))
	got, ok := s.Load(istanbul, 2025)
	require.True(t, ok)
	assert.ElementsMatch(t, days, got)

	// A nearby fix within rounding shares the file.
	near := prayer.LocationFix{Latitude: istanbul.Latitude + 0.00001, Longitude: istanbul.Longitude}
	got, ok = s.Load(near, 2025)
	require.True(t, ok)
	assert.Len(t, got, 30)
}

func TestLoadMissingOrBroken(t *testing.T) {
	s, _ := newTestStore(t)

	_, ok := s.Load(istanbul, 2025)
	assert.False(t, ok, "absent file")

	path := s.fileName(istanbul, 2025)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, ok = s.Load(istanbul, 2025)
	assert.False(t, ok, "corrupt file")

	require.NoError(t, os.WriteFile(path,
		[]byte(`{"version":1,"latitude":41.0082,"longitude":28.9784,"year":2025,"days":[{"date":"2025-03-01"}]}`), 0o644))
	_, ok = s.Load(istanbul, 2025)
	assert.False(t, ok, "stale schema version discarded wholesale")
}

func TestMergeIdempotent(t *testing.T) {
	existing := marchDays(10)
	incoming := marchDays(15)
	incoming[4].Fajr = "05:55" // overlapping date, fresher value

	once := Merge(existing, incoming)
	require.Len(t, once, 15)
	assert.Equal(t, "05:55", once[4].Fajr)

	twice := Merge(once, incoming)
	assert.Equal(t, once, twice, "merging the same set twice is a no-op")
}

func TestMergeSortsAscending(t *testing.T) {
	a := []prayer.Day{{DateKey: "2025-03-20"}}
	b := []prayer.Day{{DateKey: "2025-03-01"}, {DateKey: "2025-03-10"}}
	merged := Merge(a, b)
	require.Len(t, merged, 3)
	assert.Equal(t, "2025-03-01", merged[0].DateKey)
	assert.Equal(t, "2025-03-20", merged[2].DateKey)
}

func TestInvalidateIfMoved(t *testing.T) {
	s, refs := newTestStore(t)

	// First call records the reference without purging.
	purged, err := s.InvalidateIfMoved(istanbul)
	require.NoError(t, err)
	assert.False(t, purged)
	assert.Equal(t, istanbul.Latitude, refs[refLatKey])

	require.NoError(t, s.Save(istanbul, 2025, marchDays(30)))
	require.NoError(t, s.Save(istanbul, 2026, marchDays(10)))

	// Within the threshold: nothing happens.
	nearby := prayer.LocationFix{Latitude: istanbul.Latitude + 0.01, Longitude: istanbul.Longitude}
	purged, err = s.InvalidateIfMoved(nearby)
	require.NoError(t, err)
	assert.False(t, purged)
	files, _, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, files)

	// Beyond the threshold: every year file goes, reference resets.
	ankara := prayer.LocationFix{Latitude: 39.9334, Longitude: 32.8597}
	purged, err = s.InvalidateIfMoved(ankara)
	require.NoError(t, err)
	assert.True(t, purged)
	files, _, err = s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, files)
	assert.Equal(t, ankara.Latitude, refs[refLatKey])
	assert.Equal(t, ankara.Longitude, refs[refLonKey])
}

func TestSaveIsWholeFileRewrite(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Save(istanbul, 2025, marchDays(30)))
	require.NoError(t, s.Save(istanbul, 2025, marchDays(5)))

	got, ok := s.Load(istanbul, 2025)
	require.True(t, ok)
	assert.Len(t, got, 5, "save replaces, callers merge beforehand")

	// No temp files left behind.
	leftovers, err := filepath.Glob(filepath.Join(s.Dir(), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}
