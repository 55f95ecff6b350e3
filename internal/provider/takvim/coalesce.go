package takvim

import (
	"encoding/json"
	"strconv"
	"strings"

	"vakit/internal/prayer"
)

// The JSON backend's field names have drifted across deploys (English,
// Turkish, and camel-case variants have all been observed). Each logical
// field carries an ordered synonym list; the first key present in the
// payload wins. Adding a synonym here is the whole fix for the next rename.

var timeSynonyms = map[prayer.Kind][]string{
	prayer.KindFalseFajr: {"falseFajr", "fajrFirst", "fecriKazip"},
	prayer.KindFajr:      {"fajr", "fajrTime", "fecriSadik", "imsak"},
	prayer.KindSunrise:   {"sunrise", "sunriseTime", "gunes", "tulu"},
	prayer.KindDhuhr:     {"dhuhr", "dhuhrTime", "ogle", "zawal"},
	prayer.KindAsr:       {"asr", "asrTime", "ikindi"},
	prayer.KindMaghrib:   {"maghrib", "maghribTime", "aksam"},
	prayer.KindIsha:      {"isha", "ishaTime", "yatsi"},
	prayer.KindEndOfIsha: {"endOfIsha", "ishaEnd", "yatsiSonu"},
}

var (
	dateSynonyms = []string{"date", "dateTime", "tarih"}
	latSynonyms  = []string{"latitude", "enlem", "lat"}
	lonSynonyms  = []string{"longitude", "boylam", "lon", "lng"}
	altSynonyms  = []string{"altitude", "yukseklik", "alt"}
	tzSynonyms   = []string{"timeZone", "timezone", "saatBolgesi"}
	dstSynonyms  = []string{"dayLightSaving", "daylightSaving", "yazSaati"}
)

// rawDay is one day object as received: keys lower-cased for case-insensitive
// synonym resolution, values still raw.
type rawDay map[string]json.RawMessage

func newRawDay(m map[string]json.RawMessage) rawDay {
	out := make(rawDay, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// coalesceString resolves the first present, non-empty synonym to a string.
func (r rawDay) coalesceString(keys []string) string {
	for _, k := range keys {
		raw, ok := r[strings.ToLower(k)]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// coalesceFloat resolves the first present synonym to a float64, accepting
// both JSON numbers and numeric strings.
func (r rawDay) coalesceFloat(keys []string) (float64, bool) {
	for _, k := range keys {
		raw, ok := r[strings.ToLower(k)]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// coalesceBool resolves the first present synonym to a bool, accepting JSON
// booleans plus 0/1 numbers and strings.
func (r rawDay) coalesceBool(keys []string) bool {
	for _, k := range keys {
		raw, ok := r[strings.ToLower(k)]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f != 0
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			s = strings.TrimSpace(s)
			return s == "1" || strings.EqualFold(s, "true")
		}
	}
	return false
}

// mapDay converts one raw payload object into a Day. Coordinates missing
// from the payload fall back to the request's, so a sparse response still
// produces a usable record. Returns false when no date key resolves.
func mapDay(m map[string]json.RawMessage, loc prayer.LocationFix) (prayer.Day, bool) {
	r := newRawDay(m)

	dateKey := r.coalesceString(dateSynonyms)
	if dateKey == "" {
		return prayer.Day{}, false
	}
	if _, err := prayer.NormalizeDateKey(dateKey); err != nil {
		return prayer.Day{}, false
	}

	d := prayer.Day{
		DateKey:   dateKey,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Altitude:  loc.Altitude,
	}
	if v, ok := r.coalesceFloat(latSynonyms); ok {
		d.Latitude = v
	}
	if v, ok := r.coalesceFloat(lonSynonyms); ok {
		d.Longitude = v
	}
	if v, ok := r.coalesceFloat(altSynonyms); ok {
		d.Altitude = v
	}
	if v, ok := r.coalesceFloat(tzSynonyms); ok {
		d.TZOffset = v
	}
	d.DST = r.coalesceBool(dstSynonyms)

	d.FalseFajr = r.coalesceString(timeSynonyms[prayer.KindFalseFajr])
	d.Fajr = r.coalesceString(timeSynonyms[prayer.KindFajr])
	d.Sunrise = r.coalesceString(timeSynonyms[prayer.KindSunrise])
	d.Dhuhr = r.coalesceString(timeSynonyms[prayer.KindDhuhr])
	d.Asr = r.coalesceString(timeSynonyms[prayer.KindAsr])
	d.Maghrib = r.coalesceString(timeSynonyms[prayer.KindMaghrib])
	d.Isha = r.coalesceString(timeSynonyms[prayer.KindIsha])
	d.EndOfIsha = r.coalesceString(timeSynonyms[prayer.KindEndOfIsha])

	return d, true
}
