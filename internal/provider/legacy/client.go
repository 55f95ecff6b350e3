// Package legacy is the fallback HTTP+XML prayer-time backend client.
//
// The legacy service predates the JSON API and speaks plain HTTP with
// Turkish query parameters and fixed element names. It has no single-day
// endpoint: Daily fetches the enclosing month and filters, which is a
// documented limitation of the upstream service kept isolated inside this
// package so a future daily endpoint can replace it without touching the
// repository.
package legacy

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"vakit/internal/prayer"
)

const timesPath = "/vakitler"

// Client is the XML backend client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tzOffset   float64
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an XML backend client. tzOffset is the timezone-hours
// parameter the legacy service requires on every call.
func NewClient(baseURL string, tzOffset float64, timeout time.Duration, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := float64(requestsPerMinute) / 60.0
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		tzOffset:   tzOffset,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// Name implements provider.Source.
func (c *Client) Name() string { return "legacy-xml" }

// --------------------------------------------------------------------------
// Wire format
// --------------------------------------------------------------------------

// xmlDay mirrors the legacy document's fixed element names.
type xmlDay struct {
	Tarih      string `xml:"Tarih"`
	Enlem      string `xml:"Enlem"`
	Boylam     string `xml:"Boylam"`
	Yukseklik  string `xml:"Yukseklik"`
	FecriKazip string `xml:"FecriKazip"`
	FecriSadik string `xml:"FecriSadik"`
	Gunes      string `xml:"Gunes"`
	Ogle       string `xml:"Ogle"`
	Ikindi     string `xml:"Ikindi"`
	Aksam      string `xml:"Aksam"`
	Yatsi      string `xml:"Yatsi"`
	YatsiSonu  string `xml:"YatsiSonu"`
}

type xmlTimes struct {
	XMLName xml.Name `xml:"Vakitler"`
	Days    []xmlDay `xml:"Vakit"`
}

// --------------------------------------------------------------------------
// Source implementation
// --------------------------------------------------------------------------

// Daily emulates a single-day query by fetching the enclosing month and
// filtering to the requested date.
func (c *Client) Daily(ctx context.Context, loc prayer.LocationFix, date time.Time) (*prayer.Day, error) {
	days, err := c.Monthly(ctx, loc, date.Year(), date.Month())
	if err != nil {
		return nil, err
	}
	want := prayer.DateKey(date)
	for i := range days {
		t, err := days[i].Date()
		if err != nil {
			continue
		}
		if prayer.DateKey(t) == want {
			return &days[i], nil
		}
	}
	return nil, fmt.Errorf("legacy month %d-%02d has no entry for %s", date.Year(), date.Month(), want)
}

// Monthly fetches a whole month's times.
func (c *Client) Monthly(ctx context.Context, loc prayer.LocationFix, year int, month time.Month) ([]prayer.Day, error) {
	params := c.baseParams(loc)
	params.Set("Ay", strconv.Itoa(int(month)))
	params.Set("Yil", strconv.Itoa(year))

	doc, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(doc.Days) == 0 {
		return nil, fmt.Errorf("legacy response for %d-%02d carries no days", year, month)
	}

	days := make([]prayer.Day, 0, len(doc.Days))
	for _, xd := range doc.Days {
		days = append(days, c.mapDay(xd, loc))
	}
	return days, nil
}

func (c *Client) baseParams(loc prayer.LocationFix) url.Values {
	params := url.Values{}
	params.Set("Enlem", formatCoord(loc.Latitude))
	params.Set("Boylam", formatCoord(loc.Longitude))
	params.Set("Yukseklik", formatCoord(loc.Altitude))
	params.Set("SaatBolgesi", formatCoord(c.tzOffset))
	params.Set("yazSaati", dstFlag(time.Now()))
	return params
}

// mapDay converts one XML element into a Day. Missing coordinate elements
// fall back to the requested location.
func (c *Client) mapDay(xd xmlDay, loc prayer.LocationFix) prayer.Day {
	d := prayer.Day{
		DateKey:   xd.Tarih,
		Latitude:  parseCoord(xd.Enlem, loc.Latitude),
		Longitude: parseCoord(xd.Boylam, loc.Longitude),
		Altitude:  parseCoord(xd.Yukseklik, loc.Altitude),
		TZOffset:  c.tzOffset,
		FalseFajr: xd.FecriKazip,
		Fajr:      xd.FecriSadik,
		Sunrise:   xd.Gunes,
		Dhuhr:     xd.Ogle,
		Asr:       xd.Ikindi,
		Maghrib:   xd.Aksam,
		Isha:      xd.Yatsi,
		EndOfIsha: xd.YatsiSonu,
	}
	return d
}

// get performs a rate-limited GET and unmarshals the XML document. A
// non-XML body (the service serves HTML error pages) is an error, not a
// panic.
func (c *Client) get(ctx context.Context, params url.Values) (*xmlTimes, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + timesPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", timesPath, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("legacy %s returned %d", timesPath, resp.StatusCode)
	}

	var doc xmlTimes
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode legacy response: %w", err)
	}
	return &doc, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseCoord(s string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return fallback
}

// dstFlag reports the legacy 0/1 daylight-saving parameter for an instant.
func dstFlag(t time.Time) string {
	if t.IsDST() {
		return "1"
	}
	return "0"
}
