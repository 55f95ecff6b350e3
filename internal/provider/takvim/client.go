// Package takvim is the primary HTTP+JSON prayer-time backend client.
//
// The API exposes a single-day and a whole-month endpoint; responses are
// decoded through the synonym tables in coalesce.go so backend field renames
// do not reach callers. Requests are rate limited via a token bucket.
package takvim

import (
	"context"
	"encoding/json"
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

const (
	dailyPath   = "/api/TimeCalculation/TimeCalculate"
	monthlyPath = "/api/TimeCalculation/TimeCalculateByMonth"
)

// Client is the JSON backend client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a JSON backend client. requestsPerMinute bounds the
// request rate; timeout bounds each call (10–30s per the resource model).
func NewClient(baseURL string, timeout time.Duration, requestsPerMinute int, logger *slog.Logger) *Client {
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
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// Name implements provider.Source.
func (c *Client) Name() string { return "takvim-json" }

// Daily fetches one day's times.
func (c *Client) Daily(ctx context.Context, loc prayer.LocationFix, date time.Time) (*prayer.Day, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(loc.Latitude))
	params.Set("longitude", formatCoord(loc.Longitude))
	params.Set("altitude", formatCoord(loc.Altitude))
	params.Set("date", date.Format("2006-01-02"))

	body, err := c.get(ctx, dailyPath, params)
	if err != nil {
		return nil, err
	}

	// The daily endpoint returns a single object; older deploys wrapped it
	// in a one-element array.
	var obj map[string]json.RawMessage
	if objErr := json.Unmarshal(body, &obj); objErr != nil {
		var arr []map[string]json.RawMessage
		if err := json.Unmarshal(body, &arr); err != nil || len(arr) == 0 {
			return nil, fmt.Errorf("decode daily response: %w", objErr)
		}
		obj = arr[0]
	}

	day, ok := mapDay(obj, loc)
	if !ok {
		return nil, fmt.Errorf("daily response for %s carries no usable date", date.Format("2006-01-02"))
	}
	return &day, nil
}

// Monthly fetches a whole month's times.
func (c *Client) Monthly(ctx context.Context, loc prayer.LocationFix, year int, month time.Month) ([]prayer.Day, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(loc.Latitude))
	params.Set("longitude", formatCoord(loc.Longitude))
	params.Set("altitude", formatCoord(loc.Altitude))
	params.Set("monthId", strconv.Itoa(int(month)))
	params.Set("year", strconv.Itoa(year))

	body, err := c.get(ctx, monthlyPath, params)
	if err != nil {
		return nil, err
	}

	var arr []map[string]json.RawMessage
	if err := json.Unmarshal(body, &arr); err != nil {
		return nil, fmt.Errorf("decode monthly response: %w", err)
	}

	days := make([]prayer.Day, 0, len(arr))
	for _, obj := range arr {
		if day, ok := mapDay(obj, loc); ok {
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("monthly response for %d-%02d carries no usable days", year, month)
	}
	return days, nil
}

// get performs a rate-limited GET and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("takvim %s returned %d: %s", path, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

// formatCoord renders a coordinate with invariant decimal formatting; the
// backend rejects locale-dependent separators.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
