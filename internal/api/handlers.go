package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"vakit/internal/alarm"
	"vakit/internal/cache"
	"vakit/internal/config"
	"vakit/internal/prayer"
	"vakit/internal/repository"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	repo   *repository.Repository
	sched  *alarm.Scheduler
	store  *cache.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewHandler creates a Handler with shared dependencies.
func NewHandler(repo *repository.Repository, sched *alarm.Scheduler, store *cache.Store, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, sched: sched, store: store, cfg: cfg, logger: logger}
}

func (h *Handler) location() prayer.LocationFix {
	return prayer.LocationFix{
		Latitude:  h.cfg.Latitude,
		Longitude: h.cfg.Longitude,
		Altitude:  h.cfg.Altitude,
	}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "vakit",
		"status":  "running",
		"version": "1.0.0",
	})
}

// HealthCheck returns basic health status plus cache reachability.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	files, _, err := h.store.Stats()
	status := "healthy"
	if err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      status,
		"cache_files": files,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetDay serves one day's times. ?date=yyyy-MM-dd, default today.
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := prayer.NormalizeDateKey(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_DATE", "date must be yyyy-MM-dd")
			return
		}
		date = parsed
	}

	day := h.repo.GetDay(r.Context(), h.location(), date)
	if day == nil {
		writeError(w, http.StatusNotFound, "NO_DATA", "no data for requested day; backends unreachable and cache empty")
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// GetMonth serves a month's times. ?year=&month=[&force=true].
func (h *Handler) GetMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now()

	year := now.Year()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_YEAR", "year must be an integer")
			return
		}
		year = n
	}
	month := now.Month()
	if v := q.Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			writeError(w, http.StatusBadRequest, "BAD_MONTH", "month must be 1-12")
			return
		}
		month = time.Month(n)
	}
	force := q.Get("force") == "true"

	days := h.repo.GetMonth(r.Context(), h.location(), year, month, force)
	if days == nil {
		writeError(w, http.StatusNotFound, "NO_DATA", "no data for requested month; backends unreachable and cache empty")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":  year,
		"month": int(month),
		"count": len(days),
		"days":  days,
	})
}

// Reschedule runs the alarm pass on demand. ?force=true bypasses the
// watermark and cooldown checks.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	result, err := h.sched.SetMonthlyAlarms(r.Context(), force)
	if err != nil {
		h.logger.Error("reschedule via API failed", "error", err)
		writeError(w, http.StatusInternalServerError, "RESCHEDULE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":      result.Summary(),
		"scheduled":    result.Scheduled,
		"days_covered": result.DaysCovered,
		"skipped_pass": result.SkippedPass,
	})
}

// CacheStats reports year-cache file count and size.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	files, bytes, err := h.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "CACHE_STATS_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files":       files,
		"total_bytes": bytes,
		"dir":         h.store.Dir(),
	})
}
