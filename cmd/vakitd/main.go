// Command vakitd is the prayer-time engine daemon: it serves the HTTP API
// and runs the periodic background alarm pass.
//
// Usage:
//
//	vakitd
//	VAKIT_API_PORT=8091 RESCHEDULE_CRON="*/30 * * * *" vakitd
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"vakit/internal/alarm"
	"vakit/internal/api"
	"vakit/internal/cache"
	"vakit/internal/config"
	"vakit/internal/prayer"
	"vakit/internal/provider/legacy"
	"vakit/internal/provider/takvim"
	"vakit/internal/repository"
	"vakit/internal/state"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// State store (reference location, watermark, preferences)
	states, err := state.Open(cfg.StateDB)
	if err != nil {
		logger.Error("Failed to open state store", "error", err)
		os.Exit(1)
	}
	defer states.Close()

	// Year cache
	store, err := cache.NewStore(cfg.CacheDir, states, logger)
	if err != nil {
		logger.Error("Failed to open year cache", "error", err)
		os.Exit(1)
	}
	logger.Info("Year cache ready", "dir", cfg.CacheDir)

	// Backends and repository
	primary := takvim.NewClient(cfg.TakvimBaseURL, cfg.HTTPTimeout, cfg.RemoteRPM, logger)
	fallback := legacy.NewClient(cfg.LegacyBaseURL, cfg.TZOffsetHours, cfg.HTTPTimeout, cfg.RemoteRPM, logger)
	reach := repository.Probe{Addr: probeAddr(cfg.TakvimBaseURL)}
	repo := repository.New(store, primary, fallback, reach, logger)

	// Alarm scheduler with the structured-log sink
	location := alarm.FixedLocation{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
		Altitude:  cfg.Altitude,
	}
	sched := alarm.NewScheduler(repo, location, states, alarm.LogSink{Logger: logger},
		time.Local, cfg.AlarmWindowDays, logger)

	// Location drift check on startup: a moved reference purges every year
	// cache before anything reads it.
	if purged, err := store.InvalidateIfMoved(prayer.LocationFix(location)); err != nil {
		logger.Warn("Drift check failed", "error", err)
	} else if purged {
		logger.Info("Year caches purged after location drift")
	}

	// Background reschedule pass, supervised: panics are recovered and
	// logged, never silently dropped.
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{logger})))
	_, err = c.AddFunc(cfg.RescheduleCron, func() {
		result, err := sched.SetMonthlyAlarms(ctx, false)
		if err != nil {
			logger.Error("Background alarm pass failed", "error", err)
			return
		}
		if !result.SkippedPass {
			logger.Info("Background alarm pass", "summary", result.Summary())
		}
	})
	if err != nil {
		logger.Error("Invalid RESCHEDULE_CRON expression", "expr", cfg.RescheduleCron, "error", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()
	logger.Info("Background alarm pass scheduled", "cron", cfg.RescheduleCron)

	// HTTP server
	handler := api.NewHandler(repo, sched, store, cfg, logger)
	router := api.NewRouter(handler, cfg.CORSAllowOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting vakitd", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}

// probeAddr derives the host:port the reachability probe dials from the
// primary backend's base URL.
func probeAddr(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "1.1.1.1:443"
	}
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "http" {
			host += ":80"
		} else {
			host += ":443"
		}
	}
	return host
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Info(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
