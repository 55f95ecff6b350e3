// Command vakit is the operator CLI for the prayer-time engine.
//
// Usage:
//
//	vakit fetch day --date 2025-03-14
//	vakit fetch month --year 2025 --month 3 --force
//	vakit alarms set --force
//	vakit alarms cancel
//	vakit prefs set fajr --enabled --offset 10 --sound adhan1
//	vakit prefs list
//	vakit cache stats
//	vakit cache purge
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vakit/internal/alarm"
	"vakit/internal/cache"
	"vakit/internal/config"
	"vakit/internal/prayer"
	"vakit/internal/provider/legacy"
	"vakit/internal/provider/takvim"
	"vakit/internal/repository"
	"vakit/internal/state"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "vakit",
		Short: "Prayer-time engine CLI",
	}

	root.AddCommand(fetchCmd())
	root.AddCommand(alarmsCmd())
	root.AddCommand(prefsCmd())
	root.AddCommand(cacheCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// Engine wiring shared by subcommands
// --------------------------------------------------------------------------

type engine struct {
	cfg    *config.Config
	states *state.Store
	store  *cache.Store
	repo   *repository.Repository
	sched  *alarm.Scheduler
}

func (e *engine) close() { e.states.Close() }

// locationFlags are the per-command coordinate overrides; NaN means "not
// set, use the configured value".
type locationFlags struct {
	lat, lon, alt float64
}

func (f *locationFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", math.NaN(), "Latitude override")
	cmd.Flags().Float64Var(&f.lon, "lon", math.NaN(), "Longitude override")
	cmd.Flags().Float64Var(&f.alt, "alt", math.NaN(), "Altitude override (meters)")
}

func (e *engine) location(f locationFlags) prayer.LocationFix {
	loc := prayer.LocationFix{
		Latitude:  e.cfg.Latitude,
		Longitude: e.cfg.Longitude,
		Altitude:  e.cfg.Altitude,
	}
	if !math.IsNaN(f.lat) {
		loc.Latitude = f.lat
	}
	if !math.IsNaN(f.lon) {
		loc.Longitude = f.lon
	}
	if !math.IsNaN(f.alt) {
		loc.Altitude = f.alt
	}
	return loc
}

func openEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	states, err := state.Open(cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	store, err := cache.NewStore(cfg.CacheDir, states, logger)
	if err != nil {
		states.Close()
		return nil, fmt.Errorf("open year cache: %w", err)
	}

	primary := takvim.NewClient(cfg.TakvimBaseURL, cfg.HTTPTimeout, cfg.RemoteRPM, logger)
	fallback := legacy.NewClient(cfg.LegacyBaseURL, cfg.TZOffsetHours, cfg.HTTPTimeout, cfg.RemoteRPM, logger)
	repo := repository.New(store, primary, fallback, nil, logger)

	location := alarm.FixedLocation{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
		Altitude:  cfg.Altitude,
	}
	sched := alarm.NewScheduler(repo, location, states, alarm.LogSink{Logger: logger},
		time.Local, cfg.AlarmWindowDays, logger)

	return &engine{cfg: cfg, states: states, store: store, repo: repo, sched: sched}, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --------------------------------------------------------------------------
// fetch command
// --------------------------------------------------------------------------

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch prayer times",
	}
	cmd.AddCommand(fetchDayCmd())
	cmd.AddCommand(fetchMonthCmd())
	return cmd
}

func fetchDayCmd() *cobra.Command {
	var dateStr string
	var loc locationFlags
	cmd := &cobra.Command{
		Use:   "day",
		Short: "Fetch one day's times (cache first, then backends)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.close()

			date := time.Now()
			if dateStr != "" {
				date, err = prayer.NormalizeDateKey(dateStr)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
			}

			day := e.repo.GetDay(context.Background(), e.location(loc), date)
			if day == nil {
				return fmt.Errorf("no data for %s: backends unreachable and cache empty", prayer.DateKey(date))
			}
			return printJSON(day)
		},
	}
	cmd.Flags().StringVar(&dateStr, "date", "", "Date (yyyy-MM-dd), default today")
	loc.register(cmd)
	return cmd
}

func fetchMonthCmd() *cobra.Command {
	var year, month int
	var force bool
	var loc locationFlags
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Fetch a month's times (cache first, then backends)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.close()

			if month < 1 || month > 12 {
				return fmt.Errorf("--month must be 1-12")
			}

			days := e.repo.GetMonth(context.Background(), e.location(loc), year, time.Month(month), force)
			if days == nil {
				return fmt.Errorf("no data for %d-%02d: backends unreachable and cache empty", year, month)
			}
			return printJSON(days)
		},
	}
	now := time.Now()
	cmd.Flags().IntVar(&year, "year", now.Year(), "Year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "Month (1-12)")
	cmd.Flags().BoolVar(&force, "force", false, "Bypass the cache completeness check")
	loc.register(cmd)
	return cmd
}

// --------------------------------------------------------------------------
// alarms command
// --------------------------------------------------------------------------

func alarmsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alarms",
		Short: "Run or cancel the alarm scheduling pass",
	}

	var force bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Run the monthly alarm pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.close()

			result, err := e.sched.SetMonthlyAlarms(context.Background(), force)
			if err != nil {
				return err
			}
			fmt.Println(result.Summary())
			return nil
		},
	}
	set.Flags().BoolVar(&force, "force", false, "Bypass watermark and cooldown checks")

	cancel := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel all pending alarms and clear the coverage watermark",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.close()
			return e.sched.CancelAll()
		},
	}

	cmd.AddCommand(set)
	cmd.AddCommand(cancel)
	return cmd
}

// --------------------------------------------------------------------------
// prefs command
// --------------------------------------------------------------------------

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Inspect or change per-prayer reminder preferences",
	}

	var enabled bool
	var offset int
	var sound string
	set := &cobra.Command{
		Use:   "set <kind>",
		Short: "Set one kind's reminder preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindByName(args[0])
			if err != nil {
				return err
			}
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.states.SetBool(state.PrefKey(kind.Name(), "enabled"), enabled); err != nil {
				return err
			}
			if err := e.states.SetInt(state.PrefKey(kind.Name(), "offset_min"), offset); err != nil {
				return err
			}
			if sound != "" {
				if err := e.states.Set(state.PrefKey(kind.Name(), "sound"), sound); err != nil {
					return err
				}
			}
			return nil
		},
	}
	set.Flags().BoolVar(&enabled, "enabled", false, "Enable the reminder")
	set.Flags().IntVar(&offset, "offset", 0, "Minutes before the prayer time")
	set.Flags().StringVar(&sound, "sound", "", "Sound key for the platform sink")

	list := &cobra.Command{
		Use:   "list",
		Short: "List all reminder preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.close()

			out := make(map[string]alarm.Preferences, prayer.KindCount)
			for _, kind := range prayer.Kinds() {
				p, err := alarm.LoadPreferences(e.states, kind)
				if err != nil {
					return err
				}
				out[kind.Name()] = p
			}
			return printJSON(out)
		},
	}

	cmd.AddCommand(set)
	cmd.AddCommand(list)
	return cmd
}

func kindByName(name string) (prayer.Kind, error) {
	for _, kind := range prayer.Kinds() {
		if kind.Name() == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown prayer kind %q", name)
}

// --------------------------------------------------------------------------
// cache command
// --------------------------------------------------------------------------

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or purge the year cache",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Report cache file count and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.close()

			files, bytes, err := e.store.Stats()
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"files":       files,
				"total_bytes": bytes,
				"dir":         e.store.Dir(),
			})
		},
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Remove every year-cache file",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEngine()
			if err != nil {
				return err
			}
			defer e.close()
			return e.store.Purge()
		},
	}

	cmd.AddCommand(stats)
	cmd.AddCommand(purge)
	return cmd
}
