// Package provider defines the contract both prayer-time backends satisfy.
//
// Two implementations exist: takvim (HTTP+JSON, primary) and legacy
// (HTTP+XML, fallback-only). The repository treats them uniformly and owns
// the fallback ordering.
package provider

import (
	"context"
	"time"

	"vakit/internal/prayer"
)

// Source is a remote prayer-time backend. Implementations return an error
// for any transport, status or payload problem; they never panic across the
// boundary. Callers decide whether an error is terminal or a fallback cue.
type Source interface {
	// Name identifies the backend in logs.
	Name() string

	// Daily fetches one day's times. A nil *Day with nil error never occurs;
	// absence is reported as an error.
	Daily(ctx context.Context, loc prayer.LocationFix, date time.Time) (*prayer.Day, error)

	// Monthly fetches a whole month. An empty slice with nil error never
	// occurs; absence is reported as an error.
	Monthly(ctx context.Context, loc prayer.LocationFix, year int, month time.Month) ([]prayer.Day, error)
}
