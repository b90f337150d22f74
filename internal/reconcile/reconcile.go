// Package reconcile pairs forecasts with the ground-truth readings that
// arrive after them.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/match"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

// ErrFetch wraps observation-source failures. The batch is aborted with
// no forecast touched; calling Reconcile again retries the whole pass.
var ErrFetch = errors.New("observation fetch failed")

// ObservationSource supplies ground-truth readings for a time range.
// Implementations may return duplicates by external id; the reconciler
// de-duplicates before matching.
type ObservationSource interface {
	FetchRange(ctx context.Context, start, end time.Time) ([]models.Observation, error)
}

// Config carries the matching policy.
type Config struct {
	Horizon   time.Duration // how far ahead forecasts aim, used when a forecast carries no horizon
	Tolerance time.Duration // nearest-neighbor gate around the target instant
	AcceptMin time.Duration // acceptance window lower bound, inclusive
	AcceptMax time.Duration // acceptance window upper bound, inclusive
	Buffer    time.Duration // fetch padding past the newest forecast
}

// DefaultConfig returns the standard policy: 20 minute horizon, 5 minute
// tolerance, 15-25 minute acceptance window, 24 hour fetch buffer.
func DefaultConfig() Config {
	return Config{
		Horizon:   20 * time.Minute,
		Tolerance: 5 * time.Minute,
		AcceptMin: 15 * time.Minute,
		AcceptMax: 25 * time.Minute,
		Buffer:    24 * time.Hour,
	}
}

// Reconciler matches forecast batches against observations. A mutex
// serializes passes: concurrent reconciliation over overlapping forecast
// sets would race on the set and clear of match fields.
type Reconciler struct {
	source ObservationSource
	config Config

	mu  sync.Mutex
	now func() time.Time
}

// NewReconciler builds a reconciler over the given source.
func NewReconciler(source ObservationSource, config Config) *Reconciler {
	return &Reconciler{source: source, config: config, now: time.Now}
}

// Window returns the observation range relevant to a forecast batch:
// from the oldest forecast timestamp to the newest plus the fetch
// buffer, extended to now so readings that only just arrived are always
// inside it.
func (r *Reconciler) Window(forecasts []*models.Forecast) (time.Time, time.Time) {
	var min, max time.Time
	for _, f := range forecasts {
		if f == nil {
			continue
		}
		if min.IsZero() || f.Time.Before(min) {
			min = f.Time
		}
		if max.IsZero() || f.Time.After(max) {
			max = f.Time
		}
	}

	end := max.Add(r.config.Buffer)
	if now := r.now(); now.After(end) {
		end = now
	}
	return min, end
}

// Reconcile fetches the relevant observations and runs the matching pass
// over the batch, mutating forecasts in place. It returns how many
// forecasts went from unmatched to matched in this call; re-running with
// unchanged input returns 0. An empty batch returns 0 without fetching.
// On a fetch failure the batch is left untouched and the error wraps
// ErrFetch.
func (r *Reconciler) Reconcile(ctx context.Context, forecasts []*models.Forecast) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(forecasts) == 0 {
		return 0, nil
	}

	start, end := r.Window(forecasts)
	observations, err := r.source.FetchRange(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return r.apply(forecasts, observations), nil
}

// ReconcileWith runs the matching pass over observations the caller
// already holds, with the same mutation semantics as Reconcile.
func (r *Reconciler) ReconcileWith(forecasts []*models.Forecast, observations []models.Observation) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apply(forecasts, observations)
}

func (r *Reconciler) apply(forecasts []*models.Forecast, observations []models.Observation) int {
	candidates := models.SortedObservations(models.DedupObservations(observations))

	newlyMatched := 0
	for _, f := range forecasts {
		if f == nil {
			continue
		}
		wasMatched := f.IsMatched()

		obs, ok := match.Nearest(candidates, f.Time, r.horizonFor(f), r.config.Tolerance)
		if !ok {
			f.ClearMatch()
			continue
		}

		elapsed := obs.Time.Sub(f.Time)
		if elapsed < r.config.AcceptMin || elapsed > r.config.AcceptMax {
			f.ClearMatch()
			continue
		}

		f.SetMatch(obs)
		if !wasMatched {
			newlyMatched++
		}
	}
	return newlyMatched
}

func (r *Reconciler) horizonFor(f *models.Forecast) time.Duration {
	if f.HorizonMinutes > 0 {
		return time.Duration(f.HorizonMinutes) * time.Minute
	}
	return r.config.Horizon
}

// EventLog answers most-recent-event queries for enrichment.
// *models.EventSet is the usual implementation.
type EventLog interface {
	FetchLast(kind models.EventKind, before time.Time, withinHours float64) (models.DecayableEvent, bool)
}

// EnrichEventTimings resolves, for every forecast, the most recent
// insulin and carb events strictly preceding it and how many minutes
// before it they happened. Forecasts with no qualifying event get the
// corresponding fields cleared, so stale enrichment never survives a
// re-run.
func EnrichEventTimings(forecasts []*models.Forecast, events EventLog, insulinWindowHours, carbWindowHours float64) {
	for _, f := range forecasts {
		if f == nil {
			continue
		}

		if e, ok := events.FetchLast(models.EventInsulin, f.Time, insulinWindowHours); ok {
			at := e.Time
			mins := f.Time.Sub(e.Time).Minutes()
			f.LastInsulinAt = &at
			f.MinutesSinceInsulin = &mins
		} else {
			f.LastInsulinAt = nil
			f.MinutesSinceInsulin = nil
		}

		if e, ok := events.FetchLast(models.EventCarb, f.Time, carbWindowHours); ok {
			at := e.Time
			mins := f.Time.Sub(e.Time).Minutes()
			f.LastCarbAt = &at
			f.MinutesSinceCarb = &mins
		} else {
			f.LastCarbAt = nil
			f.MinutesSinceCarb = nil
		}
	}
}
