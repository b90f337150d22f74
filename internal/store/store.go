// Package store persists readings, forecasts, and workout snapshots.
package store

import (
	"context"
	"time"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

// ReadingStore is the time-ordered collection of ground-truth readings.
type ReadingStore interface {
	// IngestReadings adds observations, skipping external ids already
	// present, and reports how many were new.
	IngestReadings(ctx context.Context, obs []models.Observation) (int, error)

	// ReadingsInRange returns observations with start <= time <= end,
	// ordered ascending.
	ReadingsInRange(ctx context.Context, start, end time.Time) ([]models.Observation, error)

	// LatestReading returns the most recent observation. The second
	// return value is false when the store is empty.
	LatestReading(ctx context.Context) (models.Observation, bool, error)

	// PruneReadings removes observations strictly older than cutoff and
	// reports how many were dropped.
	PruneReadings(ctx context.Context, cutoff time.Time) (int, error)
}

// ForecastStore persists per-model forecasts and the workout snapshots
// the exporter joins against them.
type ForecastStore interface {
	// SaveForecasts inserts new forecasts and replaces existing ones by
	// id, so reconciled match fields overwrite earlier state.
	SaveForecasts(ctx context.Context, forecasts []*models.Forecast) error

	// ForecastsInRange returns forecasts with start <= time <= end,
	// ordered by time then model index.
	ForecastsInRange(ctx context.Context, start, end time.Time) ([]*models.Forecast, error)

	// SaveSnapshots inserts workout snapshots, ignoring known ids.
	SaveSnapshots(ctx context.Context, snaps []models.WorkoutSnapshot) error

	// SnapshotsInRange returns snapshots with start <= time <= end,
	// ordered ascending.
	SnapshotsInRange(ctx context.Context, start, end time.Time) ([]models.WorkoutSnapshot, error)

	// PruneForecasts removes forecasts and snapshots strictly older than
	// cutoff and reports how many forecasts were dropped.
	PruneForecasts(ctx context.Context, cutoff time.Time) (int, error)
}

// Store is the combined persistence surface of the pipeline.
type Store interface {
	ReadingStore
	ForecastStore
	Close() error
}
