package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

// SQLite is the durable Store, backed by a single database file.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at path and migrates the
// schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.AutoMigrate(&models.Observation{}, &models.Forecast{}, &models.WorkoutSnapshot{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// IngestReadings inserts observations, ignoring ids already present.
func (s *SQLite) IngestReadings(ctx context.Context, obs []models.Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&obs)
	if res.Error != nil {
		return 0, fmt.Errorf("inserting readings: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ReadingsInRange returns observations with start <= time <= end.
func (s *SQLite) ReadingsInRange(ctx context.Context, start, end time.Time) ([]models.Observation, error) {
	var obs []models.Observation
	err := s.db.WithContext(ctx).
		Where("time >= ? AND time <= ?", start, end).
		Order("time asc").
		Find(&obs).Error
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	return obs, nil
}

// FetchRange implements the observation source the reconciler consumes.
func (s *SQLite) FetchRange(ctx context.Context, start, end time.Time) ([]models.Observation, error) {
	return s.ReadingsInRange(ctx, start, end)
}

// LatestReading returns the most recent observation, if any.
func (s *SQLite) LatestReading(ctx context.Context) (models.Observation, bool, error) {
	var obs []models.Observation
	err := s.db.WithContext(ctx).
		Order("time desc").
		Limit(1).
		Find(&obs).Error
	if err != nil {
		return models.Observation{}, false, fmt.Errorf("querying latest reading: %w", err)
	}
	if len(obs) == 0 {
		return models.Observation{}, false, nil
	}
	return obs[0], true, nil
}

// PruneReadings deletes observations strictly older than cutoff.
func (s *SQLite) PruneReadings(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("time < ?", cutoff).
		Delete(&models.Observation{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning readings: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// SaveForecasts upserts forecasts by id, so reconciled match fields
// replace earlier state.
func (s *SQLite) SaveForecasts(ctx context.Context, forecasts []*models.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&forecasts).Error
	if err != nil {
		return fmt.Errorf("saving forecasts: %w", err)
	}
	return nil
}

// ForecastsInRange returns forecasts with start <= time <= end, ordered
// by time then model index.
func (s *SQLite) ForecastsInRange(ctx context.Context, start, end time.Time) ([]*models.Forecast, error) {
	var forecasts []*models.Forecast
	err := s.db.WithContext(ctx).
		Where("time >= ? AND time <= ?", start, end).
		Order("time asc, model_index asc").
		Find(&forecasts).Error
	if err != nil {
		return nil, fmt.Errorf("querying forecasts: %w", err)
	}
	return forecasts, nil
}

// SaveSnapshots inserts workout snapshots, ignoring known ids.
func (s *SQLite) SaveSnapshots(ctx context.Context, snaps []models.WorkoutSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&snaps).Error
	if err != nil {
		return fmt.Errorf("saving snapshots: %w", err)
	}
	return nil
}

// SnapshotsInRange returns snapshots with start <= time <= end.
func (s *SQLite) SnapshotsInRange(ctx context.Context, start, end time.Time) ([]models.WorkoutSnapshot, error) {
	var snaps []models.WorkoutSnapshot
	err := s.db.WithContext(ctx).
		Where("time >= ? AND time <= ?", start, end).
		Order("time asc").
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	return snaps, nil
}

// PruneForecasts deletes forecasts and snapshots strictly older than
// cutoff.
func (s *SQLite) PruneForecasts(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("time < ?", cutoff).
		Delete(&models.Forecast{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning forecasts: %w", res.Error)
	}
	err := s.db.WithContext(ctx).
		Where("time < ?", cutoff).
		Delete(&models.WorkoutSnapshot{}).Error
	if err != nil {
		return int(res.RowsAffected), fmt.Errorf("pruning snapshots: %w", err)
	}
	return int(res.RowsAffected), nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
