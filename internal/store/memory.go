package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

// Memory is an in-process Store. It backs the memory backend and tests;
// contents are lost on exit. All methods are safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	readings  []models.Observation // ordered by time ascending
	known     map[string]bool      // reading ids already ingested
	forecasts map[string]*models.Forecast
	snaps     []models.WorkoutSnapshot // ordered by time ascending
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		known:     make(map[string]bool),
		forecasts: make(map[string]*models.Forecast),
	}
}

// IngestReadings adds observations, skipping ids already present.
func (m *Memory) IngestReadings(_ context.Context, obs []models.Observation) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, o := range obs {
		if o.ID == "" || m.known[o.ID] {
			continue
		}
		m.known[o.ID] = true
		m.readings = append(m.readings, o)
		added++
	}
	if added > 0 {
		sort.Slice(m.readings, func(i, j int) bool {
			return m.readings[i].Time.Before(m.readings[j].Time)
		})
	}
	return added, nil
}

// ReadingsInRange returns a copy of the observations inside [start, end].
func (m *Memory) ReadingsInRange(_ context.Context, start, end time.Time) ([]models.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Observation, 0)
	for _, o := range m.readings {
		if o.Time.Before(start) || o.Time.After(end) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// FetchRange implements the observation source the reconciler consumes.
func (m *Memory) FetchRange(ctx context.Context, start, end time.Time) ([]models.Observation, error) {
	return m.ReadingsInRange(ctx, start, end)
}

// LatestReading returns the most recent observation, if any.
func (m *Memory) LatestReading(_ context.Context) (models.Observation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.readings) == 0 {
		return models.Observation{}, false, nil
	}
	return m.readings[len(m.readings)-1], true, nil
}

// PruneReadings removes observations strictly older than cutoff.
func (m *Memory) PruneReadings(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.readings[:0]
	dropped := 0
	for _, o := range m.readings {
		if o.Time.Before(cutoff) {
			delete(m.known, o.ID)
			dropped++
			continue
		}
		kept = append(kept, o)
	}
	m.readings = kept
	return dropped, nil
}

// SaveForecasts upserts forecasts by id. Stored records are copies, so
// later caller-side mutation does not leak into the store.
func (m *Memory) SaveForecasts(_ context.Context, forecasts []*models.Forecast) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range forecasts {
		if f == nil || f.ID == "" {
			continue
		}
		clone := *f
		m.forecasts[f.ID] = &clone
	}
	return nil
}

// ForecastsInRange returns copies of the forecasts inside [start, end],
// ordered by time then model index.
func (m *Memory) ForecastsInRange(_ context.Context, start, end time.Time) ([]*models.Forecast, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Forecast, 0)
	for _, f := range m.forecasts {
		if f.Time.Before(start) || f.Time.After(end) {
			continue
		}
		clone := *f
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].ModelIndex < out[j].ModelIndex
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out, nil
}

// SaveSnapshots appends unseen workout snapshots.
func (m *Memory) SaveSnapshots(_ context.Context, snaps []models.WorkoutSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(m.snaps))
	for _, s := range m.snaps {
		seen[s.ID] = true
	}
	added := false
	for _, s := range snaps {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		m.snaps = append(m.snaps, s)
		added = true
	}
	if added {
		sort.Slice(m.snaps, func(i, j int) bool {
			return m.snaps[i].Time.Before(m.snaps[j].Time)
		})
	}
	return nil
}

// SnapshotsInRange returns a copy of the snapshots inside [start, end].
func (m *Memory) SnapshotsInRange(_ context.Context, start, end time.Time) ([]models.WorkoutSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.WorkoutSnapshot, 0)
	for _, s := range m.snaps {
		if s.Time.Before(start) || s.Time.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// PruneForecasts removes forecasts and snapshots strictly older than
// cutoff.
func (m *Memory) PruneForecasts(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for id, f := range m.forecasts {
		if f.Time.Before(cutoff) {
			delete(m.forecasts, id)
			dropped++
		}
	}

	kept := m.snaps[:0]
	for _, s := range m.snaps {
		if !s.Time.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	m.snaps = kept
	return dropped, nil
}

// Close is a no-op for the in-process store.
func (m *Memory) Close() error {
	return nil
}
