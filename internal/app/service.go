// Package app wires the fetch, forecast, reconcile and export stages
// into a running pipeline
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/alerts"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/config"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/ensemble"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/export"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/forecast"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/nightscout"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/reconcile"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/store"
)

// workoutJoinHours bounds how old a workout may be and still be
// recorded alongside a forecast pass.
const workoutJoinHours = 24

// Service runs the forecast pipeline against a Nightscout server
type Service struct {
	cfg        *config.Config
	client     *nightscout.Client
	store      store.Store
	engine     *forecast.Engine
	reconciler *reconcile.Reconciler
	alerts     *alerts.Manager // nil when alerts are disabled

	log zerolog.Logger
	now func() time.Time
}

// New creates a pipeline service from its assembled stages
func New(cfg *config.Config, client *nightscout.Client, st store.Store, engine *forecast.Engine, reconciler *reconcile.Reconciler, alertMgr *alerts.Manager) *Service {
	return &Service{
		cfg:        cfg,
		client:     client,
		store:      st,
		engine:     engine,
		reconciler: reconciler,
		alerts:     alertMgr,
		log:        log.With().Str("component", "pipeline").Logger(),
		now:        time.Now,
	}
}

// Run executes cycles on the configured interval until the context is
// cancelled. The first cycle runs immediately.
func (s *Service) Run(ctx context.Context) error {
	interval := s.cfg.Interval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Msg("Pipeline started")

	consecutiveErrors := 0
	if err := s.Cycle(ctx); err != nil {
		consecutiveErrors++
		s.log.Error().Err(err).Int("attempt", consecutiveErrors).Msg("Cycle failed")
	}

	for {
		select {
		case <-ticker.C:
			if err := s.Cycle(ctx); err != nil {
				consecutiveErrors++
				s.log.Error().Err(err).Int("attempt", consecutiveErrors).Msg("Cycle failed")
				continue
			}
			consecutiveErrors = 0
		case <-ctx.Done():
			s.log.Info().Msg("Pipeline stopped")
			return ctx.Err()
		}
	}
}

// Cycle runs one fetch, forecast, snapshot, reconcile pass
func (s *Service) Cycle(ctx context.Context) error {
	now := s.now()
	since := now.Add(-s.cfg.Lookback())

	entries, err := s.client.GetEntries(ctx, since, time.Time{}, 0)
	if err != nil {
		return fmt.Errorf("fetching entries: %w", err)
	}

	treatments, err := s.client.GetTreatments(ctx, since, time.Time{}, 0)
	if err != nil {
		return fmt.Errorf("fetching treatments: %w", err)
	}

	added, err := s.store.IngestReadings(ctx, models.EntriesToObservations(entries))
	if err != nil {
		return fmt.Errorf("ingesting readings: %w", err)
	}

	readings, err := s.store.ReadingsInRange(ctx, since, now)
	if err != nil {
		return fmt.Errorf("loading readings: %w", err)
	}

	records, windowErr := s.engine.Forecast(now, readings)
	if windowErr != nil {
		s.log.Warn().Err(windowErr).Int("readings", len(readings)).Msg("Forecast inference skipped")
	}

	events := models.NewEventSet(models.DecayableEvents(treatments, s.cfg.InsulinActiveHours, s.cfg.CarbActiveHours))
	reconcile.EnrichEventTimings(records, events, s.cfg.InsulinActiveHours, s.cfg.CarbActiveHours)

	if w, ok := models.LatestEndedWorkout(models.WorkoutEvents(treatments), now, workoutJoinHours); ok {
		snap := models.NewWorkoutSnapshot(now, w)
		if err := s.store.SaveSnapshots(ctx, []models.WorkoutSnapshot{snap}); err != nil {
			return fmt.Errorf("saving workout snapshot: %w", err)
		}
	}

	if err := s.store.SaveForecasts(ctx, records); err != nil {
		return fmt.Errorf("saving forecasts: %w", err)
	}

	matched, err := s.Reconcile(ctx, since)
	if err != nil {
		return err
	}

	s.log.Info().
		Int("entries", len(entries)).
		Int("new_readings", added).
		Int("forecasts", len(records)).
		Int("newly_matched", matched).
		Msg("Cycle complete")

	s.checkAlerts(entries, records)
	return nil
}

// Reconcile loads forecasts made since the given time, matches them
// against stored readings, and persists the result. It returns how
// many forecasts went from unmatched to matched.
func (s *Service) Reconcile(ctx context.Context, since time.Time) (int, error) {
	forecasts, err := s.store.ForecastsInRange(ctx, since, s.now())
	if err != nil {
		return 0, fmt.Errorf("loading forecasts: %w", err)
	}

	matched, err := s.reconciler.Reconcile(ctx, forecasts)
	if err != nil {
		return 0, err
	}

	if err := s.store.SaveForecasts(ctx, forecasts); err != nil {
		return 0, fmt.Errorf("saving reconciled forecasts: %w", err)
	}
	return matched, nil
}

// Sweep prunes readings, forecasts and snapshots older than the
// retention window and returns the dropped reading and forecast counts
func (s *Service) Sweep(ctx context.Context) (int, int, error) {
	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)

	readings, err := s.store.PruneReadings(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("pruning readings: %w", err)
	}

	forecasts, err := s.store.PruneForecasts(ctx, cutoff)
	if err != nil {
		return readings, 0, fmt.Errorf("pruning forecasts: %w", err)
	}

	s.log.Info().
		Int("readings", readings).
		Int("forecasts", forecasts).
		Time("cutoff", cutoff).
		Msg("Retention sweep complete")
	return readings, forecasts, nil
}

// Export writes the reconciled forecast history since the given time
// as CSV
func (s *Service) Export(ctx context.Context, w io.Writer, since time.Time) error {
	now := s.now()

	forecasts, err := s.store.ForecastsInRange(ctx, since, now)
	if err != nil {
		return fmt.Errorf("loading forecasts: %w", err)
	}

	snaps, err := s.store.SnapshotsInRange(ctx, since, now)
	if err != nil {
		return fmt.Errorf("loading snapshots: %w", err)
	}

	exporter := export.NewExporter(s.engine.ModelCount(), s.cfg.ExportOffsetMinutes)
	return exporter.Export(w, forecasts, snaps)
}

// Chart renders readings and forecasts since the given time to a PNG
// at the given path
func (s *Service) Chart(ctx context.Context, path string, since time.Time) error {
	now := s.now()

	readings, err := s.store.ReadingsInRange(ctx, since, now)
	if err != nil {
		return fmt.Errorf("loading readings: %w", err)
	}

	forecasts, err := s.store.ForecastsInRange(ctx, since, now)
	if err != nil {
		return fmt.Errorf("loading forecasts: %w", err)
	}

	cfg := export.DefaultChartConfig()
	cfg.TargetLowMmol = models.MgdlToMmol(float64(s.cfg.TargetLow))
	cfg.TargetHighMmol = models.MgdlToMmol(float64(s.cfg.TargetHigh))
	cfg.UrgentLowMmol = models.MgdlToMmol(float64(s.cfg.UrgentLow))
	cfg.UrgentHighMmol = models.MgdlToMmol(float64(s.cfg.UrgentHigh))
	cfg.Location = s.cfg.ExportLocation()

	return export.RenderChart(path, readings, forecasts, cfg)
}

// checkAlerts raises notifications for the latest reading and for a
// predicted low from the just-made forecasts. Alert failures are
// logged, never fatal to the cycle.
func (s *Service) checkAlerts(entries []models.GlucoseEntry, records []*models.Forecast) {
	if s.alerts == nil {
		return
	}

	var latest *models.GlucoseEntry
	for i := range entries {
		if entries[i].SGV <= 0 {
			continue
		}
		if latest == nil || entries[i].Date > latest.Date {
			latest = &entries[i]
		}
	}
	if latest != nil {
		if err := s.alerts.CheckReading(latest.Observation(), latest.TrendArrow()); err != nil {
			s.log.Warn().Err(err).Msg("Notification failed")
		}
	}

	if avg, _, ok := ensemble.Average(records); ok {
		if err := s.alerts.CheckPredicted(avg, records[0].TargetTime()); err != nil {
			s.log.Warn().Err(err).Msg("Notification failed")
		}
	}
}
