// Package export renders reconciled forecast batches as artifacts: a
// fixed-column CSV table and a PNG chart.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/ensemble"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/match"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

// timeLayout renders timestamps with an explicit numeric offset and no
// fractional seconds, so output is identical regardless of the host
// timezone database.
const timeLayout = "2006-01-02T15:04:05-07:00"

// snapshotJoinTolerance is how far a workout snapshot may sit from a
// forecast timestamp and still be considered the same pass.
const snapshotJoinTolerance = 30 * time.Second

// Exporter writes the denormalized per-timestamp table. Models is the
// fixed number of per-model column groups; every row carries all of
// them, empty when a model slot produced nothing. Location is the fixed
// output offset, making exports reproducible anywhere.
type Exporter struct {
	Models   int
	Location *time.Location
}

// NewExporter builds an exporter with a fixed UTC offset in minutes.
func NewExporter(modelCount int, offsetMinutes int) *Exporter {
	return &Exporter{
		Models:   modelCount,
		Location: time.FixedZone("export", offsetMinutes*60),
	}
}

// Header returns the column names in emission order.
func (e *Exporter) Header() []string {
	cols := []string{"Timestamp", "PredictionCount"}
	for i := 0; i < e.Models; i++ {
		n := i + 1
		cols = append(cols,
			fmt.Sprintf("CurrentMmol_M%d", n),
			fmt.Sprintf("CurrentMgdl_M%d", n),
			fmt.Sprintf("PredictedMmol_M%d", n),
			fmt.Sprintf("PredictedMgdl_M%d", n),
		)
	}
	return append(cols,
		"AvgPredictedMmol", "AvgPredictedMgdl",
		"ActualMmol", "ActualMgdl",
		"LastCarbTimestamp", "MinutesSinceCarb",
		"LastInsulinTimestamp", "MinutesSinceInsulin",
		"LastWorkoutType", "LastWorkoutEndTimestamp",
		"MinutesSinceWorkout", "WorkoutCalories", "WorkoutDurationMinutes",
	)
}

// Export writes the CSV: header first, then one row per forecast
// timestamp ascending, CRLF line endings. Unresolved optionals render
// as empty cells so every column stays numeric-parseable. Output is
// byte-identical across repeated invocations with unchanged input.
func (e *Exporter) Export(w io.Writer, forecasts []*models.Forecast, workouts []models.WorkoutSnapshot) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(e.Header()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	snaps := models.SortedSnapshots(workouts)
	snapTimes := make([]time.Time, len(snaps))
	for i, s := range snaps {
		snapTimes[i] = s.Time
	}

	groups, keys := ensemble.GroupByTime(forecasts)
	for _, key := range keys {
		if err := cw.Write(e.row(groups[key], snaps, snapTimes)); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func (e *Exporter) row(group []*models.Forecast, snaps []models.WorkoutSnapshot, snapTimes []time.Time) []string {
	byIndex := make(map[int]*models.Forecast, len(group))
	for _, f := range group {
		if _, taken := byIndex[f.ModelIndex]; !taken {
			byIndex[f.ModelIndex] = f
		}
	}
	ts := group[0].Time

	cells := make([]string, 0, len(e.Header()))
	cells = append(cells, e.timeCell(ts))

	avg, count, hasAvg := ensemble.Average(group)
	if count > 0 {
		cells = append(cells, strconv.Itoa(count))
	} else {
		cells = append(cells, "0")
	}

	for i := 0; i < e.Models; i++ {
		f := byIndex[i]
		if f == nil {
			cells = append(cells, "", "", "", "")
			continue
		}
		cells = append(cells,
			mmolCell(f.CurrentMmol),
			mgdlCell(f.CurrentMmol),
			optMmolCell(f.PredictedMmol),
			optMgdlCell(f.PredictedMmol),
		)
	}

	if hasAvg {
		cells = append(cells, mmolCell(avg), mgdlCell(avg))
	} else {
		cells = append(cells, "", "")
	}

	actual, _ := ensemble.MatchedActual(group)
	cells = append(cells, optMmolCell(actual), optMgdlCell(actual))

	carbAt, carbMins := e.eventCells(group, func(f *models.Forecast) (*time.Time, *float64) {
		return f.LastCarbAt, f.MinutesSinceCarb
	})
	cells = append(cells, carbAt, carbMins)

	insulinAt, insulinMins := e.eventCells(group, func(f *models.Forecast) (*time.Time, *float64) {
		return f.LastInsulinAt, f.MinutesSinceInsulin
	})
	cells = append(cells, insulinAt, insulinMins)

	if idx := match.NearestIndex(snapTimes, ts, snapshotJoinTolerance); idx >= 0 {
		s := snaps[idx]
		cells = append(cells,
			s.LastType,
			e.timeCell(s.LastEnd),
			minutesCell(s.MinutesSince),
			optCaloriesCell(s.Calories),
			minutesCell(s.DurationMinutes),
		)
	} else {
		cells = append(cells, "", "", "", "", "")
	}

	return cells
}

// eventCells pulls the first resolved event timing out of a group.
// Forecasts sharing a timestamp share enrichment, so any member serves.
func (e *Exporter) eventCells(group []*models.Forecast, pick func(*models.Forecast) (*time.Time, *float64)) (string, string) {
	for _, f := range group {
		at, mins := pick(f)
		if at != nil && mins != nil {
			return e.timeCell(*at), minutesCell(*mins)
		}
	}
	return "", ""
}

func (e *Exporter) timeCell(t time.Time) string {
	return t.In(e.Location).Format(timeLayout)
}

func mmolCell(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func mgdlCell(v float64) string {
	return strconv.Itoa(models.DisplayMgdl(v))
}

func minutesCell(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func optMmolCell(v *float64) string {
	if v == nil {
		return ""
	}
	return mmolCell(*v)
}

func optMgdlCell(v *float64) string {
	if v == nil {
		return ""
	}
	return mgdlCell(*v)
}

func optCaloriesCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 0, 64)
}
