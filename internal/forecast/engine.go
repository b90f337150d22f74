// Package forecast produces per-model glucose predictions from a recent
// reading window.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

// ErrScalerConfig reports absent or inverted normalization bounds. The
// engine cannot be constructed without a valid scaler.
var ErrScalerConfig = errors.New("scaler configuration missing or invalid")

// ErrWindow reports a feature window that cannot be assembled. It is
// fatal only for the inference pass it occurred in.
var ErrWindow = errors.New("malformed feature window")

// DefaultWindowSize is the number of readings every model consumes:
// half an hour of history at the usual five-minute cadence.
const DefaultWindowSize = 6

// DefaultSteps is how many five-minute steps ahead the models project
// to cover the 20 minute horizon.
const DefaultSteps = 4

// Physiological bounds for a denormalized prediction, mmol/L.
const (
	minPlausibleMmol = 1.1
	maxPlausibleMmol = 33.3
)

// Scaler maps canonical glucose values into the [-1, 1] range the
// models operate in.
type Scaler struct {
	Min float64
	Max float64
}

// NewScaler validates the normalization bounds.
func NewScaler(min, max float64) (Scaler, error) {
	if min <= 0 || max <= 0 || min >= max {
		return Scaler{}, fmt.Errorf("%w: min %.1f max %.1f", ErrScalerConfig, min, max)
	}
	return Scaler{Min: min, Max: max}, nil
}

// DefaultScaler spans the physiologically plausible glucose range in
// mmol/L.
func DefaultScaler() Scaler {
	return Scaler{Min: 1.1, Max: 23.3}
}

// Normalize maps a mmol value into [-1, 1].
func (s Scaler) Normalize(mmol float64) float64 {
	return (2*mmol - s.Min - s.Max) / (s.Max - s.Min)
}

// Denormalize maps a model output back to mmol.
func (s Scaler) Denormalize(v float64) float64 {
	return (v*(s.Max-s.Min) + s.Min + s.Max) / 2
}

// BuildWindow assembles the most recent readings into a fixed-size
// normalized feature window, oldest first.
func BuildWindow(observations []models.Observation, size int, scaler Scaler) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrWindow, size)
	}
	if len(observations) < size {
		return nil, fmt.Errorf("%w: have %d readings, need %d", ErrWindow, len(observations), size)
	}

	sorted := models.SortedObservations(observations)
	window := make([]float64, size)
	for i := 0; i < size; i++ {
		window[i] = scaler.Normalize(sorted[len(sorted)-size+i].Mmol)
	}
	return window, nil
}

// Model is a scalar forecast producer. Infer receives a normalized
// feature window, oldest reading first, and returns the predicted
// normalized value one horizon ahead.
type Model interface {
	Name() string
	Infer(window []float64) (float64, error)
}

// Engine runs every registered model over one shared feature window.
// Models differ only by the handle they register with; the engine owns
// normalization, window assembly, and forecast record creation.
type Engine struct {
	scaler     Scaler
	windowSize int
	models     []Model
}

// NewEngine validates the scaler and registers the model set in index
// order.
func NewEngine(scaler Scaler, windowSize int, registered []Model) (*Engine, error) {
	if _, err := NewScaler(scaler.Min, scaler.Max); err != nil {
		return nil, err
	}
	if windowSize < 3 {
		return nil, fmt.Errorf("window size %d too small, need at least 3 readings", windowSize)
	}
	if len(registered) == 0 {
		return nil, errors.New("no models registered")
	}
	return &Engine{scaler: scaler, windowSize: windowSize, models: registered}, nil
}

// ModelCount returns how many models the engine runs per pass.
func (e *Engine) ModelCount() int {
	return len(e.models)
}

// Forecast runs every model over the current reading window and returns
// one forecast record per model, all sharing the pass timestamp. When
// the window cannot be built the records still come back, with empty
// predictions, alongside the window error; a single failing model
// likewise yields an empty prediction without aborting the others. An
// empty observation set produces no records at all.
func (e *Engine) Forecast(now time.Time, observations []models.Observation) ([]*models.Forecast, error) {
	sorted := models.SortedObservations(observations)
	if len(sorted) == 0 {
		return nil, nil
	}
	current := sorted[len(sorted)-1].Mmol

	window, windowErr := BuildWindow(sorted, e.windowSize, e.scaler)

	forecasts := make([]*models.Forecast, 0, len(e.models))
	for i, m := range e.models {
		f := models.NewForecast(now, i, m.Name(), current)
		if windowErr == nil {
			if v, err := m.Infer(window); err == nil {
				mmol := e.scaler.Denormalize(v)
				f.SetPrediction(math.Max(minPlausibleMmol, math.Min(maxPlausibleMmol, mmol)))
			}
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, windowErr
}
