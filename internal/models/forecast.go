package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultHorizonMinutes is how far ahead every model predicts.
const DefaultHorizonMinutes = 20

// Forecast is a single model's glucose prediction, made at Time and
// aimed HorizonMinutes into the future. PredictedMmol is nil when the
// model produced no value; downstream stages treat that as a normal,
// skippable state rather than an error.
type Forecast struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	Time           time.Time `json:"time" gorm:"index"`
	HorizonMinutes int       `json:"horizonMinutes"`
	ModelIndex     int       `json:"modelIndex"`
	ModelName      string    `json:"modelName"`
	CurrentMmol    float64   `json:"currentMmol"`
	PredictedMmol  *float64  `json:"predictedMmol,omitempty"`

	// Match state, denormalized from the observation that won the
	// acceptance window. MatchedID is a lookup key, not an owning
	// reference: the observation behind it may be pruned independently.
	MatchedID   string     `json:"matchedId,omitempty"`
	MatchedMmol *float64   `json:"matchedMmol,omitempty"`
	MatchedAt   *time.Time `json:"matchedAt,omitempty"`

	// Nearest preceding treatment events, resolved by enrichment.
	LastCarbAt          *time.Time `json:"lastCarbAt,omitempty"`
	MinutesSinceCarb    *float64   `json:"minutesSinceCarb,omitempty"`
	LastInsulinAt       *time.Time `json:"lastInsulinAt,omitempty"`
	MinutesSinceInsulin *float64   `json:"minutesSinceInsulin,omitempty"`
}

// TableName sets the persistence table for forecasts.
func (Forecast) TableName() string {
	return "forecasts"
}

// NewForecast creates an unmatched forecast for one model slot.
func NewForecast(at time.Time, modelIndex int, modelName string, currentMmol float64) *Forecast {
	return &Forecast{
		ID:             uuid.NewString(),
		Time:           at,
		HorizonMinutes: DefaultHorizonMinutes,
		ModelIndex:     modelIndex,
		ModelName:      modelName,
		CurrentMmol:    currentMmol,
	}
}

// TargetTime is the instant the prediction refers to.
func (f *Forecast) TargetTime() time.Time {
	return f.Time.Add(time.Duration(f.HorizonMinutes) * time.Minute)
}

// SetPrediction records the model output.
func (f *Forecast) SetPrediction(mmol float64) {
	f.PredictedMmol = &mmol
}

// HasPrediction reports whether the model produced a value.
func (f *Forecast) HasPrediction() bool {
	return f.PredictedMmol != nil
}

// SetMatch records an accepted ground-truth observation. The three match
// fields are always written together.
func (f *Forecast) SetMatch(obs Observation) {
	mmol := obs.Mmol
	at := obs.Time
	f.MatchedID = obs.ID
	f.MatchedMmol = &mmol
	f.MatchedAt = &at
}

// ClearMatch removes any previously recorded match. Clearing an already
// clear forecast is a no-op.
func (f *Forecast) ClearMatch() {
	f.MatchedID = ""
	f.MatchedMmol = nil
	f.MatchedAt = nil
}

// IsMatched reports whether an accepted observation is recorded.
func (f *Forecast) IsMatched() bool {
	return f.MatchedID != "" && f.MatchedMmol != nil && f.MatchedAt != nil
}

// SortedForecasts returns a copy of the slice ordered by timestamp
// ascending, then model index, so batches render deterministically.
func SortedForecasts(forecasts []*Forecast) []*Forecast {
	sorted := make([]*Forecast, len(forecasts))
	copy(sorted, forecasts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Time.Equal(sorted[j].Time) {
			return sorted[i].ModelIndex < sorted[j].ModelIndex
		}
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted
}
