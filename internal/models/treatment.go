package models

import "time"

// Treatment represents a treatment entry from Nightscout (insulin,
// carbs, exercise, etc.)
type Treatment struct {
	ID          string  `json:"_id"`
	EventType   string  `json:"eventType"`
	Date        int64   `json:"date"` // Unix timestamp in milliseconds
	DateStr     string  `json:"dateString"`
	CreatedAt   string  `json:"created_at"`
	Insulin     float64 `json:"insulin"`     // Units of insulin
	Carbs       float64 `json:"carbs"`       // Grams of carbohydrates
	Protein     float64 `json:"protein"`     // Grams of protein
	Fat         float64 `json:"fat"`         // Grams of fat
	Duration    float64 `json:"duration"`    // Duration in minutes
	Calories    float64 `json:"calories"`    // Energy burned, for exercise entries
	Glucose     float64 `json:"glucose"`     // Blood glucose value if recorded
	GlucoseType string  `json:"glucoseType"` // "Sensor", "Finger", "Manual"
	Units       string  `json:"units"`       // "mg/dl" or "mmol/l"
	Notes       string  `json:"notes"`
	EnteredBy   string  `json:"enteredBy"`
	Device      string  `json:"device"`
}

// Time returns the time of the treatment
func (t *Treatment) Time() time.Time {
	if t.Date > 0 {
		return time.UnixMilli(t.Date)
	}
	// Fallback to created_at
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// HasInsulin returns true if this treatment includes insulin
func (t *Treatment) HasInsulin() bool {
	return t.Insulin > 0
}

// HasCarbs returns true if this treatment includes carbohydrates
func (t *Treatment) HasCarbs() bool {
	return t.Carbs > 0
}

// IsBolus returns true if this is a bolus treatment
func (t *Treatment) IsBolus() bool {
	bolusTypes := map[string]bool{
		TreatmentEventTypes.Bolus:           true,
		TreatmentEventTypes.SnackBolus:      true,
		TreatmentEventTypes.MealBolus:       true,
		TreatmentEventTypes.CorrectionBolus: true,
		TreatmentEventTypes.ComboBolus:      true,
		TreatmentEventTypes.BolusWizard:     true,
	}
	return bolusTypes[t.EventType] || (t.HasInsulin() && t.EventType != TreatmentEventTypes.TempBasal)
}

// IsExercise returns true if this is a completed exercise entry
func (t *Treatment) IsExercise() bool {
	return t.EventType == TreatmentEventTypes.Exercise
}

// TreatmentEventTypes contains the Nightscout event types the pipeline
// classifies
var TreatmentEventTypes = struct {
	Bolus           string
	SnackBolus      string
	MealBolus       string
	CorrectionBolus string
	CarbCorrection  string
	ComboBolus      string
	BolusWizard     string
	TempBasal       string
	Exercise        string
}{
	Bolus:           "Bolus",
	SnackBolus:      "Snack Bolus",
	MealBolus:       "Meal Bolus",
	CorrectionBolus: "Correction Bolus",
	CarbCorrection:  "Carb Correction",
	ComboBolus:      "Combo Bolus",
	BolusWizard:     "Bolus Wizard",
	TempBasal:       "Temp Basal",
	Exercise:        "Exercise",
}

// DecayableEvents expands treatments into decay-tracked insulin and carb
// events. A combo treatment (insulin plus carbs) yields one event of
// each kind. Events with no usable timestamp are dropped.
func DecayableEvents(treatments []Treatment, insulinHours, carbHours float64) []DecayableEvent {
	if insulinHours <= 0 {
		insulinHours = DefaultInsulinActiveHours
	}
	if carbHours <= 0 {
		carbHours = DefaultCarbActiveHours
	}

	out := make([]DecayableEvent, 0, len(treatments))
	for i := range treatments {
		t := &treatments[i]
		at := t.Time()
		if at.IsZero() {
			continue
		}
		if t.HasInsulin() && t.IsBolus() {
			out = append(out, DecayableEvent{
				Kind:              EventInsulin,
				Time:              at,
				Amount:            t.Insulin,
				ActiveWindowHours: insulinHours,
			})
		}
		if t.HasCarbs() {
			out = append(out, DecayableEvent{
				Kind:              EventCarb,
				Time:              at,
				Amount:            t.Carbs,
				ActiveWindowHours: carbHours,
			})
		}
	}
	return out
}

// WorkoutEvents extracts completed exercise sessions. Entries without a
// duration are skipped; an exercise with no end cannot be joined to
// forecast rows.
func WorkoutEvents(treatments []Treatment) []WorkoutEvent {
	out := make([]WorkoutEvent, 0)
	for i := range treatments {
		t := &treatments[i]
		if !t.IsExercise() || t.Duration <= 0 {
			continue
		}
		start := t.Time()
		if start.IsZero() {
			continue
		}
		w := WorkoutEvent{
			Type:            t.EventType,
			Start:           start,
			End:             start.Add(time.Duration(t.Duration * float64(time.Minute))),
			DurationMinutes: t.Duration,
		}
		if t.Calories > 0 {
			cal := t.Calories
			w.Calories = &cal
		}
		if t.Notes != "" {
			w.Type = t.Notes
		}
		out = append(out, w)
	}
	return out
}
