package models

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/decay"
)

// EventKind labels a decayable treatment event.
type EventKind string

const (
	EventInsulin EventKind = "insulin"
	EventCarb    EventKind = "carb"
)

// Default active windows, in hours, after which an event's effect is
// treated as fully decayed.
const (
	DefaultInsulinActiveHours = 4.0
	DefaultCarbActiveHours    = 3.0
)

// DecayableEvent is an insulin dose or carbohydrate intake whose
// physiological effect fades over ActiveWindowHours. Events are
// read-only once ingested.
type DecayableEvent struct {
	Kind              EventKind `json:"kind"`
	Time              time.Time `json:"time"`
	Amount            float64   `json:"amount"`
	ActiveWindowHours float64   `json:"activeWindowHours"`
}

// DecayedAmount returns how much of the original amount is still active
// at the given instant.
func (e DecayableEvent) DecayedAmount(at time.Time) float64 {
	return decay.Amount(e.Amount, e.Time, at, e.ActiveWindowHours, decay.DefaultEpsilon)
}

// ActiveAt reports whether the event still has a meaningful effect at
// the given instant.
func (e DecayableEvent) ActiveAt(at time.Time) bool {
	return decay.Active(e.Amount, e.Time, at, e.ActiveWindowHours, decay.DefaultEpsilon)
}

// EventSet is an in-memory, time-ordered view over ingested treatment
// events. It answers the lookup enrichment needs: the most recent event
// of a kind strictly before a given instant.
type EventSet struct {
	events []DecayableEvent
}

// NewEventSet copies and time-orders the given events.
func NewEventSet(events []DecayableEvent) *EventSet {
	sorted := make([]DecayableEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return &EventSet{events: sorted}
}

// FetchLast returns the most recent event of the given kind strictly
// before the given instant and no older than withinHours. The second
// return value is false when no event qualifies.
func (s *EventSet) FetchLast(kind EventKind, before time.Time, withinHours float64) (DecayableEvent, bool) {
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.Kind != kind || !e.Time.Before(before) {
			continue
		}
		if withinHours > 0 && before.Sub(e.Time).Hours() > withinHours {
			return DecayableEvent{}, false
		}
		return e, true
	}
	return DecayableEvent{}, false
}

// All returns a copy of the ordered events.
func (s *EventSet) All() []DecayableEvent {
	out := make([]DecayableEvent, len(s.events))
	copy(out, s.events)
	return out
}

// WorkoutEvent is a completed exercise session.
type WorkoutEvent struct {
	Type            string    `json:"type"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes float64   `json:"durationMinutes"`
	Calories        *float64  `json:"calories,omitempty"`
}

// LatestEndedWorkout returns the workout that most recently ended on or
// before the given instant, within withinHours of it.
func LatestEndedWorkout(workouts []WorkoutEvent, before time.Time, withinHours float64) (WorkoutEvent, bool) {
	var best WorkoutEvent
	found := false
	for _, w := range workouts {
		if w.End.After(before) {
			continue
		}
		if withinHours > 0 && before.Sub(w.End).Hours() > withinHours {
			continue
		}
		if !found || w.End.After(best.End) {
			best = w
			found = true
		}
	}
	return best, found
}

// WorkoutSnapshot captures workout adjacency at one forecast pass. The
// exporter joins snapshots back to forecast rows by timestamp, so Time
// must equal the timestamp of the forecasts made in the same pass.
type WorkoutSnapshot struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	Time            time.Time `json:"time" gorm:"index"`
	LastType        string    `json:"lastType"`
	LastEnd         time.Time `json:"lastEnd"`
	MinutesSince    float64   `json:"minutesSince"`
	Calories        *float64  `json:"calories,omitempty"`
	DurationMinutes float64   `json:"durationMinutes"`
}

// TableName sets the persistence table for workout snapshots.
func (WorkoutSnapshot) TableName() string {
	return "workout_snapshots"
}

// NewWorkoutSnapshot records how far in the past the given workout lies
// relative to the pass instant.
func NewWorkoutSnapshot(at time.Time, w WorkoutEvent) WorkoutSnapshot {
	return WorkoutSnapshot{
		ID:              uuid.NewString(),
		Time:            at,
		LastType:        w.Type,
		LastEnd:         w.End,
		MinutesSince:    at.Sub(w.End).Minutes(),
		Calories:        w.Calories,
		DurationMinutes: w.DurationMinutes,
	}
}

// SortedSnapshots returns a copy ordered by snapshot time ascending.
func SortedSnapshots(snaps []WorkoutSnapshot) []WorkoutSnapshot {
	sorted := make([]WorkoutSnapshot, len(snaps))
	copy(sorted, snaps)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted
}
