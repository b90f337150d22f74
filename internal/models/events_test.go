package models

import (
	"math"
	"testing"
	"time"
)

func TestEventSet_FetchLast(t *testing.T) {
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	set := NewEventSet([]DecayableEvent{
		{Kind: EventCarb, Time: base.Add(-90 * time.Minute), Amount: 45, ActiveWindowHours: 3},
		{Kind: EventInsulin, Time: base.Add(-30 * time.Minute), Amount: 4, ActiveWindowHours: 4},
		{Kind: EventInsulin, Time: base.Add(-3 * time.Hour), Amount: 2, ActiveWindowHours: 4},
	})

	e, ok := set.FetchLast(EventInsulin, base, 4)
	if !ok {
		t.Fatal("FetchLast found no insulin event")
	}
	if e.Amount != 4 {
		t.Errorf("FetchLast picked amount %f, want the most recent dose 4", e.Amount)
	}

	e, ok = set.FetchLast(EventCarb, base, 3)
	if !ok {
		t.Fatal("FetchLast found no carb event")
	}
	if e.Amount != 45 {
		t.Errorf("FetchLast picked amount %f, want 45", e.Amount)
	}
}

func TestEventSet_FetchLast_StrictlyBefore(t *testing.T) {
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	set := NewEventSet([]DecayableEvent{
		{Kind: EventInsulin, Time: base, Amount: 4, ActiveWindowHours: 4},
		{Kind: EventInsulin, Time: base.Add(10 * time.Minute), Amount: 2, ActiveWindowHours: 4},
	})

	// An event at exactly the cutoff instant does not count.
	if _, ok := set.FetchLast(EventInsulin, base, 4); ok {
		t.Error("FetchLast returned an event not strictly before the cutoff")
	}

	e, ok := set.FetchLast(EventInsulin, base.Add(time.Minute), 4)
	if !ok {
		t.Fatal("FetchLast found no event one minute past the dose")
	}
	if e.Amount != 4 {
		t.Errorf("FetchLast picked amount %f, want 4", e.Amount)
	}
}

func TestEventSet_FetchLast_WithinHours(t *testing.T) {
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	set := NewEventSet([]DecayableEvent{
		{Kind: EventCarb, Time: base.Add(-5 * time.Hour), Amount: 60, ActiveWindowHours: 3},
	})

	if _, ok := set.FetchLast(EventCarb, base, 3); ok {
		t.Error("FetchLast returned an event older than the window")
	}
	if _, ok := set.FetchLast(EventCarb, base, 6); !ok {
		t.Error("FetchLast missed an event inside a wider window")
	}
}

func TestDecayableEvent_DecayedAmount(t *testing.T) {
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	e := DecayableEvent{Kind: EventInsulin, Time: base, Amount: 10, ActiveWindowHours: 4}

	got := e.DecayedAmount(base.Add(4 * time.Hour))
	if math.Abs(got-0.10) > 0.001 {
		t.Errorf("DecayedAmount at window end = %f, want 0.10", got)
	}
	if !e.ActiveAt(base.Add(4 * time.Hour)) {
		t.Error("10-unit dose should still be active at exactly the window end")
	}
	if e.ActiveAt(base.Add(4*time.Hour + time.Minute)) {
		t.Error("dose should be inactive past the window end")
	}
}

func TestLatestEndedWorkout(t *testing.T) {
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	workouts := []WorkoutEvent{
		{Type: "Walking", End: base.Add(-6 * time.Hour)},
		{Type: "Running", End: base.Add(-40 * time.Minute)},
		{Type: "Cycling", End: base.Add(30 * time.Minute)}, // still in the future
	}

	w, ok := LatestEndedWorkout(workouts, base, 24)
	if !ok {
		t.Fatal("LatestEndedWorkout found nothing")
	}
	if w.Type != "Running" {
		t.Errorf("LatestEndedWorkout picked %q, want Running", w.Type)
	}

	if _, ok := LatestEndedWorkout(workouts, base, 0.5); ok {
		t.Error("LatestEndedWorkout returned a workout older than the window")
	}
}

func TestNewWorkoutSnapshot(t *testing.T) {
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	cal := 250.0
	w := WorkoutEvent{
		Type:            "Running",
		Start:           base.Add(-75 * time.Minute),
		End:             base.Add(-30 * time.Minute),
		DurationMinutes: 45,
		Calories:        &cal,
	}

	snap := NewWorkoutSnapshot(base, w)
	if snap.ID == "" {
		t.Error("snapshot id is empty")
	}
	if !snap.Time.Equal(base) {
		t.Errorf("snapshot time = %v, want %v", snap.Time, base)
	}
	if snap.MinutesSince != 30 {
		t.Errorf("MinutesSince = %f, want 30", snap.MinutesSince)
	}
	if snap.DurationMinutes != 45 {
		t.Errorf("DurationMinutes = %f, want 45", snap.DurationMinutes)
	}
}
