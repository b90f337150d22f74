package models

import (
	"testing"
	"time"
)

func TestSortedObservations(t *testing.T) {
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	obs := []Observation{
		{ID: "c", Time: base.Add(10 * time.Minute)},
		{ID: "a", Time: base},
		{ID: "b", Time: base.Add(5 * time.Minute)},
	}

	sorted := SortedObservations(obs)
	for i, want := range []string{"a", "b", "c"} {
		if sorted[i].ID != want {
			t.Errorf("position %d = %q, want %q", i, sorted[i].ID, want)
		}
	}

	if obs[0].ID != "c" {
		t.Error("SortedObservations mutated its input")
	}
}

func TestDedupObservations(t *testing.T) {
	base := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	obs := []Observation{
		{ID: "a", Time: base, Mmol: 5.0},
		{ID: "b", Time: base.Add(5 * time.Minute), Mmol: 5.2},
		{ID: "a", Time: base, Mmol: 9.9},
	}

	out := DedupObservations(obs)
	if len(out) != 2 {
		t.Fatalf("DedupObservations returned %d readings, want 2", len(out))
	}
	if out[0].Mmol != 5.0 {
		t.Errorf("first occurrence not kept: Mmol = %f, want 5.0", out[0].Mmol)
	}
}

func TestObservation_Mgdl(t *testing.T) {
	obs := Observation{Mmol: 7.0}
	if obs.Mgdl() != 126 {
		t.Errorf("Mgdl() = %d, want 126", obs.Mgdl())
	}
}
