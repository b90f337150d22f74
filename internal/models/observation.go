// Package models contains data structures used throughout the pipeline.
package models

import (
	"sort"
	"time"
)

// Observation is a single ground-truth glucose reading in the canonical
// unit (mmol/L). Observations are immutable once ingested and are only
// removed by the retention sweep.
type Observation struct {
	ID     string    `json:"id" gorm:"primaryKey"`
	Time   time.Time `json:"time" gorm:"index"`
	Mmol   float64   `json:"mmol"`
	Source string    `json:"source"`
}

// TableName sets the persistence table for observations.
func (Observation) TableName() string {
	return "readings"
}

// Mgdl returns the reading in the secondary display unit.
func (o Observation) Mgdl() int {
	return DisplayMgdl(o.Mmol)
}

// SortedObservations returns a copy ordered by time ascending, oldest
// first.
func SortedObservations(obs []Observation) []Observation {
	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted
}

// DedupObservations drops readings whose external id was already seen,
// keeping the first occurrence. Sources may legitimately return the same
// reading more than once.
func DedupObservations(obs []Observation) []Observation {
	seen := make(map[string]bool, len(obs))
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		out = append(out, o)
	}
	return out
}
