// Package match implements nearest-in-time lookups against observation
// collections.
package match

import (
	"sort"
	"time"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

// Nearest finds the observation closest to forecastTime+horizon among
// the candidates strictly after forecastTime. Candidates must be ordered
// by time ascending; equal distances then resolve to the earlier
// reading. The second return value is false when no candidate survives
// the directionality filter or the closest one lies further than
// tolerance from the target.
func Nearest(candidates []models.Observation, forecastTime time.Time, horizon, tolerance time.Duration) (models.Observation, bool) {
	target := forecastTime.Add(horizon)

	best := -1
	var bestDiff time.Duration
	for i := range candidates {
		if !candidates[i].Time.After(forecastTime) {
			continue
		}
		diff := absDuration(candidates[i].Time.Sub(target))
		if best < 0 || diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}

	if best < 0 || bestDiff > tolerance {
		return models.Observation{}, false
	}
	return candidates[best], true
}

// NearestIndex finds the entry in a time-ascending slice closest to
// target in either direction, within tolerance. Ties resolve to the
// earlier entry. Returns -1 when nothing qualifies.
func NearestIndex(times []time.Time, target time.Time, tolerance time.Duration) int {
	if len(times) == 0 {
		return -1
	}

	idx := sort.Search(len(times), func(i int) bool {
		return !times[i].Before(target)
	})

	best := -1
	var bestDiff time.Duration
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(times) {
			continue
		}
		diff := absDuration(times[i].Sub(target))
		if best < 0 || diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}

	if best < 0 || bestDiff > tolerance {
		return -1
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
