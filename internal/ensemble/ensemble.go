// Package ensemble combines per-model forecasts into aggregate views.
package ensemble

import (
	"sort"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

// Average computes the arithmetic mean of the populated predictions in a
// same-timestamp forecast group, along with how many models contributed.
// Models that produced no value are skipped, not counted as zero. The
// third return value is false when no model produced anything.
func Average(forecasts []*models.Forecast) (float64, int, bool) {
	var sum float64
	count := 0
	for _, f := range forecasts {
		if f == nil || f.PredictedMmol == nil {
			continue
		}
		sum += *f.PredictedMmol
		count++
	}
	if count == 0 {
		return 0, 0, false
	}
	return sum / float64(count), count, true
}

// MatchedActual returns the ground-truth value recorded on a group,
// taken from the first matched forecast. Forecasts sharing a timestamp
// share a match, so any matched member carries the same value.
func MatchedActual(forecasts []*models.Forecast) (*float64, bool) {
	for _, f := range forecasts {
		if f != nil && f.IsMatched() {
			return f.MatchedMmol, true
		}
	}
	return nil, false
}

// GroupByTime buckets forecasts that share a logical prediction
// timestamp, at second precision, and returns the bucket keys in
// ascending order.
func GroupByTime(forecasts []*models.Forecast) (map[int64][]*models.Forecast, []int64) {
	groups := make(map[int64][]*models.Forecast)
	for _, f := range forecasts {
		if f == nil {
			continue
		}
		key := f.Time.Unix()
		groups[key] = append(groups[key], f)
	}

	keys := make([]int64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return groups, keys
}
