// Package decay models the exponential falloff of treatment effects.
package decay

import (
	"math"
	"time"
)

// DefaultEpsilon is the remaining fraction below which an effect no
// longer counts.
const DefaultEpsilon = 0.01

// Amount returns what is left of initial at the given instant. The decay
// constant is chosen so the remaining fraction reaches epsilon exactly
// at the end of the active window:
//
//	k = ln(1/epsilon) / activeWindowHours
//
// Elapsed time before the event clamps to zero, so a future event
// reports its full amount.
func Amount(initial float64, eventTime, at time.Time, activeWindowHours, epsilon float64) float64 {
	if initial <= 0 || activeWindowHours <= 0 {
		return 0
	}
	if epsilon <= 0 || epsilon >= 1 {
		epsilon = DefaultEpsilon
	}
	hours := at.Sub(eventTime).Hours()
	if hours < 0 {
		hours = 0
	}
	k := math.Log(1/epsilon) / activeWindowHours
	remaining := initial * math.Exp(-k*hours)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Active reports whether the effect still matters: the instant falls
// inside the active window and the decayed amount is still above
// epsilon. Epsilon is an absolute cutoff, so at exactly the end of the
// window a 10-unit event (decayed to 0.10) is still active while a
// 1-unit event (decayed to exactly epsilon) is not.
func Active(initial float64, eventTime, at time.Time, activeWindowHours, epsilon float64) bool {
	if epsilon <= 0 || epsilon >= 1 {
		epsilon = DefaultEpsilon
	}
	hours := at.Sub(eventTime).Hours()
	if hours < 0 {
		hours = 0
	}
	if hours > activeWindowHours {
		return false
	}
	return Amount(initial, eventTime, at, activeWindowHours, epsilon) > epsilon
}
