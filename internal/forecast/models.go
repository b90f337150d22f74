package forecast

import "fmt"

// DefaultModels returns the standard registry in index order: trend
// regression, damped momentum, attenuated linear drift.
func DefaultModels(steps int) []Model {
	if steps <= 0 {
		steps = DefaultSteps
	}
	return []Model{
		&TrendModel{Steps: steps},
		&MomentumModel{Steps: steps, Damping: 0.85},
		&DampedLinearModel{Steps: steps},
	}
}

// TrendModel fits a least-squares line through the window and projects
// it forward.
type TrendModel struct {
	Steps int
}

func (m *TrendModel) Name() string { return "trend" }

func (m *TrendModel) Infer(window []float64) (float64, error) {
	n := len(window)
	if n < 2 {
		return 0, fmt.Errorf("%w: %d readings for trend fit", ErrWindow, n)
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range window {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	nf := float64(n)
	denominator := nf*sumX2 - sumX*sumX
	if denominator == 0 {
		return window[n-1], nil
	}
	slope := (nf*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / nf

	predicted := intercept + slope*float64(n-1+m.Steps)
	return clamp(predicted), nil
}

// MomentumModel extrapolates the latest velocity, damped each step and
// nudged by the most recent acceleration.
type MomentumModel struct {
	Steps   int
	Damping float64
}

func (m *MomentumModel) Name() string { return "momentum" }

func (m *MomentumModel) Infer(window []float64) (float64, error) {
	n := len(window)
	if n < 3 {
		return 0, fmt.Errorf("%w: %d readings for momentum", ErrWindow, n)
	}

	v1 := window[n-1] - window[n-2]
	v0 := window[n-2] - window[n-3]
	accel := v1 - v0

	damping := m.Damping
	if damping <= 0 || damping >= 1 {
		damping = 0.85
	}

	velocity := v1
	position := window[n-1]
	for i := 0; i < m.Steps; i++ {
		velocity = velocity*damping + accel*0.1
		position += velocity
		position = clamp(position)
	}
	return position, nil
}

// DampedLinearModel carries the last step's slope forward at half
// strength, a deliberately conservative drift estimate.
type DampedLinearModel struct {
	Steps int
}

func (m *DampedLinearModel) Name() string { return "damped" }

func (m *DampedLinearModel) Infer(window []float64) (float64, error) {
	n := len(window)
	if n < 2 {
		return 0, fmt.Errorf("%w: %d readings for drift", ErrWindow, n)
	}

	trend := window[n-1] - window[n-2]
	predicted := window[n-1] + trend*float64(m.Steps)*0.5
	return clamp(predicted), nil
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
