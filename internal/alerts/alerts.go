// Package alerts evaluates glucose readings and ensemble predictions
// against thresholds and raises system notifications
package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

// Alert level constants
const (
	levelUrgentLow    = "urgent_low"
	levelLow          = "low"
	levelUrgentHigh   = "urgent_high"
	levelHigh         = "high"
	levelPredictedLow = "predicted_low"
)

// Thresholds are glucose boundaries in mg/dL, matching how Nightscout
// servers configure them
type Thresholds struct {
	UrgentLow  int
	TargetLow  int
	TargetHigh int
	UrgentHigh int
}

// DefaultThresholds returns the common Nightscout defaults
func DefaultThresholds() Thresholds {
	return Thresholds{
		UrgentLow:  55,
		TargetLow:  70,
		TargetHigh: 180,
		UrgentHigh: 250,
	}
}

// Level classifies a glucose value in mmol/L against the thresholds.
// An empty string means the value is in range.
func (t Thresholds) Level(mmol float64) string {
	mgdl := models.DisplayMgdl(mmol)
	switch {
	case mgdl <= t.UrgentLow:
		return levelUrgentLow
	case mgdl <= t.TargetLow:
		return levelLow
	case mgdl >= t.UrgentHigh:
		return levelUrgentHigh
	case mgdl >= t.TargetHigh:
		return levelHigh
	}
	return ""
}

// Manager handles glucose alerts and notifications with repeat
// suppression per alert level
type Manager struct {
	thresholds Thresholds
	repeat     time.Duration
	mu         sync.Mutex
	lastAlert  map[string]time.Time
	notify     func(title, message string) error
	now        func() time.Time
}

// NewManager creates a new alert manager. A zero repeat means each
// level fires at most once until Reset.
func NewManager(thresholds Thresholds, repeat time.Duration) *Manager {
	return &Manager{
		thresholds: thresholds,
		repeat:     repeat,
		lastAlert:  make(map[string]time.Time),
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		now: time.Now,
	}
}

// CheckReading classifies the latest reading and notifies when it is
// out of range
func (m *Manager) CheckReading(obs models.Observation, trend string) error {
	level := m.thresholds.Level(obs.Mmol)
	if level == "" {
		return nil
	}

	title, message := formatReadingAlert(level, obs.Mmol, trend)
	return m.deliver(level, title, message)
}

// CheckPredicted raises an early warning when the ensemble average is
// heading to or below the low threshold
func (m *Manager) CheckPredicted(avgMmol float64, at time.Time) error {
	if models.DisplayMgdl(avgMmol) > m.thresholds.TargetLow {
		return nil
	}

	title := "⬇️ Predicted Low Glucose"
	message := fmt.Sprintf("Glucose predicted to drop to %.1f mmol/L (%d mg/dL) by %s",
		avgMmol, models.DisplayMgdl(avgMmol), at.Format("15:04"))
	return m.deliver(levelPredictedLow, title, message)
}

// deliver sends the notification unless the same level already fired
// within the repeat window
func (m *Manager) deliver(level, title, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lastTime, ok := m.lastAlert[level]; ok {
		if m.repeat > 0 {
			if m.now().Sub(lastTime) < m.repeat {
				return nil
			}
		} else {
			// No repeat, only alert once per level until reset
			return nil
		}
	}

	if err := m.notify(title, message); err != nil {
		return err
	}

	m.lastAlert[level] = m.now()
	return nil
}

// Reset clears the alert state for a specific level or all levels
func (m *Manager) Reset(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if level == "" {
		m.lastAlert = make(map[string]time.Time)
	} else {
		delete(m.lastAlert, level)
	}
}

// SendTest sends a test notification
func (m *Manager) SendTest() error {
	return m.notify("SaveKit", "Test notification - alerts are working!")
}

// formatReadingAlert creates the notification title and message
func formatReadingAlert(level string, mmol float64, trend string) (string, string) {
	value := fmt.Sprintf("%.1f mmol/L (%d mg/dL)", mmol, models.DisplayMgdl(mmol))
	if trend != "" {
		value += " " + trend
	}

	switch level {
	case levelUrgentLow:
		return "⚠️ URGENT LOW GLUCOSE", fmt.Sprintf("Glucose is critically low: %s", value)
	case levelLow:
		return "⬇️ Low Glucose", fmt.Sprintf("Glucose is low: %s", value)
	case levelUrgentHigh:
		return "⚠️ URGENT HIGH GLUCOSE", fmt.Sprintf("Glucose is critically high: %s", value)
	case levelHigh:
		return "⬆️ High Glucose", fmt.Sprintf("Glucose is high: %s", value)
	}
	return "", ""
}
