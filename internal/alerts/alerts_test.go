package alerts

import (
	"strings"
	"testing"
	"time"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

type recorder struct {
	titles   []string
	messages []string
}

func (r *recorder) capture(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func testManager(repeat time.Duration) (*Manager, *recorder, *time.Time) {
	rec := &recorder{}
	current := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	m := NewManager(DefaultThresholds(), repeat)
	m.notify = rec.capture
	m.now = func() time.Time { return current }
	return m, rec, &current
}

func TestThresholds_Level(t *testing.T) {
	thresholds := DefaultThresholds()

	tests := []struct {
		name     string
		mmol     float64
		expected string
	}{
		{"Critically low", 2.8, "urgent_low"},
		{"At urgent low boundary", 3.06, "urgent_low"},
		{"Low", 3.6, "low"},
		{"At low boundary", 3.89, "low"},
		{"Just above low", 3.95, ""},
		{"In range", 5.5, ""},
		{"Just below high", 9.9, ""},
		{"At high boundary", 10.0, "high"},
		{"At urgent high boundary", 13.9, "urgent_high"},
		{"Critically high", 14.5, "urgent_high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := thresholds.Level(tt.mmol)
			if result != tt.expected {
				t.Errorf("Level(%v) = %q, want %q", tt.mmol, result, tt.expected)
			}
		})
	}
}

func TestManager_CheckReading_Fires(t *testing.T) {
	m, rec, _ := testManager(15 * time.Minute)

	obs := models.Observation{ID: "o1", Mmol: 3.5}
	if err := m.CheckReading(obs, "↓"); err != nil {
		t.Fatalf("CheckReading() error = %v", err)
	}

	if len(rec.titles) != 1 {
		t.Fatalf("got %d notifications, want 1", len(rec.titles))
	}
	if rec.titles[0] != "⬇️ Low Glucose" {
		t.Errorf("title = %s, want low glucose", rec.titles[0])
	}
	if !strings.Contains(rec.messages[0], "3.5 mmol/L (63 mg/dL)") {
		t.Errorf("message missing value, got: %s", rec.messages[0])
	}
	if !strings.Contains(rec.messages[0], "↓") {
		t.Errorf("message missing trend, got: %s", rec.messages[0])
	}
}

func TestManager_CheckReading_InRange(t *testing.T) {
	m, rec, _ := testManager(15 * time.Minute)

	if err := m.CheckReading(models.Observation{Mmol: 5.5}, "→"); err != nil {
		t.Fatalf("CheckReading() error = %v", err)
	}
	if len(rec.titles) != 0 {
		t.Errorf("in-range reading should not notify, got %d", len(rec.titles))
	}
}

func TestManager_RepeatSuppression(t *testing.T) {
	m, rec, now := testManager(15 * time.Minute)
	obs := models.Observation{Mmol: 3.5}

	_ = m.CheckReading(obs, "")
	if len(rec.titles) != 1 {
		t.Fatalf("first alert should fire, got %d", len(rec.titles))
	}

	*now = now.Add(5 * time.Minute)
	_ = m.CheckReading(obs, "")
	if len(rec.titles) != 1 {
		t.Errorf("alert within repeat window should be suppressed, got %d", len(rec.titles))
	}

	*now = now.Add(11 * time.Minute)
	_ = m.CheckReading(obs, "")
	if len(rec.titles) != 2 {
		t.Errorf("alert past repeat window should fire again, got %d", len(rec.titles))
	}
}

func TestManager_ZeroRepeatFiresOnce(t *testing.T) {
	m, rec, now := testManager(0)
	obs := models.Observation{Mmol: 3.5}

	_ = m.CheckReading(obs, "")
	*now = now.Add(4 * time.Hour)
	_ = m.CheckReading(obs, "")

	if len(rec.titles) != 1 {
		t.Fatalf("zero repeat should alert once, got %d", len(rec.titles))
	}

	m.Reset("")
	_ = m.CheckReading(obs, "")
	if len(rec.titles) != 2 {
		t.Errorf("alert after reset should fire, got %d", len(rec.titles))
	}
}

func TestManager_LevelsSuppressIndependently(t *testing.T) {
	m, rec, _ := testManager(15 * time.Minute)

	_ = m.CheckReading(models.Observation{Mmol: 3.5}, "")
	_ = m.CheckReading(models.Observation{Mmol: 2.8}, "")

	if len(rec.titles) != 2 {
		t.Fatalf("distinct levels should both fire, got %d", len(rec.titles))
	}
	if rec.titles[0] == rec.titles[1] {
		t.Error("expected distinct alert titles")
	}
}

func TestManager_CheckPredicted(t *testing.T) {
	m, rec, _ := testManager(15 * time.Minute)
	at := time.Date(2025, 3, 14, 12, 20, 0, 0, time.UTC)

	if err := m.CheckPredicted(5.5, at); err != nil {
		t.Fatalf("CheckPredicted() error = %v", err)
	}
	if len(rec.titles) != 0 {
		t.Errorf("in-range prediction should not notify, got %d", len(rec.titles))
	}

	if err := m.CheckPredicted(3.7, at); err != nil {
		t.Fatalf("CheckPredicted() error = %v", err)
	}
	if len(rec.titles) != 1 {
		t.Fatalf("low prediction should notify, got %d", len(rec.titles))
	}
	if rec.titles[0] != "⬇️ Predicted Low Glucose" {
		t.Errorf("title = %s, want predicted low", rec.titles[0])
	}
	if !strings.Contains(rec.messages[0], "3.7") {
		t.Errorf("message missing predicted value, got: %s", rec.messages[0])
	}
	if !strings.Contains(rec.messages[0], "12:20") {
		t.Errorf("message missing prediction time, got: %s", rec.messages[0])
	}
}

func TestManager_Reset(t *testing.T) {
	m, _, _ := testManager(15 * time.Minute)

	m.lastAlert["low"] = time.Now()
	m.lastAlert["high"] = time.Now()

	m.Reset("low")
	if _, ok := m.lastAlert["low"]; ok {
		t.Error("low alert should be cleared")
	}
	if _, ok := m.lastAlert["high"]; !ok {
		t.Error("high alert should still exist")
	}

	m.lastAlert["low"] = time.Now()
	m.Reset("")
	if len(m.lastAlert) != 0 {
		t.Error("All alerts should be cleared")
	}
}

func TestFormatReadingAlert(t *testing.T) {
	tests := []struct {
		level         string
		expectedTitle string
	}{
		{"urgent_low", "⚠️ URGENT LOW GLUCOSE"},
		{"low", "⬇️ Low Glucose"},
		{"high", "⬆️ High Glucose"},
		{"urgent_high", "⚠️ URGENT HIGH GLUCOSE"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			title, message := formatReadingAlert(tt.level, 5.5, "→")
			if title != tt.expectedTitle {
				t.Errorf("title = %s, want %s", title, tt.expectedTitle)
			}
			if message == "" {
				t.Error("Expected non-empty message")
			}
		})
	}
}
