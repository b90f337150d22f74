package models

import "time"

// GlucoseEntry represents a single glucose reading from Nightscout
type GlucoseEntry struct {
	ID        string `json:"_id"`
	SGV       int    `json:"sgv"`  // Sensor glucose value in mg/dL
	Date      int64  `json:"date"` // Unix timestamp in milliseconds
	DateStr   string `json:"dateString"`
	Trend     int    `json:"trend"`     // Trend direction (1-7)
	Direction string `json:"direction"` // Trend direction as string
	Device    string `json:"device"`
	Type      string `json:"type"`
	Mills     int64  `json:"mills"`
}

// Time returns the time of the glucose entry
func (g *GlucoseEntry) Time() time.Time {
	return time.UnixMilli(g.Date)
}

// ValueMgDL returns the glucose value in mg/dL
func (g *GlucoseEntry) ValueMgDL() int {
	return g.SGV
}

// ValueMmolL returns the glucose value in the canonical mmol/L scale
func (g *GlucoseEntry) ValueMmolL() float64 {
	return MgdlToMmol(float64(g.SGV))
}

// Observation converts the wire entry to the canonical domain reading.
func (g *GlucoseEntry) Observation() Observation {
	return Observation{
		ID:     g.ID,
		Time:   g.Time(),
		Mmol:   g.ValueMmolL(),
		Source: g.Device,
	}
}

// EntriesToObservations converts a fetched batch, skipping entries with
// no identifier or a non-positive sensor value.
func EntriesToObservations(entries []GlucoseEntry) []Observation {
	out := make([]Observation, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.ID == "" || e.SGV <= 0 {
			continue
		}
		out = append(out, e.Observation())
	}
	return out
}

// TrendArrow returns the Unicode arrow character for the trend
func (g *GlucoseEntry) TrendArrow() string {
	arrows := map[string]string{
		"DoubleUp":          "⇈",
		"SingleUp":          "↑",
		"FortyFiveUp":       "↗",
		"Flat":              "→",
		"FortyFiveDown":     "↘",
		"SingleDown":        "↓",
		"DoubleDown":        "⇊",
		"NOT COMPUTABLE":    "?",
		"RATE OUT OF RANGE": "⚠",
	}

	if g.Direction != "" {
		if arrow, ok := arrows[g.Direction]; ok {
			return arrow
		}
	}

	// Fallback to numeric trend
	numericArrows := map[int]string{
		1: "⇈",
		2: "↑",
		3: "↗",
		4: "→",
		5: "↘",
		6: "↓",
		7: "⇊",
	}

	if arrow, ok := numericArrows[g.Trend]; ok {
		return arrow
	}

	return "-"
}

// ServerStatus represents the Nightscout server status
type ServerStatus struct {
	Status            string         `json:"status"`
	Name              string         `json:"name"`
	Version           string         `json:"version"`
	ServerTime        string         `json:"serverTime"`
	APIEnabled        bool           `json:"apiEnabled"`
	CareportalEnabled bool           `json:"careportalEnabled"`
	Head              string         `json:"head"`
	Settings          ServerSettings `json:"settings,omitempty"`
}

// ServerSettings contains Nightscout server settings
type ServerSettings struct {
	Units           string     `json:"units"`
	TimeFormat      int        `json:"timeFormat"`
	NightMode       bool       `json:"nightMode"`
	Theme           string     `json:"theme"`
	Language        string     `json:"language"`
	ShowPlugins     string     `json:"showPlugins"`
	AlarmHigh       bool       `json:"alarmHigh"`
	AlarmLow        bool       `json:"alarmLow"`
	AlarmUrgentHigh bool       `json:"alarmUrgentHigh"`
	AlarmUrgentLow  bool       `json:"alarmUrgentLow"`
	Thresholds      Thresholds `json:"thresholds,omitempty"`
}

// Thresholds contains glucose threshold settings
type Thresholds struct {
	BGHigh         int `json:"bgHigh"`
	BGLow          int `json:"bgLow"`
	BGTargetTop    int `json:"bgTargetTop"`
	BGTargetBottom int `json:"bgTargetBottom"`
}
