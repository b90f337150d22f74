package export

import (
	"errors"
	"fmt"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/ensemble"
	"github.com/pallagip/2025-SaveKit---NightScout-to-HealthKit-sub001/internal/models"
)

// Palette for rendered points and chrome.
const (
	colorUrgent    = "#ef4444"
	colorLow       = "#f97316"
	colorHigh      = "#facc15"
	colorInRange   = "#4ade80"
	colorPredicted = "#60a5fa"
	colorMatched   = "#a78bfa"
	colorGrid      = "#e5e7eb"
	colorText      = "#374151"
)

// ChartConfig controls the rendered report.
type ChartConfig struct {
	Width          int
	Height         int
	TargetLowMmol  float64
	TargetHighMmol float64
	UrgentLowMmol  float64
	UrgentHighMmol float64
	Location       *time.Location
}

// DefaultChartConfig returns a 900x500 canvas with the usual 70/180 and
// 55/250 mg/dL bands expressed in mmol/L.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:          900,
		Height:         500,
		TargetLowMmol:  models.MgdlToMmol(70),
		TargetHighMmol: models.MgdlToMmol(180),
		UrgentLowMmol:  models.MgdlToMmol(55),
		UrgentHighMmol: models.MgdlToMmol(250),
		Location:       time.UTC,
	}
}

func (c ChartConfig) statusColor(mmol float64) string {
	switch {
	case mmol <= c.UrgentLowMmol || mmol >= c.UrgentHighMmol:
		return colorUrgent
	case mmol < c.TargetLowMmol:
		return colorLow
	case mmol > c.TargetHighMmol:
		return colorHigh
	default:
		return colorInRange
	}
}

// RenderChart draws observations, per-timestamp ensemble averages, and
// matched actuals over a target band, and writes the PNG to path.
func RenderChart(path string, observations []models.Observation, forecasts []*models.Forecast, cfg ChartConfig) error {
	if len(observations) == 0 && len(forecasts) == 0 {
		return errors.New("no data to render")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		def := DefaultChartConfig()
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	obs := models.SortedObservations(observations)
	groups, keys := ensemble.GroupByTime(forecasts)

	minTime, maxTime, minVal, maxVal := chartBounds(obs, groups, keys, cfg)

	dc := gg.NewContext(cfg.Width, cfg.Height)
	dc.SetRGBA(1, 1, 1, 1)
	dc.Clear()

	face, err := loadFont(13)
	if err != nil {
		return fmt.Errorf("loading font: %w", err)
	}
	dc.SetFontFace(face)

	const margin = 56.0
	plotW := float64(cfg.Width) - 2*margin
	plotH := float64(cfg.Height) - 2*margin

	x := func(t time.Time) float64 {
		span := maxTime.Sub(minTime).Seconds()
		if span <= 0 {
			return margin + plotW/2
		}
		return margin + t.Sub(minTime).Seconds()/span*plotW
	}
	y := func(v float64) float64 {
		span := maxVal - minVal
		if span <= 0 {
			return margin + plotH/2
		}
		return margin + plotH - (v-minVal)/span*plotH
	}

	// Target band.
	dc.SetRGBA(0.3, 0.87, 0.5, 0.12)
	bandTop := y(cfg.TargetHighMmol)
	bandBottom := y(cfg.TargetLowMmol)
	dc.DrawRectangle(margin, bandTop, plotW, bandBottom-bandTop)
	dc.Fill()

	// Horizontal grid and axis labels.
	setHex(dc, colorGrid)
	dc.SetLineWidth(1)
	step := gridStep(maxVal - minVal)
	for v := gridStart(minVal, step); v <= maxVal; v += step {
		dc.DrawLine(margin, y(v), margin+plotW, y(v))
		dc.Stroke()
		setHex(dc, colorText)
		dc.DrawStringAnchored(fmt.Sprintf("%.1f", v), margin-8, y(v), 1, 0.35)
		setHex(dc, colorGrid)
	}

	// Time axis labels at the edges and midpoint.
	setHex(dc, colorText)
	for _, t := range []time.Time{minTime, minTime.Add(maxTime.Sub(minTime) / 2), maxTime} {
		dc.DrawStringAnchored(t.In(cfg.Location).Format("15:04"), x(t), float64(cfg.Height)-margin+18, 0.5, 0.5)
	}
	dc.DrawStringAnchored("mmol/L", margin, margin-16, 0, 0.5)

	// Ensemble averages as a connected line with hollow markers.
	type avgPoint struct {
		t time.Time
		v float64
	}
	var avgs []avgPoint
	for _, key := range keys {
		group := groups[key]
		if avg, _, ok := ensemble.Average(group); ok {
			avgs = append(avgs, avgPoint{t: group[0].Time, v: avg})
		}
	}
	if len(avgs) > 1 {
		setHex(dc, colorPredicted)
		dc.SetLineWidth(1.5)
		for i := 1; i < len(avgs); i++ {
			dc.DrawLine(x(avgs[i-1].t), y(avgs[i-1].v), x(avgs[i].t), y(avgs[i].v))
			dc.Stroke()
		}
	}
	for _, p := range avgs {
		setHex(dc, colorPredicted)
		dc.DrawCircle(x(p.t), y(p.v), 3.5)
		dc.Stroke()
	}

	// Matched actuals as rings around the accepted reading position.
	setHex(dc, colorMatched)
	dc.SetLineWidth(2)
	for _, key := range keys {
		group := groups[key]
		for _, f := range group {
			if f.IsMatched() {
				dc.DrawCircle(x(*f.MatchedAt), y(*f.MatchedMmol), 6)
				dc.Stroke()
				break
			}
		}
	}

	// Observations on top, colored by range status.
	for _, o := range obs {
		setHex(dc, cfg.statusColor(o.Mmol))
		dc.DrawCircle(x(o.Time), y(o.Mmol), 2.5)
		dc.Fill()
	}

	return dc.SavePNG(path)
}

func chartBounds(obs []models.Observation, groups map[int64][]*models.Forecast, keys []int64, cfg ChartConfig) (time.Time, time.Time, float64, float64) {
	var minTime, maxTime time.Time
	minVal, maxVal := cfg.TargetLowMmol, cfg.TargetHighMmol

	consider := func(t time.Time, v float64) {
		if minTime.IsZero() || t.Before(minTime) {
			minTime = t
		}
		if maxTime.IsZero() || t.After(maxTime) {
			maxTime = t
		}
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	for _, o := range obs {
		consider(o.Time, o.Mmol)
	}
	for _, key := range keys {
		group := groups[key]
		if avg, _, ok := ensemble.Average(group); ok {
			consider(group[0].Time, avg)
		}
		for _, f := range group {
			if f.IsMatched() {
				consider(*f.MatchedAt, *f.MatchedMmol)
			}
		}
	}

	// Value buffer so points never sit on the frame.
	minVal -= 1
	if minVal < 0 {
		minVal = 0
	}
	maxVal += 1
	return minTime, maxTime, minVal, maxVal
}

func gridStep(span float64) float64 {
	switch {
	case span > 16:
		return 4
	case span > 8:
		return 2
	default:
		return 1
	}
}

// gridStart returns the first gridline at or above v.
func gridStart(v, step float64) float64 {
	n := float64(int(v / step))
	if n*step < v {
		n++
	}
	return n * step
}

func loadFont(size float64) (font.Face, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

func setHex(dc *gg.Context, hex string) {
	r, g, b, err := parseHexColor(hex)
	if err != nil {
		dc.SetRGB(0, 0, 0)
		return
	}
	dc.SetRGB255(r, g, b)
}

func parseHexColor(hex string) (int, int, int, error) {
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return 0, 0, 0, err
	}
	return r, g, b, nil
}
