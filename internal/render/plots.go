package render

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/mrcode/apcontrol/internal/control"
	"github.com/mrcode/apcontrol/internal/errorgrid"
	"github.com/mrcode/apcontrol/internal/models"
	"github.com/mrcode/apcontrol/internal/timeseries"
)

// PredictionCharts builds the activity / remaining / blood glucose panels of a prediction
func PredictionCharts(result *models.PredictionResult, unit string) []Chart {
	n := len(result.Points)
	minutes := make([]float64, n)
	activity := make([]float64, n)
	remaining := make([]float64, n)
	values := make([]float64, n)
	for i, p := range result.Points {
		minutes[i] = p.Minute
		activity[i] = p.Activity
		remaining[i] = p.Remaining
		values[i] = p.Value
	}

	glucose := Chart{
		Title:  "Predicted blood glucose",
		XLabel: "Time (min)",
		YLabel: unit,
		Series: []Series{{Label: "BG", X: minutes, Y: values, Color: ColorBlue}},
	}
	if result.LowThreshold > 0 {
		glucose.Series = append(glucose.Series, thresholdLine("Low", minutes, result.LowThreshold, ColorRed))
	}
	if result.HighThreshold > 0 {
		glucose.Series = append(glucose.Series, thresholdLine("High", minutes, result.HighThreshold, ColorOrange))
	}

	return []Chart{
		{
			Title:  "Insulin activity",
			XLabel: "Time (min)",
			YLabel: "% / min",
			Series: []Series{{Label: "Activity", X: minutes, Y: activity, Color: ColorOrange}},
		},
		{
			Title:  "Insulin remaining",
			XLabel: "Time (min)",
			YLabel: "%",
			Series: []Series{{Label: "Remaining", X: minutes, Y: remaining, Color: ColorGreen}},
		},
		glucose,
	}
}

func thresholdLine(label string, x []float64, value float64, color string) Series {
	if len(x) == 0 {
		return Series{Label: label, Color: color}
	}
	return Series{
		Label:  label,
		X:      []float64{x[0], x[len(x)-1]},
		Y:      []float64{value, value},
		Color:  color,
		Width:  1,
		Dashed: true,
	}
}

// ControllerCharts builds the set point / process variable panel and the output panel
func ControllerCharts(resp *control.Response, gains models.ControllerGains) []Chart {
	out := Chart{
		Title:  "Controller output",
		XLabel: "Time",
		YLabel: "Output",
		Series: []Series{{Label: "OP", X: resp.Time, Y: resp.Output, Color: ColorBlue}},
	}
	if len(resp.Time) > 0 {
		out.Series = append(out.Series,
			thresholdLine("Low limit", resp.Time, gains.OutputLow, ColorRed),
			thresholdLine("High limit", resp.Time, gains.OutputHigh, ColorRed),
		)
	}

	return []Chart{
		{
			Title:  fmt.Sprintf("PI control (Kc=%g, tauI=%g)", gains.Kc, gains.TauI),
			XLabel: "Time",
			YLabel: "Blood glucose",
			Series: []Series{
				{Label: "SP", X: resp.Time, Y: resp.SetPoint, Color: ColorBlack, Dashed: true},
				{Label: "PV", X: resp.Time, Y: resp.PV, Color: ColorRed},
			},
		},
		out,
	}
}

type zoneLabel struct {
	text string
	x, y float64
}

var (
	// Boundary segments as [x1, y1, x2, y2] in mg/dL
	zoneBoundaries = [][4]float64{
		{0, 175.0 / 3, 70, 70},
		{175.0 / 3, 400 / 1.2, 70, 400},
		{70, 70, 84, 400},
		{0, 70, 180, 180},
		{70, 290, 180, 400},
		{70, 70, 0, 56},
		{70, 400, 56, 320},
		{180, 180, 0, 70},
		{180, 400, 70, 70},
		{240, 240, 70, 180},
		{240, 400, 180, 180},
		{130, 180, 0, 70},
	}

	zoneLabels = []zoneLabel{
		{"A", 30, 15}, {"B", 370, 260}, {"B", 280, 370},
		{"C", 160, 370}, {"C", 160, 15}, {"D", 30, 140},
		{"D", 370, 120}, {"E", 30, 370}, {"E", 370, 15},
	}
)

// ErrorGrid draws the Clarke error grid with the paired readings scattered on top
func ErrorGrid(reference, measured []float64, title string, size int) (image.Image, error) {
	if len(reference) != len(measured) {
		return nil, fmt.Errorf("%w: %d reference values, %d measured", timeseries.ErrDimensionMismatch, len(reference), len(measured))
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid image size %d", size)
	}

	dc := gg.NewContext(size, size)
	setHexColor(dc, ColorBackground)
	dc.Clear()
	if err := loadFont(dc, 13); err != nil {
		return nil, fmt.Errorf("loading font: %w", err)
	}

	c := Chart{
		Title:  title,
		XLabel: "Reference concentration (mg/dL)",
		YLabel: "Predicted concentration (mg/dL)",
		XRange: [2]float64{errorgrid.RangeMin, errorgrid.RangeMax},
		YRange: [2]float64{errorgrid.RangeMin, errorgrid.RangeMax},
		Series: []Series{
			{X: []float64{0, 400}, Y: []float64{0, 400}, Color: ColorBlack, Width: 1, Dashed: true},
			{X: reference, Y: measured, Color: ColorBlack, Width: 2, Points: true},
		},
	}
	for _, seg := range zoneBoundaries {
		c.Series = append(c.Series, Series{
			X: []float64{seg[0], seg[2]}, Y: []float64{seg[1], seg[3]},
			Color: ColorAxis, Width: 1,
		})
	}
	c.draw(dc, 0, 0, float64(size), float64(size))

	xMin, xMax, yMin, yMax := c.bounds()
	area := plotArea{
		x: marginLeft, y: marginTop,
		w: float64(size) - marginLeft - marginRight, h: float64(size) - marginTop - marginBottom,
		xMin: xMin, xMax: xMax, yMin: yMin, yMax: yMax,
	}
	if err := loadFont(dc, 16); err != nil {
		return nil, fmt.Errorf("loading font: %w", err)
	}
	setHexColor(dc, ColorBlack)
	for _, l := range zoneLabels {
		dc.DrawStringAnchored(l.text, area.px(l.x), area.py(l.y), 0.5, 0.5)
	}

	return dc.Image(), nil
}
