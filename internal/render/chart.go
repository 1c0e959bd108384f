// Package render draws the simulation results as PNG charts
package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// Palette shared by all charts
const (
	ColorBackground = "#ffffff"
	ColorAxis       = "#374151"
	ColorGrid       = "#e5e7eb"
	ColorBlue       = "#2563eb"
	ColorRed        = "#ef4444"
	ColorGreen      = "#4ade80"
	ColorOrange     = "#f97316"
	ColorBlack      = "#111827"
)

const (
	marginLeft   = 70
	marginRight  = 20
	marginTop    = 36
	marginBottom = 46
	tickCount    = 5
)

// Series is one line (or scatter) on a chart
type Series struct {
	Label  string
	X      []float64
	Y      []float64
	Color  string  // Hex color, e.g. "#2563eb"
	Width  float64 // Line width in pixels, 0 means 2
	Dashed bool
	Points bool // Draw markers instead of a line
}

// Chart describes a single plot area
type Chart struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series

	// Fixed axis ranges; a zero range is computed from the data
	XRange [2]float64
	YRange [2]float64
}

var parsedFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

// loadFont helper to load font safely
func loadFont(dc *gg.Context, size float64) error {
	font, err := parsedFont()
	if err != nil {
		return err
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
	return nil
}

// parseHexColor parses a hex color string to RGB values
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}

func setHexColor(dc *gg.Context, hex string) {
	r, g, b := parseHexColor(hex)
	dc.SetRGB255(int(r), int(g), int(b))
}

// RenderPanels stacks the charts vertically, each taking an equal share of the height
func RenderPanels(width, height int, charts ...Chart) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if len(charts) == 0 {
		return nil, fmt.Errorf("no charts to render")
	}

	dc := gg.NewContext(width, height)
	setHexColor(dc, ColorBackground)
	dc.Clear()

	if err := loadFont(dc, 13); err != nil {
		return nil, fmt.Errorf("loading font: %w", err)
	}

	panelHeight := float64(height) / float64(len(charts))
	for i, c := range charts {
		c.draw(dc, 0, float64(i)*panelHeight, float64(width), panelHeight)
	}
	return dc.Image(), nil
}

// EncodePNG writes the image as PNG
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// plotArea maps data coordinates onto a pixel rectangle
type plotArea struct {
	x, y, w, h             float64
	xMin, xMax, yMin, yMax float64
}

func (p plotArea) px(v float64) float64 {
	return p.x + (v-p.xMin)/(p.xMax-p.xMin)*p.w
}

func (p plotArea) py(v float64) float64 {
	return p.y + p.h - (v-p.yMin)/(p.yMax-p.yMin)*p.h
}

func (c Chart) bounds() (xMin, xMax, yMin, yMax float64) {
	xMin, yMin = math.Inf(1), math.Inf(1)
	xMax, yMax = math.Inf(-1), math.Inf(-1)
	for _, s := range c.Series {
		for i := range s.X {
			if i >= len(s.Y) || !finite(s.X[i]) || !finite(s.Y[i]) {
				continue
			}
			xMin, xMax = math.Min(xMin, s.X[i]), math.Max(xMax, s.X[i])
			yMin, yMax = math.Min(yMin, s.Y[i]), math.Max(yMax, s.Y[i])
		}
	}
	if math.IsInf(xMin, 1) {
		xMin, xMax, yMin, yMax = 0, 1, 0, 1
	}

	// 5% headroom on the value axis
	pad := (yMax - yMin) * 0.05
	yMin, yMax = yMin-pad, yMax+pad

	if c.XRange[0] != c.XRange[1] {
		xMin, xMax = c.XRange[0], c.XRange[1]
	}
	if c.YRange[0] != c.YRange[1] {
		yMin, yMax = c.YRange[0], c.YRange[1]
	}
	if xMax == xMin {
		xMin, xMax = xMin-1, xMax+1
	}
	if yMax == yMin {
		yMin, yMax = yMin-1, yMax+1
	}
	return xMin, xMax, yMin, yMax
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c Chart) draw(dc *gg.Context, x, y, w, h float64) {
	xMin, xMax, yMin, yMax := c.bounds()
	area := plotArea{
		x: x + marginLeft, y: y + marginTop,
		w: w - marginLeft - marginRight, h: h - marginTop - marginBottom,
		xMin: xMin, xMax: xMax, yMin: yMin, yMax: yMax,
	}

	drawAxes(dc, area)

	setHexColor(dc, ColorBlack)
	if c.Title != "" {
		dc.DrawStringAnchored(c.Title, x+w/2, y+marginTop/2, 0.5, 0.5)
	}
	if c.XLabel != "" {
		dc.DrawStringAnchored(c.XLabel, area.x+area.w/2, y+h-10, 0.5, 0.5)
	}
	if c.YLabel != "" {
		dc.Push()
		dc.RotateAbout(gg.Radians(-90), x+14, area.y+area.h/2)
		dc.DrawStringAnchored(c.YLabel, x+14, area.y+area.h/2, 0.5, 0.5)
		dc.Pop()
	}

	dc.Push()
	dc.DrawRectangle(area.x, area.y, area.w, area.h)
	dc.Clip()
	for _, s := range c.Series {
		drawSeries(dc, area, s)
	}
	dc.ResetClip()
	dc.Pop()

	drawLegend(dc, area, c.Series)
}

func drawAxes(dc *gg.Context, a plotArea) {
	dc.SetLineWidth(1)
	for i := 0; i <= tickCount; i++ {
		f := float64(i) / tickCount
		xv := a.xMin + f*(a.xMax-a.xMin)
		yv := a.yMin + f*(a.yMax-a.yMin)

		// Grid
		setHexColor(dc, ColorGrid)
		dc.DrawLine(a.px(xv), a.y, a.px(xv), a.y+a.h)
		dc.DrawLine(a.x, a.py(yv), a.x+a.w, a.py(yv))
		dc.Stroke()

		// Tick labels
		setHexColor(dc, ColorAxis)
		dc.DrawStringAnchored(formatTick(xv), a.px(xv), a.y+a.h+14, 0.5, 0.5)
		dc.DrawStringAnchored(formatTick(yv), a.x-6, a.py(yv), 1, 0.5)
	}

	setHexColor(dc, ColorAxis)
	dc.DrawRectangle(a.x, a.y, a.w, a.h)
	dc.Stroke()
}

func formatTick(v float64) string {
	if math.Abs(v) < 1e-9 {
		return "0"
	}
	return fmt.Sprintf("%.4g", v)
}

func drawSeries(dc *gg.Context, a plotArea, s Series) {
	color := s.Color
	if color == "" {
		color = ColorBlue
	}
	setHexColor(dc, color)

	width := s.Width
	if width == 0 {
		width = 2
	}
	dc.SetLineWidth(width)
	if s.Dashed {
		dc.SetDash(6, 4)
	}
	defer dc.SetDash()

	n := min(len(s.X), len(s.Y))
	if s.Points {
		for i := 0; i < n; i++ {
			if finite(s.X[i]) && finite(s.Y[i]) {
				dc.DrawCircle(a.px(s.X[i]), a.py(s.Y[i]), width+1)
				dc.Fill()
			}
		}
		return
	}

	started := false
	for i := 0; i < n; i++ {
		if !finite(s.X[i]) || !finite(s.Y[i]) {
			// Break the line on gaps
			if started {
				dc.Stroke()
			}
			started = false
			continue
		}
		if !started {
			dc.MoveTo(a.px(s.X[i]), a.py(s.Y[i]))
			started = true
			continue
		}
		dc.LineTo(a.px(s.X[i]), a.py(s.Y[i]))
	}
	if started {
		dc.Stroke()
	}
}

func drawLegend(dc *gg.Context, a plotArea, series []Series) {
	row := 0
	for _, s := range series {
		if s.Label == "" {
			continue
		}
		color := s.Color
		if color == "" {
			color = ColorBlue
		}
		tw, _ := dc.MeasureString(s.Label)
		ly := a.y + 14 + float64(row)*18
		lx := a.x + a.w - tw - 36

		setHexColor(dc, color)
		dc.SetLineWidth(3)
		dc.DrawLine(lx, ly, lx+18, ly)
		dc.Stroke()

		setHexColor(dc, ColorBlack)
		dc.DrawStringAnchored(s.Label, lx+24, ly, 0, 0.5)
		row++
	}
}
