// Package chart draws the Forecast vs Actual bar chart.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/cleared-dev/fpa/internal/model"
)

// ErrNoData is returned for an empty analysis.
var ErrNoData = errors.New("chart: no rows to draw")

// Format is an image output format.
type Format string

const (
	SVG Format = "svg"
	PNG Format = "png"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/svg+xml"
}

var (
	forecastColor = drawing.ColorFromHex("4C78A8")
	actualColor   = drawing.ColorFromHex("F58518")
)

const (
	barWidth   = 28
	barSpacing = 8
	minWidth   = 640
	height     = 420
)

// RenderBars draws one Forecast bar and one Actual bar per row, in dataset
// order. Forecast bars carry the department label.
func RenderBars(w io.Writer, a *model.Analysis, format Format) error {
	if a == nil || len(a.Rows) == 0 {
		return ErrNoData
	}

	var provider gochart.RendererProvider
	switch format {
	case SVG, "":
		provider = gochart.SVG
	case PNG:
		provider = gochart.PNG
	default:
		return fmt.Errorf("chart: unsupported format %q", format)
	}

	bars := make([]gochart.Value, 0, 2*len(a.Rows))
	lo, hi := 0.0, 0.0
	for _, r := range a.Rows {
		f := r.Forecast.InexactFloat64()
		act := r.Actual.InexactFloat64()
		lo = math.Min(lo, math.Min(f, act))
		hi = math.Max(hi, math.Max(f, act))

		bars = append(bars,
			gochart.Value{Label: r.Category, Value: f, Style: barStyle(forecastColor)},
			gochart.Value{Label: " ", Value: act, Style: barStyle(actualColor)},
		)
	}
	if hi == lo {
		hi = lo + 1
	}

	bc := gochart.BarChart{
		Title:      "Forecast vs Actual",
		TitleStyle: gochart.Style{FontSize: 12},
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		Width:      max(minWidth, len(bars)*(barWidth+barSpacing)+160),
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis:      gochart.Style{FontSize: 8},
		YAxis: gochart.YAxis{
			Style: gochart.Style{FontSize: 8},
			Range: &gochart.ContinuousRange{Min: lo, Max: hi * 1.1},
		},
		UseBaseValue: true,
		BaseValue:    0,
		Bars:         bars,
	}

	if err := bc.Render(provider, w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

func barStyle(c drawing.Color) gochart.Style {
	return gochart.Style{FillColor: c, StrokeColor: c, StrokeWidth: 1}
}
