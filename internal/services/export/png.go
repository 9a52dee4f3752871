package export

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"healthdash/internal/models"
)

// Size of exported chart images
const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 5 * vg.Inch
)

// WriteChartPNG renders a chart figure as a PNG. Pie and donut figures are
// drawn as bars over the same labels and values.
func WriteChartPNG(w io.Writer, fig *models.ChartResponse) error {
	if len(fig.Data) == 0 {
		return fmt.Errorf("chart %q has no data", fig.Layout.Title)
	}

	p := plot.New()
	p.Title.Text = fig.Layout.Title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = fig.Layout.XAxisTitle
	p.Y.Label.Text = fig.Layout.YAxisTitle
	p.Add(plotter.NewGrid())

	trace := fig.Data[0]
	var err error
	switch trace.Type {
	case "pie":
		err = addBars(p, trace.Labels, trace.Values, trace.Marker)
	case "bar":
		labels, _ := trace.X.([]string)
		values, _ := trace.Y.([]float64)
		err = addBars(p, labels, values, trace.Marker)
	case "scatter":
		err = addLine(p, trace)
	default:
		err = fmt.Errorf("unsupported trace type %q", trace.Type)
	}
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(chartWidth, chartHeight, "png")
	if err != nil {
		return fmt.Errorf("create png canvas: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func addBars(p *plot.Plot, labels []string, values []float64, marker *models.Marker) error {
	if len(labels) != len(values) {
		return fmt.Errorf("bar chart has %d labels and %d values", len(labels), len(values))
	}
	if len(values) == 0 {
		return nil
	}

	colors := markerColors(marker, len(values))
	width := vg.Points(40)

	// One single-bar chart per category so each bar takes its own color
	for i, v := range values {
		series := make(plotter.Values, len(values))
		series[i] = v
		bars, err := plotter.NewBarChart(series, width)
		if err != nil {
			return fmt.Errorf("bar chart: %w", err)
		}
		bars.Color = colors[i]
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
	}

	p.NominalX(labels...)
	p.X.Tick.Label.XAlign = draw.XCenter
	p.Y.Min = 0
	return nil
}

func addLine(p *plot.Plot, trace models.ChartData) error {
	years, _ := trace.X.([]int)
	totals, _ := trace.Y.([]float64)
	if len(years) != len(totals) {
		return fmt.Errorf("line chart has %d x values and %d y values", len(years), len(totals))
	}
	if len(years) == 0 {
		return nil
	}

	points := make(plotter.XYs, len(years))
	for i := range years {
		points[i].X = float64(years[i])
		points[i].Y = totals[i]
	}

	line, scatter, err := plotter.NewLinePoints(points)
	if err != nil {
		return fmt.Errorf("line chart: %w", err)
	}
	c := markerColors(trace.Marker, 1)[0]
	line.Color = c
	line.Width = vg.Points(2)
	scatter.GlyphStyle.Color = c
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(line, scatter)

	ticks := make([]plot.Tick, len(years))
	for i, y := range years {
		ticks[i] = plot.Tick{Value: float64(y), Label: fmt.Sprint(y)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	return nil
}

// markerColors resolves n colors from a Plotly marker
func markerColors(m *models.Marker, n int) []color.Color {
	out := make([]color.Color, n)
	fallback := color.RGBA{R: 55, G: 126, B: 184, A: 255}

	var specs []string
	if m != nil {
		switch {
		case len(m.Colors) > 0:
			specs = m.Colors
		case m.Color != nil:
			if s, ok := m.Color.(string); ok {
				specs = []string{s}
			}
		}
	}

	for i := range out {
		out[i] = fallback
		if len(specs) == 0 {
			continue
		}
		if c, ok := parseRGB(specs[i%len(specs)]); ok {
			out[i] = c
		}
	}
	return out
}

// parseRGB reads "rgb(r,g,b)"
func parseRGB(s string) (color.Color, bool) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "rgb(%d,%d,%d)", &r, &g, &b); err != nil {
		return nil, false
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, true
}
