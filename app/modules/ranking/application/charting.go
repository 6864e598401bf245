package rankingservice

import (
	"bytes"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartPalette holds the colours used by rendered charts.
type ChartPalette struct {
	Background drawing.Color
	TextColor  drawing.Color
	Bars       map[string]drawing.Color
	DefaultBar drawing.Color
}

// DefaultPalette follows the leaderboard's tier colours.
var DefaultPalette = ChartPalette{
	Background: drawing.ColorFromHex("1c1917"),
	TextColor:  drawing.ColorFromHex("e7e5e4"),
	DefaultBar: drawing.ColorFromHex("a8a29e"),
	Bars: map[string]drawing.Color{
		"B":      drawing.ColorFromHex("b45309"),
		"A":      drawing.ColorFromHex("9ca3af"),
		"S":      drawing.ColorFromHex("f59e0b"),
		"SS":     drawing.ColorFromHex("facc15"),
		"SSS":    drawing.ColorFromHex("a855f7"),
		"LEGEND": drawing.ColorFromHex("ec4899"),
	},
}

// GenerateTierChart produces a PNG bar chart of players per tier.
func GenerateTierChart(counts []TierCount, palette ChartPalette) ([]byte, error) {
	var total, highest int
	for _, c := range counts {
		total += c.Count
		highest = max(highest, c.Count)
	}
	if total == 0 {
		return renderNoDataPlaceholder(palette)
	}

	bars := make([]chart.Value, len(counts))
	for i, c := range counts {
		color, ok := palette.Bars[c.Tier]
		if !ok {
			color = palette.DefaultBar
		}
		bars[i] = chart.Value{
			Label: c.Tier,
			Value: float64(c.Count),
			Style: chart.Style{
				FillColor:   color,
				StrokeColor: color,
			},
		}
	}

	graph := chart.BarChart{
		Title:      "Players per tier",
		TitleStyle: chart.Style{FontColor: palette.TextColor},
		Width:      800,
		Height:     400,
		BarWidth:   80,
		Background: chart.Style{
			FillColor: palette.Background,
			Padding:   chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Canvas: chart.Style{
			FillColor: palette.Background,
		},
		XAxis: chart.Style{
			FontColor: palette.TextColor,
		},
		YAxis: chart.YAxis{
			Style: chart.Style{
				FontColor: palette.TextColor,
			},
			// an explicit range keeps equal bar heights renderable
			Range: &chart.ContinuousRange{Min: 0, Max: float64(highest)},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func renderNoDataPlaceholder(palette ChartPalette) ([]byte, error) {
	const (
		width  = 400
		height = 200
		msg    = "No players ranked yet"
	)

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			FillColor: palette.Background,
		},
		Canvas: chart.Style{
			FillColor: palette.Background,
		},
		XAxis: chart.XAxis{Style: chart.Style{Hidden: true}},
		YAxis: chart.YAxis{Style: chart.Style{Hidden: true}},
		// Render needs one visible series; this one is drawn in the background colour.
		Series: []chart.Series{
			chart.ContinuousSeries{
				Style:   chart.Style{StrokeColor: palette.Background},
				XValues: []float64{0, 1},
				YValues: []float64{0, 1},
			},
		},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, chartDefaults chart.Style) {
				r.SetFontColor(palette.TextColor)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				x := (cb.Width() - tb.Width()) / 2
				y := (cb.Height() + tb.Height()) / 2
				r.Text(msg, x, y)
			},
		},
	}
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
