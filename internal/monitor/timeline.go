package monitor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/fallwatch/internal/fall"
)

// outcomeOrder fixes the bar order of the outcome histogram.
var outcomeOrder = []fall.Outcome{
	fall.OutcomeFall,
	fall.OutcomeNoFall,
	fall.OutcomeNoHistory,
	fall.OutcomeTooSoon,
	fall.OutcomeTooOld,
	fall.OutcomeUncorrelated,
	fall.OutcomeDegenerate,
}

// RenderHTML writes an interactive timeline of the recorded samples: lean
// angle with the fall threshold marked, and a histogram of frame outcomes.
func (ap *AnglePlotter) RenderHTML(w io.Writer) error {
	ap.mu.Lock()
	samples := append([]AngleSample(nil), ap.samples...)
	streamID, fallAngle := ap.streamID, ap.fallAngle
	ap.mu.Unlock()

	x := make([]string, 0, len(samples))
	angles := make([]opts.LineData, 0, len(samples))
	falls := make([]opts.LineData, 0, len(samples))
	counts := make(map[fall.Outcome]int)
	for _, s := range samples {
		x = append(x, strconv.Itoa(s.FrameIdx))
		counts[s.Outcome]++
		if !s.Valid {
			angles = append(angles, opts.LineData{Value: "-"})
			falls = append(falls, opts.LineData{Value: "-"})
			continue
		}
		angles = append(angles, opts.LineData{Value: s.Angle})
		if s.Outcome == fall.OutcomeFall {
			falls = append(falls, opts.LineData{Value: s.Angle, Symbol: "pin", SymbolSize: 20})
		} else {
			falls = append(falls, opts.LineData{Value: "-"})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Lean Angle Timeline", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Lean Angle", Subtitle: fmt.Sprintf("stream=%s frames=%d", streamID, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 90, Name: "Angle (°)", NameLocation: "middle", NameGap: 30}),
	)
	line.SetXAxis(x).
		AddSeries("lean angle", angles,
			charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false), ShowSymbol: opts.Bool(true)}),
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "fall threshold", YAxis: fallAngle}),
		).
		AddSeries("FALL", falls,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
			charts.WithLineStyleOpts(opts.LineStyle{Opacity: opts.Float(0)}),
		)

	labels := make([]string, 0, len(outcomeOrder))
	bars := make([]opts.BarData, 0, len(outcomeOrder))
	for _, o := range outcomeOrder {
		labels = append(labels, string(o))
		bars = append(bars, opts.BarData{Value: counts[o]})
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Frame Outcomes"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("frames", bars,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetPageTitle("fallwatch - " + streamID)
	page.AddCharts(line, bar)
	return page.Render(w)
}

// WriteHTML renders the timeline to <outputDir>/<stream>_timeline.html and
// returns the file path.
func (ap *AnglePlotter) WriteHTML() (string, error) {
	dir := ap.GetOutputDir()
	if dir == "" {
		return "", fmt.Errorf("no output directory configured")
	}
	path := filepath.Join(dir, ap.streamID+"_timeline.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create timeline: %w", err)
	}
	if err := ap.RenderHTML(f); err != nil {
		f.Close()
		return "", fmt.Errorf("render timeline: %w", err)
	}
	return path, f.Close()
}
