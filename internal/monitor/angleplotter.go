// Package monitor records the classifier's per-frame lean angle and renders
// it as PNG plots (gonum/plot) or an HTML timeline (go-echarts) for tuning
// thresholds against recorded footage.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/fallwatch/internal/fall"
)

// AngleSample is one processed frame as seen by the plotter.
type AngleSample struct {
	FrameIdx  int
	Timestamp time.Time

	// Valid is false for degenerate frames; Angle and SideConfidence are
	// then zero.
	Valid          bool
	Angle          float64
	SideConfidence float64
	PoseScore      float64

	Outcome fall.Outcome
}

var _ fall.Observer = (*AnglePlotter)(nil)

// AnglePlotter implements fall.Observer, accumulating a lean-angle time
// series that can be plotted after a run.
type AnglePlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	streamID  string
	fallAngle float64

	samples  []AngleSample
	frameIdx int
}

// NewAnglePlotter creates a plotter for one stream. fallAngle is drawn as a
// reference line.
func NewAnglePlotter(streamID string, fallAngle float64) *AnglePlotter {
	return &AnglePlotter{
		streamID:  streamID,
		fallAngle: fallAngle,
	}
}

// Start enables recording into outputDir, discarding earlier samples.
func (ap *AnglePlotter) Start(outputDir string) error {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	ap.outputDir = outputDir
	ap.enabled = true
	ap.frameIdx = 0
	ap.samples = nil
	return nil
}

// Stop disables recording. Samples are kept for GeneratePlots.
func (ap *AnglePlotter) Stop() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (ap *AnglePlotter) IsEnabled() bool {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.enabled
}

// Observe implements fall.Observer.
func (ap *AnglePlotter) Observe(o fall.Observation) {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if !ap.enabled {
		return
	}
	ap.frameIdx++
	ap.samples = append(ap.samples, AngleSample{
		FrameIdx:       ap.frameIdx,
		Timestamp:      o.CapturedAt,
		Valid:          o.Outcome != fall.OutcomeDegenerate,
		Angle:          o.Angle,
		SideConfidence: o.SideConfidence,
		PoseScore:      o.PoseScore,
		Outcome:        o.Outcome,
	})
}

// Samples returns a copy of the recorded samples.
func (ap *AnglePlotter) Samples() []AngleSample {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return append([]AngleSample(nil), ap.samples...)
}

// GetOutputDir returns the current output directory.
func (ap *AnglePlotter) GetOutputDir() string {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.outputDir
}

var (
	angleColor      = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	thresholdColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	confidenceColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	scoreColor      = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// GeneratePlots writes <stream>_angle.png and <stream>_confidence.png.
// Returns the number of plots written.
func (ap *AnglePlotter) GeneratePlots() (int, error) {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if ap.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(ap.samples) == 0 {
		return 0, nil
	}

	if err := ap.generateAnglePlot(); err != nil {
		return 0, err
	}
	if err := ap.generateConfidencePlot(); err != nil {
		return 1, err
	}
	return 2, nil
}

func (ap *AnglePlotter) generateAnglePlot() error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Lean Angle", ap.streamID)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Angle from vertical (°)"
	p.Y.Min = 0
	p.Y.Max = 90

	anglePts := make(plotter.XYs, 0, len(ap.samples))
	var fallPts plotter.XYs
	for _, s := range ap.samples {
		if !s.Valid {
			continue
		}
		anglePts = append(anglePts, plotter.XY{X: float64(s.FrameIdx), Y: s.Angle})
		if s.Outcome == fall.OutcomeFall {
			fallPts = append(fallPts, plotter.XY{X: float64(s.FrameIdx), Y: s.Angle})
		}
	}

	if len(anglePts) > 0 {
		line, err := plotter.NewLine(anglePts)
		if err != nil {
			return err
		}
		line.Color = angleColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("lean angle", line)
	}

	first, last := float64(ap.samples[0].FrameIdx), float64(ap.samples[len(ap.samples)-1].FrameIdx)
	threshold, err := plotter.NewLine(plotter.XYs{{X: first, Y: ap.fallAngle}, {X: last, Y: ap.fallAngle}})
	if err != nil {
		return err
	}
	threshold.Color = thresholdColor
	threshold.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(threshold)
	p.Legend.Add("fall threshold", threshold)

	if len(fallPts) > 0 {
		sc, err := plotter.NewScatter(fallPts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = thresholdColor
		sc.GlyphStyle.Shape = draw.CrossGlyph{}
		sc.GlyphStyle.Radius = vg.Points(5)
		p.Add(sc)
		p.Legend.Add("FALL", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(ap.outputDir, fmt.Sprintf("%s_angle.png", ap.streamID))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save angle plot: %w", err)
	}
	return nil
}

func (ap *AnglePlotter) generateConfidencePlot() error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Keypoint Confidence", ap.streamID)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Confidence"
	p.Y.Min = 0
	p.Y.Max = 1

	confPts := make(plotter.XYs, 0, len(ap.samples))
	scorePts := make(plotter.XYs, 0, len(ap.samples))
	for _, s := range ap.samples {
		// Pose score is meaningful even on degenerate frames.
		scorePts = append(scorePts, plotter.XY{X: float64(s.FrameIdx), Y: s.PoseScore})
		if s.Valid {
			confPts = append(confPts, plotter.XY{X: float64(s.FrameIdx), Y: s.SideConfidence})
		}
	}

	for _, series := range []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{
		{"side confidence", confPts, confidenceColor},
		{"pose score", scorePts, scoreColor},
	} {
		if len(series.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(series.pts)
		if err != nil {
			return err
		}
		line.Color = series.c
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(series.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(ap.outputDir, fmt.Sprintf("%s_confidence.png", ap.streamID))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save confidence plot: %w", err)
	}
	return nil
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir returns plots/<name>/<timestamp> under baseDir, or
// plots/live_<timestamp> when name is empty.
func MakePlotOutputDir(baseDir, name string, now time.Time) string {
	ts := FormatTimestamp(now)
	if name != "" {
		return filepath.Join(baseDir, name, ts)
	}
	return filepath.Join(baseDir, "live_"+ts)
}
