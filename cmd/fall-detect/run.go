package main

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/fallwatch/internal/config"
	"github.com/banshee-data/fallwatch/internal/fall"
	"github.com/banshee-data/fallwatch/internal/inference"
	"github.com/banshee-data/fallwatch/internal/monitor"
	"github.com/banshee-data/fallwatch/internal/monitoring"
	"github.com/banshee-data/fallwatch/internal/pose"
	"github.com/banshee-data/fallwatch/internal/store"
	"github.com/banshee-data/fallwatch/internal/timeutil"
)

// replayEpoch anchors the simulated capture clock so reports are
// reproducible across runs.
var replayEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type runOptions struct {
	Interval time.Duration
	YAMLPath string
	PlotDir  string

	// DBPath enables the sample store when non-empty.
	DBPath  string
	DataDir string
}

type frameReport struct {
	Image         string        `yaml:"image"`
	CapturedAt    time.Time     `yaml:"captured_at"`
	InferenceTime time.Duration `yaml:"inference_time"`
	Verdict       *fall.Verdict `yaml:"verdict,omitempty"`
}

type report struct {
	Frames []frameReport `yaml:"frames"`
}

// Fall reports whether any frame produced a verdict.
func (r *report) Fall() bool {
	for _, f := range r.Frames {
		if f.Verdict != nil {
			return true
		}
	}
	return false
}

func run(ctx context.Context, engine inference.Engine, tuning *config.TuningConfig, opts runOptions, paths []string, out io.Writer) (*report, error) {
	if opts.Interval < 0 {
		return nil, fmt.Errorf("interval must be non-negative, got %v", opts.Interval)
	}

	decoder, err := pose.NewDecoder(tuning.GetDecoder(), tuning.DecoderConfig())
	if err != nil {
		return nil, err
	}
	detector, err := pose.NewDetector(engine, decoder)
	if err != nil {
		return nil, err
	}
	clock := timeutil.NewMockClock(replayEpoch)
	classifier, err := fall.NewClassifierWithClock(detector, tuning.FallConfig(), clock)
	if err != nil {
		return nil, err
	}

	var plotter *monitor.AnglePlotter
	if opts.PlotDir != "" {
		plotter = monitor.NewAnglePlotter("fall-detect", tuning.GetFallAngleDegrees())
		dir := monitor.MakePlotOutputDir(opts.PlotDir, "fall-detect", time.Now())
		if err := plotter.Start(dir); err != nil {
			return nil, err
		}
		classifier.SetObserver(plotter)
		// Deferred so frames recorded before a failure still get plotted.
		defer writePlots(plotter, out)
	}

	var st *store.Store
	if opts.DBPath != "" {
		st, err = store.Open(opts.DBPath, store.Config{
			DataDir:          opts.DataDir,
			PositiveInterval: tuning.GetPositiveInterval(),
			IdleInterval:     tuning.GetIdleInterval(),
		})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		st.SetClock(clock)
	}

	rep := &report{}
	for i, path := range paths {
		if i > 0 {
			clock.Advance(opts.Interval)
		}
		img, err := loadImage(path)
		if err != nil {
			return nil, err
		}
		sample, err := classifier.Process(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if st != nil {
			st.Process(ctx, sample)
		}

		fr := frameReport{
			Image:         filepath.Base(path),
			CapturedAt:    clock.Now(),
			InferenceTime: sample.InferenceTime,
		}
		if v, ok := sample.Verdict(); ok {
			fr.Verdict = &v
		}
		rep.Frames = append(rep.Frames, fr)
		printFrame(out, i, fr)
	}

	if opts.YAMLPath != "" {
		if err := writeYAML(opts.YAMLPath, rep); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

// writePlots stops recording and renders whatever the plotter has seen.
func writePlots(plotter *monitor.AnglePlotter, out io.Writer) {
	plotter.Stop()
	n, err := plotter.GeneratePlots()
	if err != nil {
		monitoring.Logf("plot generation failed: %v", err)
	}
	html, err := plotter.WriteHTML()
	if err != nil {
		monitoring.Logf("timeline generation failed: %v", err)
		return
	}
	fmt.Fprintf(out, "wrote %d plot(s) and %s to %s\n", n, filepath.Base(html), plotter.GetOutputDir())
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func printFrame(w io.Writer, idx int, fr frameReport) {
	if fr.Verdict == nil {
		fmt.Fprintf(w, "[%d] %s: no fall (inference %v)\n", idx, fr.Image, fr.InferenceTime)
		return
	}
	v := fr.Verdict
	c := v.KeypointCorr
	fmt.Fprintf(w, "[%d] %s: %s confidence=%.3f angle=%.1f° side=%s frames_back=%d (inference %v)\n",
		idx, fr.Image, v.Label, v.Confidence, v.LeaningAngle, c.Side, v.FramesBack, fr.InferenceTime)
	fmt.Fprintf(w, "    previous shoulder=(%.1f,%.1f) hip=(%.1f,%.1f)\n",
		c.Previous.Shoulder.X, c.Previous.Shoulder.Y, c.Previous.Hip.X, c.Previous.Hip.Y)
	fmt.Fprintf(w, "    current  shoulder=(%.1f,%.1f) hip=(%.1f,%.1f)\n",
		c.Current.Shoulder.X, c.Current.Shoulder.Y, c.Current.Hip.X, c.Current.Hip.Y)
}

func writeYAML(path string, rep *report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		f.Close()
		return fmt.Errorf("encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
