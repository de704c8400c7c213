package fall

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/banshee-data/fallwatch/internal/monitoring"
	"github.com/banshee-data/fallwatch/internal/pose"
	"github.com/banshee-data/fallwatch/internal/timeutil"
)

// Config holds the tunable thresholds of the classifier.
type Config struct {
	// Bounds on the elapsed time between compared frames. Pairs outside
	// [Min, Max] are inconclusive.
	MinTimeBetweenFrames time.Duration
	MaxTimeBetweenFrames time.Duration

	// FallAngleDegrees is the lean from vertical above which the current
	// frame counts as fallen.
	FallAngleDegrees float64

	// ConfidenceThreshold gates both keypoint qualification and the
	// verdict confidence.
	ConfidenceThreshold float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinTimeBetweenFrames: time.Second,
		MaxTimeBetweenFrames: 10 * time.Second,
		FallAngleDegrees:     60,
		ConfidenceThreshold:  0.6,
	}
}

// Validate checks the thresholds are usable.
func (c Config) Validate() error {
	if c.MinTimeBetweenFrames < 0 {
		return fmt.Errorf("min time between frames must be non-negative, got %v", c.MinTimeBetweenFrames)
	}
	if c.MaxTimeBetweenFrames < c.MinTimeBetweenFrames {
		return fmt.Errorf("max time between frames (%v) must be >= min (%v)", c.MaxTimeBetweenFrames, c.MinTimeBetweenFrames)
	}
	if c.FallAngleDegrees <= 0 || c.FallAngleDegrees >= 90 {
		return fmt.Errorf("fall angle must be in (0, 90) degrees, got %v", c.FallAngleDegrees)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("confidence threshold must be in [0, 1), got %v", c.ConfidenceThreshold)
	}
	return nil
}

// PoseDetector produces a pose for one frame. *pose.Detector satisfies it.
type PoseDetector interface {
	Detect(ctx context.Context, img image.Image) (*pose.Detection, error)
}

// Classifier decides whether a body fell between consecutive frames.
// Not safe for concurrent use.
type Classifier struct {
	detector PoseDetector
	cfg      Config
	clock    timeutil.Clock
	window   *Window
	observer Observer
}

// NewClassifier returns a classifier reading the real clock.
func NewClassifier(detector PoseDetector, cfg Config) (*Classifier, error) {
	return NewClassifierWithClock(detector, cfg, timeutil.RealClock{})
}

// NewClassifierWithClock returns a classifier reading time from clock.
func NewClassifierWithClock(detector PoseDetector, cfg Config, clock timeutil.Clock) (*Classifier, error) {
	if detector == nil {
		return nil, fmt.Errorf("nil pose detector")
	}
	if clock == nil {
		return nil, fmt.Errorf("nil clock")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}
	return &Classifier{
		detector: detector,
		cfg:      cfg,
		clock:    clock,
		window:   NewWindow(),
	}, nil
}

// SetObserver attaches o to receive one Observation per processed frame.
func (c *Classifier) SetObserver(o Observer) {
	c.observer = o
}

// Config returns the classifier's thresholds.
func (c *Classifier) Config() Config {
	return c.cfg
}

// State returns how many prior frames are available for comparison.
func (c *Classifier) State() WindowState {
	return c.window.State()
}

// Process classifies one frame. A nil image passes through as an empty
// Sample. Detection errors are returned and leave the history untouched;
// every other outcome yields a Sample, with a Verdict only on a fall.
func (c *Classifier) Process(ctx context.Context, img image.Image) (*Sample, error) {
	if img == nil {
		return &Sample{}, nil
	}

	det, err := c.detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()

	sample := &Sample{Image: img, Thumbnail: det.Thumbnail, CapturedAt: now, InferenceTime: det.InferenceTime}
	lean, ok := pose.LeanAngle(det.Pose, c.cfg.ConfidenceThreshold)
	rec := &FrameRecord{
		Pose:       det.Pose,
		Lean:       lean,
		Valid:      ok,
		CapturedAt: now,
		Image:      img,
		Thumbnail:  det.Thumbnail,
	}

	if rec.Degenerate() {
		c.window.Push(rec)
		monitoring.Debugf("fall: degenerate frame at %s (pose score %.2f), history cleared", now.Format(time.RFC3339Nano), det.Pose.Score)
		c.observe(rec, ErrDegenerate)
		return sample, nil
	}

	reason := ErrNoHistory
	for i, prev := range c.window.Candidates() {
		v, err := c.compare(prev, rec)
		if err != nil {
			monitoring.Debugf("fall: t-%d inconclusive: %v", i+1, err)
			reason = err
			continue
		}
		v.FramesBack = i + 1
		sample.Verdicts = []Verdict{v}
		c.window.Clear()
		monitoring.Logf("fall detected: angle %.1f° confidence %.2f (%s side, t-%d, %v apart)",
			v.LeaningAngle, v.Confidence, v.KeypointCorr.Side, v.FramesBack, v.Elapsed)
		c.observe(rec, nil)
		return sample, nil
	}

	c.window.Push(rec)
	c.observe(rec, reason)
	return sample, nil
}

// compare decides whether cur shows a fall relative to prev. The returned
// error names why not.
func (c *Classifier) compare(prev, cur *FrameRecord) (Verdict, error) {
	elapsed := cur.CapturedAt.Sub(prev.CapturedAt)
	if elapsed < c.cfg.MinTimeBetweenFrames {
		return Verdict{}, fmt.Errorf("%w (%v < %v)", ErrTooSoon, elapsed, c.cfg.MinTimeBetweenFrames)
	}
	if elapsed > c.cfg.MaxTimeBetweenFrames {
		return Verdict{}, fmt.Errorf("%w (%v > %v)", ErrTooOld, elapsed, c.cfg.MaxTimeBetweenFrames)
	}
	if prev.Degenerate() || prev.Lean.Side != cur.Lean.Side {
		return Verdict{}, fmt.Errorf("%w (previous %s, current %s)", ErrUncorrelated, prev.Lean.Side, cur.Lean.Side)
	}

	angle := cur.Lean.Angle
	confidence := (prev.Lean.Confidence + cur.Lean.Confidence) / 2
	switch {
	case angle <= c.cfg.FallAngleDegrees:
		return Verdict{}, fmt.Errorf("%w: angle %.1f° not above %.1f°", ErrNoFall, angle, c.cfg.FallAngleDegrees)
	case confidence <= c.cfg.ConfidenceThreshold:
		return Verdict{}, fmt.Errorf("%w: confidence %.2f not above %.2f", ErrNoFall, confidence, c.cfg.ConfidenceThreshold)
	case angle <= prev.Lean.Angle:
		return Verdict{}, fmt.Errorf("%w: angle %.1f° did not increase from %.1f°", ErrNoFall, angle, prev.Lean.Angle)
	}

	return Verdict{
		Label:        LabelFall,
		Confidence:   confidence,
		LeaningAngle: angle,
		KeypointCorr: KeypointCorr{
			Side:     cur.Lean.Side,
			Previous: KeypointPair{Shoulder: prev.Lean.Shoulder, Hip: prev.Lean.Hip},
			Current:  KeypointPair{Shoulder: cur.Lean.Shoulder, Hip: cur.Lean.Hip},
		},
		Elapsed: elapsed,
	}, nil
}

func (c *Classifier) observe(rec *FrameRecord, reason error) {
	if c.observer == nil {
		return
	}
	obs := Observation{
		CapturedAt: rec.CapturedAt,
		PoseScore:  rec.Pose.Score,
		Outcome:    OutcomeFor(reason),
		Reason:     reason,
		Window:     c.window.State(),
	}
	if rec.Valid {
		obs.Angle = rec.Lean.Angle
		obs.SideConfidence = rec.Lean.Confidence
	}
	c.observer.Observe(obs)
}
