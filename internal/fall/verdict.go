package fall

import (
	"image"
	"time"

	"github.com/banshee-data/fallwatch/internal/pose"
)

// LabelFall is the only label the classifier emits.
const LabelFall = "FALL"

// KeypointPair is the shoulder and hip of one body side in one frame.
type KeypointPair struct {
	Shoulder pose.Keypoint `json:"shoulder" yaml:"shoulder"`
	Hip      pose.Keypoint `json:"hip" yaml:"hip"`
}

// KeypointCorr is the body side that was matched across the compared frames.
type KeypointCorr struct {
	Side     pose.Side    `json:"side" yaml:"side"`
	Previous KeypointPair `json:"previous" yaml:"previous"`
	Current  KeypointPair `json:"current" yaml:"current"`
}

// Verdict is the classifier's fall decision for one frame.
type Verdict struct {
	Label        string       `json:"label" yaml:"label"`
	Confidence   float64      `json:"confidence" yaml:"confidence"`
	LeaningAngle float64      `json:"leaning_angle" yaml:"leaning_angle"`
	KeypointCorr KeypointCorr `json:"keypoint_corr" yaml:"keypoint_corr"`

	// FramesBack is 1 when compared with the immediate predecessor and 2
	// when the comparison fell back to the frame before it.
	FramesBack int           `json:"frames_back" yaml:"frames_back"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Sample is what Process hands downstream for every frame.
type Sample struct {
	Image      image.Image `json:"-" yaml:"-"`
	Thumbnail  *image.RGBA `json:"-" yaml:"-"`
	CapturedAt time.Time   `json:"captured_at,omitzero" yaml:"captured_at,omitempty"`

	// InferenceTime is the engine call duration for this frame.
	InferenceTime time.Duration `json:"inference_time,omitempty" yaml:"inference_time,omitempty"`

	// Verdicts is empty when no fall was decided, otherwise it holds
	// exactly one entry.
	Verdicts []Verdict `json:"verdicts" yaml:"verdicts"`
}

// Verdict returns the sample's verdict, if any.
func (s *Sample) Verdict() (Verdict, bool) {
	if s == nil || len(s.Verdicts) == 0 {
		return Verdict{}, false
	}
	return s.Verdicts[0], true
}

// Empty reports whether the sample carries no image.
func (s *Sample) Empty() bool {
	return s == nil || s.Image == nil
}
