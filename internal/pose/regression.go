package pose

import (
	"fmt"

	"github.com/banshee-data/fallwatch/internal/imageproc"
	"github.com/banshee-data/fallwatch/internal/inference"
)

// RegressionDecoder decodes MoveNet-style outputs: a [1, N, 17, 3] tensor of
// (y, x, score) triples with coordinates as fractions of the template size.
// Only the first instance is used; N == 0 yields ZeroPose.
type RegressionDecoder struct {
	cfg DecoderConfig
}

// Name returns StrategyRegression.
func (d *RegressionDecoder) Name() string { return StrategyRegression }

// Normalization returns NormalizeNone; MoveNet takes raw pixel values.
func (d *RegressionDecoder) Normalization() imageproc.Normalization {
	return imageproc.NormalizeNone
}

// Decode rescales the first instance's keypoints to template pixels.
func (d *RegressionDecoder) Decode(outputs []*inference.Tensor, width, height int) (Pose, error) {
	if len(outputs) < 1 {
		return Pose{}, fmt.Errorf("regression decoder needs a keypoint tensor, got no outputs")
	}
	kps := outputs[0]
	if err := requireShape(kps, "keypoints_with_scores", 1, -1, NumKeypoints, 3); err != nil {
		return Pose{}, err
	}
	if kps.Shape[1] == 0 {
		return ZeroPose(), nil
	}

	var raw [NumKeypoints]Keypoint
	for k := 0; k < NumKeypoints; k++ {
		base := k * 3
		raw[k] = Keypoint{
			Name:       KeypointName(k),
			Y:          kps.At(base) * float64(height),
			X:          kps.At(base+1) * float64(width),
			Confidence: kps.At(base + 2),
		}
	}
	return scorePose(raw, width, height, d.cfg.ConfidenceThreshold), nil
}
