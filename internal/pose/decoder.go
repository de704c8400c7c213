package pose

import (
	"fmt"
	"strings"

	"github.com/banshee-data/fallwatch/internal/imageproc"
	"github.com/banshee-data/fallwatch/internal/inference"
)

// Decoding strategy names accepted by NewDecoder.
const (
	StrategyHeatmap    = "heatmap"
	StrategyRegression = "regression"
)

// DefaultConfidenceThreshold is the keypoint confidence a decoded keypoint
// must exceed to count toward the pose score.
const DefaultConfidenceThreshold = 0.6

// Decoder converts raw model outputs into a Pose in template pixel space.
// Implementations must not modify the output tensors.
type Decoder interface {
	Decode(outputs []*inference.Tensor, width, height int) (Pose, error)

	// Normalization reports how the model expects float inputs scaled.
	Normalization() imageproc.Normalization

	// Name returns the strategy name.
	Name() string
}

// DecoderConfig holds parameters shared by both strategies.
type DecoderConfig struct {
	ConfidenceThreshold float64
}

// DefaultDecoderConfig returns production-default decoder parameters.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{ConfidenceThreshold: DefaultConfidenceThreshold}
}

// NewDecoder returns the decoder for a strategy name. The model family
// names "posenet"/"mobilenet" and "movenet" are accepted as aliases.
func NewDecoder(strategy string, cfg DecoderConfig) (Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyHeatmap, "posenet", "mobilenet":
		return &HeatmapDecoder{cfg: cfg}, nil
	case StrategyRegression, "movenet":
		return &RegressionDecoder{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown decoder strategy %q (want %q or %q)", strategy, StrategyHeatmap, StrategyRegression)
	}
}

// requireShape checks a tensor against an expected shape. A negative entry
// in want matches any size.
func requireShape(t *inference.Tensor, name string, want ...int) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if len(t.Shape) != len(want) {
		return fmt.Errorf("%s: %w: got %v, want rank %d", name, inference.ErrShapeMismatch, t.Shape, len(want))
	}
	for i, w := range want {
		if w >= 0 && t.Shape[i] != w {
			return fmt.Errorf("%s: %w: got %v, dim %d want %d", name, inference.ErrShapeMismatch, t.Shape, i, w)
		}
	}
	return nil
}
