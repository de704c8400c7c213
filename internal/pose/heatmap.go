package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/fallwatch/internal/imageproc"
	"github.com/banshee-data/fallwatch/internal/inference"
)

// HeatmapDecoder decodes PoseNet-style outputs: a [1, gh, gw, 17] heatmap
// and a [1, gh, gw, 34] offset field whose first 17 channels are y offsets
// and last 17 are x offsets, both in template pixels.
type HeatmapDecoder struct {
	cfg DecoderConfig
}

// Name returns StrategyHeatmap.
func (d *HeatmapDecoder) Name() string { return StrategyHeatmap }

// Normalization returns NormalizeSymmetric; PoseNet float models expect -1..1.
func (d *HeatmapDecoder) Normalization() imageproc.Normalization {
	return imageproc.NormalizeSymmetric
}

// Decode locates the peak cell of each heatmap channel, maps it onto the
// template by the grid stride and refines it with the offset vector sampled
// at that cell. Confidence is the sigmoid of the peak activation.
func (d *HeatmapDecoder) Decode(outputs []*inference.Tensor, width, height int) (Pose, error) {
	if len(outputs) < 2 {
		return Pose{}, fmt.Errorf("heatmap decoder needs heatmap and offset tensors, got %d outputs", len(outputs))
	}
	heatmaps, offsets := outputs[0], outputs[1]
	if err := requireShape(heatmaps, "heatmaps", 1, -1, -1, NumKeypoints); err != nil {
		return Pose{}, err
	}
	gh, gw := heatmaps.Shape[1], heatmaps.Shape[2]
	if err := requireShape(offsets, "offsets", 1, gh, gw, 2*NumKeypoints); err != nil {
		return Pose{}, err
	}
	if gh < 1 || gw < 1 {
		return Pose{}, fmt.Errorf("heatmaps: %w: empty grid %dx%d", inference.ErrShapeMismatch, gw, gh)
	}

	strideY := gridStride(height, gh)
	strideX := gridStride(width, gw)

	var raw [NumKeypoints]Keypoint
	channel := make([]float64, gh*gw)
	for k := 0; k < NumKeypoints; k++ {
		for cell := range channel {
			channel[cell] = heatmaps.At(cell*NumKeypoints + k)
		}
		peak := floats.MaxIdx(channel)
		row, col := peak/gw, peak%gw

		offBase := peak * 2 * NumKeypoints
		offY := offsets.At(offBase + k)
		offX := offsets.At(offBase + NumKeypoints + k)

		raw[k] = Keypoint{
			Name:       KeypointName(k),
			X:          float64(col)*strideX + offX,
			Y:          float64(row)*strideY + offY,
			Confidence: sigmoid(channel[peak]),
		}
	}
	return scorePose(raw, width, height, d.cfg.ConfidenceThreshold), nil
}

// gridStride is the template-pixel distance between adjacent grid cells.
// A 257px template with a 9-cell grid has stride 32.
func gridStride(size, cells int) float64 {
	if cells <= 1 {
		return 0
	}
	return float64(size-1) / float64(cells-1)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
