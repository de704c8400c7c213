package pose

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fallwatch/internal/imageproc"
	"github.com/banshee-data/fallwatch/internal/inference"
)

// heatmapOutputs builds a 9x9 PoseNet-style output with every channel
// peaking at (row, col) and the given offsets at that cell.
func heatmapOutputs(gh, gw, row, col int, peak, offY, offX float32) []*inference.Tensor {
	heat := make([]float32, gh*gw*NumKeypoints)
	for i := range heat {
		heat[i] = -4
	}
	off := make([]float32, gh*gw*2*NumKeypoints)
	cell := row*gw + col
	for k := 0; k < NumKeypoints; k++ {
		heat[cell*NumKeypoints+k] = peak
		off[cell*2*NumKeypoints+k] = offY
		off[cell*2*NumKeypoints+NumKeypoints+k] = offX
	}
	return []*inference.Tensor{
		{Shape: []int{1, gh, gw, NumKeypoints}, Type: inference.Float32, Float32: heat},
		{Shape: []int{1, gh, gw, 2 * NumKeypoints}, Type: inference.Float32, Float32: off},
	}
}

func cloneTensors(in []*inference.Tensor) []*inference.Tensor {
	out := make([]*inference.Tensor, len(in))
	for i, t := range in {
		c := *t
		c.Shape = append([]int(nil), t.Shape...)
		c.Float32 = append([]float32(nil), t.Float32...)
		c.Uint8 = append([]uint8(nil), t.Uint8...)
		out[i] = &c
	}
	return out
}

func TestNewDecoder(t *testing.T) {
	tests := []struct {
		strategy string
		want     string
		wantErr  bool
	}{
		{"heatmap", StrategyHeatmap, false},
		{"PoseNet", StrategyHeatmap, false},
		{"mobilenet", StrategyHeatmap, false},
		{"regression", StrategyRegression, false},
		{" movenet ", StrategyRegression, false},
		{"yolo", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			d, err := NewDecoder(tt.strategy, DefaultDecoderConfig())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestHeatmapDecoder_PeakRoundTrip(t *testing.T) {
	const size, grid = 257, 9
	dec := &HeatmapDecoder{cfg: DefaultDecoderConfig()}
	assert.Equal(t, imageproc.NormalizeSymmetric, dec.Normalization())

	row, col := 3, 5
	outputs := heatmapOutputs(grid, grid, row, col, 3.0, 5, -4)

	p, err := dec.Decode(outputs, size, size)
	require.NoError(t, err)

	stride := gridStride(size, grid)
	assert.Equal(t, 32.0, stride)
	wantX, wantY := float64(col)*stride, float64(row)*stride
	for _, kp := range p.Keypoints {
		assert.InDelta(t, wantX, kp.X, stride, "%s x", kp.Name)
		assert.InDelta(t, wantY, kp.Y, stride, "%s y", kp.Name)
		assert.InDelta(t, wantX-4, kp.X, 1e-6)
		assert.InDelta(t, wantY+5, kp.Y, 1e-6)
		assert.InDelta(t, 1/(1+math.Exp(-3)), kp.Confidence, 1e-6)
	}
	assert.Equal(t, 1.0, p.Score)
	assert.Equal(t, LeftHip, p.Keypoint(LeftHip).Name)
}

func TestHeatmapDecoder_LowPeakClearsConfidence(t *testing.T) {
	dec := &HeatmapDecoder{cfg: DefaultDecoderConfig()}
	// sigmoid(0) = 0.5, below the 0.6 default threshold.
	outputs := heatmapOutputs(9, 9, 4, 4, 0, 0, 0)

	p, err := dec.Decode(outputs, 257, 257)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Score)
	for _, kp := range p.Keypoints {
		assert.Equal(t, 0.0, kp.Confidence)
	}
}

func TestHeatmapDecoder_OutOfBoundsNotScored(t *testing.T) {
	dec := &HeatmapDecoder{cfg: DefaultDecoderConfig()}
	// Peak at the origin cell with a negative offset lands outside the template.
	outputs := heatmapOutputs(9, 9, 0, 0, 4, -3, -3)

	p, err := dec.Decode(outputs, 257, 257)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Score)
	assert.Equal(t, -3.0, p.Keypoint(Nose).X)
}

func TestHeatmapDecoder_DoesNotMutateInputs(t *testing.T) {
	dec := &HeatmapDecoder{cfg: DefaultDecoderConfig()}
	outputs := heatmapOutputs(9, 9, 2, 7, 2.5, 1, 1)
	before := cloneTensors(outputs)

	_, err := dec.Decode(outputs, 257, 257)
	require.NoError(t, err)

	if diff := cmp.Diff(before, outputs); diff != "" {
		t.Errorf("Decode mutated its inputs (-before +after):\n%s", diff)
	}
}

func TestHeatmapDecoder_ShapeErrors(t *testing.T) {
	dec := &HeatmapDecoder{cfg: DefaultDecoderConfig()}
	good := heatmapOutputs(9, 9, 0, 0, 1, 0, 0)

	_, err := dec.Decode(good[:1], 257, 257)
	assert.Error(t, err)

	badOffsets := cloneTensors(good)
	badOffsets[1].Shape = []int{1, 9, 9, NumKeypoints}
	badOffsets[1].Float32 = badOffsets[1].Float32[:9*9*NumKeypoints]
	_, err = dec.Decode(badOffsets, 257, 257)
	assert.ErrorIs(t, err, inference.ErrShapeMismatch)

	badHeat := cloneTensors(good)
	badHeat[0].Shape = []int{1, 9, 9 * NumKeypoints}
	_, err = dec.Decode(badHeat, 257, 257)
	assert.ErrorIs(t, err, inference.ErrShapeMismatch)
}

func TestRegressionDecoder_Rescales(t *testing.T) {
	dec := &RegressionDecoder{cfg: DefaultDecoderConfig()}
	assert.Equal(t, imageproc.NormalizeNone, dec.Normalization())

	data := make([]float32, NumKeypoints*3)
	// left_shoulder at y=0.5, x=0.25
	data[int(LeftShoulder)*3+0] = 0.5
	data[int(LeftShoulder)*3+1] = 0.25
	data[int(LeftShoulder)*3+2] = 0.8
	outputs := []*inference.Tensor{{Shape: []int{1, 1, NumKeypoints, 3}, Type: inference.Float32, Float32: data}}

	p, err := dec.Decode(outputs, 200, 100)
	require.NoError(t, err)

	ls := p.Keypoint(LeftShoulder)
	assert.InDelta(t, 50.0, ls.X, 1e-4)
	assert.InDelta(t, 50.0, ls.Y, 1e-4)
	assert.InDelta(t, 0.8, ls.Confidence, 1e-6)
	assert.InDelta(t, 1.0/NumKeypoints, p.Score, 1e-9)
}

func TestRegressionDecoder_UsesFirstInstance(t *testing.T) {
	dec := &RegressionDecoder{cfg: DefaultDecoderConfig()}
	data := make([]float32, 2*NumKeypoints*3)
	data[0], data[1] = 0.5, 0.5 // instance 0 nose position
	data[2] = 0.9               // instance 0 nose score
	data[NumKeypoints*3+2] = 0.1
	outputs := []*inference.Tensor{{Shape: []int{1, 2, NumKeypoints, 3}, Type: inference.Float32, Float32: data}}

	p, err := dec.Decode(outputs, 100, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, p.Keypoint(Nose).Confidence, 1e-6)
}

func TestRegressionDecoder_ZeroInstances(t *testing.T) {
	dec := &RegressionDecoder{cfg: DefaultDecoderConfig()}
	outputs := []*inference.Tensor{{Shape: []int{1, 0, NumKeypoints, 3}, Type: inference.Float32}}

	p, err := dec.Decode(outputs, 192, 192)
	require.NoError(t, err)
	if diff := cmp.Diff(ZeroPose(), p); diff != "" {
		t.Errorf("zero-instance decode mismatch (-want +got):\n%s", diff)
	}
}

func TestRegressionDecoder_Errors(t *testing.T) {
	dec := &RegressionDecoder{cfg: DefaultDecoderConfig()}

	_, err := dec.Decode(nil, 192, 192)
	assert.Error(t, err)

	_, err = dec.Decode([]*inference.Tensor{{Shape: []int{1, 1, 17, 2}, Type: inference.Float32, Float32: make([]float32, 34)}}, 192, 192)
	assert.ErrorIs(t, err, inference.ErrShapeMismatch)
}

func TestKeypointName_Text(t *testing.T) {
	b, err := RightAnkle.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "right_ankle", string(b))

	var k KeypointName
	require.NoError(t, k.UnmarshalText([]byte("left_hip")))
	assert.Equal(t, LeftHip, k)

	assert.Error(t, k.UnmarshalText([]byte("tail")))
	assert.Equal(t, "keypoint(42)", KeypointName(42).String())
	_, err = KeypointName(-1).MarshalText()
	assert.Error(t, err)
}
