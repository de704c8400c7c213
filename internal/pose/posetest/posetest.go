// Package posetest builds synthetic model outputs and scripted engines for
// exercising the decoder and classifier without a real model.
package posetest

import (
	"context"
	"fmt"

	"github.com/banshee-data/fallwatch/internal/inference"
	"github.com/banshee-data/fallwatch/internal/pose"
)

// Point is a keypoint position in template pixels with its score.
type Point struct {
	X, Y, Score float64
}

// Body maps keypoints to synthetic positions. Keypoints not present decode
// with zero confidence.
type Body map[pose.KeypointName]Point

// Upright returns a standing torso centred in a width x height template,
// with shoulders and hips on both sides scored at score.
func Upright(width, height int, score float64) Body {
	cx := float64(width) / 2
	return Body{
		pose.Nose:          {X: cx, Y: 0.1 * float64(height), Score: score},
		pose.LeftShoulder:  {X: cx + 8, Y: 0.25 * float64(height), Score: score},
		pose.RightShoulder: {X: cx - 8, Y: 0.25 * float64(height), Score: score},
		pose.LeftHip:       {X: cx + 6, Y: 0.6 * float64(height), Score: score},
		pose.RightHip:      {X: cx - 6, Y: 0.6 * float64(height), Score: score},
	}
}

// Fallen returns a torso lying close to horizontal.
func Fallen(width, height int, score float64) Body {
	cy := 0.7 * float64(height)
	return Body{
		pose.Nose:          {X: 0.1 * float64(width), Y: cy, Score: score},
		pose.LeftShoulder:  {X: 0.25 * float64(width), Y: cy - 4, Score: score},
		pose.RightShoulder: {X: 0.25 * float64(width), Y: cy + 4, Score: score},
		pose.LeftHip:       {X: 0.65 * float64(width), Y: cy + 2, Score: score},
		pose.RightHip:      {X: 0.65 * float64(width), Y: cy + 10, Score: score},
	}
}

// Leaning returns a torso tilted by roughly the given dx over a fixed
// vertical span, useful for intermediate frames.
func Leaning(width, height int, dx, score float64) Body {
	cx := float64(width) / 2
	top, bottom := 0.3*float64(height), 0.6*float64(height)
	return Body{
		pose.LeftShoulder:  {X: cx, Y: top, Score: score},
		pose.RightShoulder: {X: cx - 10, Y: top, Score: score},
		pose.LeftHip:       {X: cx + dx, Y: bottom, Score: score},
		pose.RightHip:      {X: cx - 10 + dx, Y: bottom, Score: score},
	}
}

// With returns a copy of b with the given keypoints overridden.
func (b Body) With(overrides Body) Body {
	out := make(Body, len(b)+len(overrides))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// RegressionOutputs encodes bodies as a [1, N, 17, 3] MoveNet-style output.
func RegressionOutputs(width, height int, bodies ...Body) []*inference.Tensor {
	data := make([]float32, 0, len(bodies)*pose.NumKeypoints*3)
	for _, b := range bodies {
		for k := 0; k < pose.NumKeypoints; k++ {
			p, ok := b[pose.KeypointName(k)]
			if !ok {
				data = append(data, 0, 0, 0)
				continue
			}
			data = append(data,
				float32(p.Y/float64(height)),
				float32(p.X/float64(width)),
				float32(p.Score))
		}
	}
	return []*inference.Tensor{{
		Shape:   []int{1, len(bodies), pose.NumKeypoints, 3},
		Type:    inference.Float32,
		Float32: data,
	}}
}

// ScriptedEngine returns pre-built outputs in order, one set per Invoke.
type ScriptedEngine struct {
	Spec    inference.TensorSpec
	Outputs [][]*inference.Tensor
	Err     error

	Calls  int
	Inputs []*inference.Tensor
}

// NewScriptedEngine returns an engine with a float32 [1, height, width, 3]
// input spec.
func NewScriptedEngine(width, height int, outputs ...[]*inference.Tensor) *ScriptedEngine {
	return &ScriptedEngine{
		Spec:    inference.TensorSpec{Shape: []int{1, height, width, 3}, Type: inference.Float32},
		Outputs: outputs,
	}
}

// InputSpec implements inference.Engine.
func (e *ScriptedEngine) InputSpec() inference.TensorSpec { return e.Spec }

// Invoke implements inference.Engine.
func (e *ScriptedEngine) Invoke(ctx context.Context, input *inference.Tensor) ([]*inference.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.Inputs = append(e.Inputs, input)
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Calls >= len(e.Outputs) {
		return nil, fmt.Errorf("scripted engine exhausted after %d calls", e.Calls)
	}
	out := e.Outputs[e.Calls]
	e.Calls++
	return out, nil
}
