package inference

import (
	"context"
	"errors"
	"fmt"
)

// DataType enumerates the element types an input tensor may carry.
type DataType string

const (
	// Float32 tensors hold Float32 data.
	Float32 DataType = "float32"
	// Uint8 tensors hold Uint8 data (quantized models).
	Uint8 DataType = "uint8"
)

// ErrShapeMismatch is returned when a tensor does not have the shape a
// consumer expects.
var ErrShapeMismatch = errors.New("tensor shape mismatch")

// Tensor is a dense row-major tensor. Exactly one of Float32 or Uint8 is
// populated, matching Type.
type Tensor struct {
	Shape   []int     `json:"shape"`
	Type    DataType  `json:"type"`
	Float32 []float32 `json:"float32,omitempty"`
	Uint8   []uint8   `json:"uint8,omitempty"`
}

// TensorSpec describes the input an Engine expects.
type TensorSpec struct {
	Shape []int    `json:"shape"` // [1, height, width, channels]
	Type  DataType `json:"type"`
}

// Height returns the spatial height of a [1, H, W, C] spec.
func (s TensorSpec) Height() int { return s.dim(1) }

// Width returns the spatial width of a [1, H, W, C] spec.
func (s TensorSpec) Width() int { return s.dim(2) }

// Channels returns the channel count of a [1, H, W, C] spec.
func (s TensorSpec) Channels() int { return s.dim(3) }

func (s TensorSpec) dim(i int) int {
	if i >= len(s.Shape) {
		return 0
	}
	return s.Shape[i]
}

// Validate checks that the spec describes a single image input.
func (s TensorSpec) Validate() error {
	if len(s.Shape) != 4 {
		return fmt.Errorf("%w: input must be rank 4 [1,H,W,C], got %v", ErrShapeMismatch, s.Shape)
	}
	if s.Shape[0] != 1 {
		return fmt.Errorf("%w: batch size must be 1, got %d", ErrShapeMismatch, s.Shape[0])
	}
	if s.Height() <= 0 || s.Width() <= 0 {
		return fmt.Errorf("%w: non-positive spatial size %dx%d", ErrShapeMismatch, s.Width(), s.Height())
	}
	if s.Channels() != 3 {
		return fmt.Errorf("%w: expected 3 channels, got %d", ErrShapeMismatch, s.Channels())
	}
	switch s.Type {
	case Float32, Uint8:
	default:
		return fmt.Errorf("unsupported input type %q", s.Type)
	}
	return nil
}

// Matches reports whether t has exactly the spec's shape and type.
func (s TensorSpec) Matches(t *Tensor) bool {
	if t == nil || t.Type != s.Type || len(t.Shape) != len(s.Shape) {
		return false
	}
	for i := range s.Shape {
		if t.Shape[i] != s.Shape[i] {
			return false
		}
	}
	return true
}

// Engine executes a pose model. Invoke must not retain input after it
// returns; callers may reuse the buffer for the next frame.
type Engine interface {
	InputSpec() TensorSpec
	Invoke(ctx context.Context, input *Tensor) ([]*Tensor, error)
}

// NumElements returns the product of the dimensions in shape.
func NumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Len returns the number of elements stored in the tensor.
func (t *Tensor) Len() int {
	if t.Type == Uint8 {
		return len(t.Uint8)
	}
	return len(t.Float32)
}

// Validate checks that the tensor data length matches its shape.
func (t *Tensor) Validate() error {
	if t == nil {
		return errors.New("nil tensor")
	}
	want := NumElements(t.Shape)
	if got := t.Len(); got != want {
		return fmt.Errorf("%w: shape %v needs %d elements, have %d", ErrShapeMismatch, t.Shape, want, got)
	}
	return nil
}

// At returns the float value at flat index i regardless of storage type.
func (t *Tensor) At(i int) float64 {
	if t.Type == Uint8 {
		return float64(t.Uint8[i])
	}
	return float64(t.Float32[i])
}
