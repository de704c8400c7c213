package inference

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTensorSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    TensorSpec
		wantErr bool
	}{
		{"posenet float", TensorSpec{Shape: []int{1, 257, 257, 3}, Type: Float32}, false},
		{"movenet uint8", TensorSpec{Shape: []int{1, 192, 192, 3}, Type: Uint8}, false},
		{"rank 3", TensorSpec{Shape: []int{257, 257, 3}, Type: Float32}, true},
		{"batch 2", TensorSpec{Shape: []int{2, 257, 257, 3}, Type: Float32}, true},
		{"grayscale", TensorSpec{Shape: []int{1, 257, 257, 1}, Type: Float32}, true},
		{"zero size", TensorSpec{Shape: []int{1, 0, 257, 3}, Type: Float32}, true},
		{"unknown type", TensorSpec{Shape: []int{1, 8, 8, 3}, Type: "int16"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTensorSpec_Dims(t *testing.T) {
	spec := TensorSpec{Shape: []int{1, 192, 256, 3}, Type: Uint8}
	assert.Equal(t, 192, spec.Height())
	assert.Equal(t, 256, spec.Width())
	assert.Equal(t, 3, spec.Channels())

	empty := TensorSpec{}
	assert.Equal(t, 0, empty.Height())
}

func TestTensor_Validate(t *testing.T) {
	good := &Tensor{Shape: []int{1, 2, 3}, Type: Float32, Float32: make([]float32, 6)}
	require.NoError(t, good.Validate())

	bad := &Tensor{Shape: []int{1, 2, 3}, Type: Uint8, Uint8: make([]uint8, 5)}
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	var nilTensor *Tensor
	assert.Error(t, nilTensor.Validate())
}

func TestTensor_Accessors(t *testing.T) {
	u := &Tensor{Shape: []int{1, 3}, Type: Uint8, Uint8: []uint8{1, 2, 255}}
	assert.Equal(t, 3, u.Len())
	assert.Equal(t, 255.0, u.At(2))
	assert.Equal(t, 2.0, u.At(1))

	f := &Tensor{Shape: []int{1, 9, 9, 17}, Type: Float32, Float32: make([]float32, 9*9*17)}
	assert.Equal(t, 9*9*17, f.Len())
	assert.Equal(t, 9*9*17, NumElements(f.Shape))
	assert.Equal(t, 0, NumElements(nil))
}

func TestTensorSpec_Matches(t *testing.T) {
	spec := TensorSpec{Shape: []int{1, 2, 2, 3}, Type: Float32}

	assert.True(t, spec.Matches(&Tensor{Shape: []int{1, 2, 2, 3}, Type: Float32}))
	assert.False(t, spec.Matches(&Tensor{Shape: []int{1, 2, 2, 3}, Type: Uint8}))
	assert.False(t, spec.Matches(&Tensor{Shape: []int{1, 2, 3, 3}, Type: Float32}))
	assert.False(t, spec.Matches(&Tensor{Shape: []int{2, 2, 3}, Type: Float32}))
	assert.False(t, spec.Matches(nil))
}
