//go:build tflite

// Package tflite runs pose models with the TensorFlow Lite C library.
// Build with -tags tflite; the library must be installed on the host.
package tflite

import (
	"context"
	"fmt"
	"sync"

	"github.com/mattn/go-tflite"

	"github.com/banshee-data/fallwatch/internal/inference"
	"github.com/banshee-data/fallwatch/internal/monitoring"
)

// Engine wraps one interpreter. Invoke calls are serialized.
type Engine struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	spec        inference.TensorSpec
}

var _ inference.Engine = (*Engine)(nil)

// Open loads the model at path and allocates its tensors.
func Open(path string, threads int) (*Engine, error) {
	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("cannot load model %s", path)
	}

	options := tflite.NewInterpreterOptions()
	if threads > 0 {
		options.SetNumThread(threads)
	}
	options.SetErrorReporter(func(msg string, _ interface{}) {
		monitoring.Logf("tflite: %s", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter for %s", path)
	}

	e := &Engine{model: model, options: options, interpreter: interpreter}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		e.Close()
		return nil, fmt.Errorf("allocate tensors: status %v", status)
	}

	in := interpreter.GetInputTensor(0)
	shape := make([]int, in.NumDims())
	for i := range shape {
		shape[i] = in.Dim(i)
	}
	e.spec = inference.TensorSpec{Shape: shape}
	switch in.Type() {
	case tflite.Float32:
		e.spec.Type = inference.Float32
	case tflite.UInt8:
		e.spec.Type = inference.Uint8
	default:
		e.Close()
		return nil, fmt.Errorf("unsupported input tensor type %v", in.Type())
	}
	if err := e.spec.Validate(); err != nil {
		e.Close()
		return nil, fmt.Errorf("model %s: %w", path, err)
	}

	monitoring.Logf("tflite: loaded %s input %v %s, %d outputs",
		path, e.spec.Shape, e.spec.Type, interpreter.GetOutputTensorCount())
	return e, nil
}

// InputSpec implements inference.Engine.
func (e *Engine) InputSpec() inference.TensorSpec {
	return e.spec
}

// Invoke implements inference.Engine. Quantized outputs are dequantized to
// float32.
func (e *Engine) Invoke(ctx context.Context, input *inference.Tensor) ([]*inference.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.spec.Matches(input) {
		return nil, fmt.Errorf("%w: input %v %s, model wants %v %s",
			inference.ErrShapeMismatch, input.Shape, input.Type, e.spec.Shape, e.spec.Type)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	in := e.interpreter.GetInputTensor(0)
	switch input.Type {
	case inference.Float32:
		copy(in.Float32s(), input.Float32)
	case inference.Uint8:
		copy(in.UInt8s(), input.Uint8)
	}

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("interpreter invoke: status %v", status)
	}

	n := e.interpreter.GetOutputTensorCount()
	outputs := make([]*inference.Tensor, 0, n)
	for i := 0; i < n; i++ {
		out := e.interpreter.GetOutputTensor(i)
		shape := make([]int, out.NumDims())
		for d := range shape {
			shape[d] = out.Dim(d)
		}
		t := &inference.Tensor{Shape: shape, Type: inference.Float32}
		switch out.Type() {
		case tflite.Float32:
			t.Float32 = append([]float32(nil), out.Float32s()...)
		case tflite.UInt8:
			q := out.QuantizationParams()
			raw := out.UInt8s()
			t.Float32 = make([]float32, len(raw))
			for j, v := range raw {
				t.Float32[j] = float32(q.Scale * float64(int(v)-q.ZeroPoint))
			}
		default:
			return nil, fmt.Errorf("unsupported output %d type %v", i, out.Type())
		}
		outputs = append(outputs, t)
	}
	return outputs, nil
}

// Close releases the interpreter and model.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
}
