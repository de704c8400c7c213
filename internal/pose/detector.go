package pose

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/banshee-data/fallwatch/internal/imageproc"
	"github.com/banshee-data/fallwatch/internal/inference"
	"github.com/banshee-data/fallwatch/internal/monitoring"
)

// Detection is the result of running one frame through the model.
type Detection struct {
	Pose Pose

	// Thumbnail is the proportionally resized frame; Template is the
	// thumbnail padded to the exact model input size.
	Thumbnail *image.RGBA
	Template  *image.RGBA

	InferenceTime time.Duration
}

// Detector runs preprocess → inference → decode for single frames.
// It holds no per-frame state; concurrency safety is that of the engine.
type Detector struct {
	engine  inference.Engine
	decoder Decoder
	spec    inference.TensorSpec
}

// NewDetector validates the engine's input contract and returns a Detector.
func NewDetector(engine inference.Engine, decoder Decoder) (*Detector, error) {
	if engine == nil {
		return nil, fmt.Errorf("nil inference engine")
	}
	if decoder == nil {
		return nil, fmt.Errorf("nil pose decoder")
	}
	spec := engine.InputSpec()
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("engine input spec: %w", err)
	}
	return &Detector{engine: engine, decoder: decoder, spec: spec}, nil
}

// TemplateSize returns the model input width and height.
func (d *Detector) TemplateSize() (width, height int) {
	return d.spec.Width(), d.spec.Height()
}

// Detect decodes the pose in img. Malformed images are reported as
// *InputError; engine and decode failures are wrapped and returned as-is.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Detection, error) {
	w, h := d.TemplateSize()
	thumb, template, err := imageproc.Template(img, w, h)
	if err != nil {
		return nil, &InputError{Op: "preprocess", Err: err}
	}
	input, err := imageproc.ToTensor(template, d.spec, d.decoder.Normalization())
	if err != nil {
		return nil, &InputError{Op: "tensor", Err: err}
	}

	start := time.Now()
	outputs, err := d.engine.Invoke(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	elapsed := time.Since(start)

	p, err := d.decoder.Decode(outputs, w, h)
	if err != nil {
		return nil, fmt.Errorf("%s decode failed: %w", d.decoder.Name(), err)
	}

	if monitoring.DebugEnabled() {
		n := int(p.Score*NumKeypoints + 0.5)
		monitoring.Debugf("%s pose score %.3f: %d/%d keypoints confident, inference %v",
			d.decoder.Name(), p.Score, n, NumKeypoints, elapsed)
	}

	return &Detection{
		Pose:          p,
		Thumbnail:     thumb,
		Template:      template,
		InferenceTime: elapsed,
	}, nil
}
