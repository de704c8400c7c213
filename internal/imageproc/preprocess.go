// Package imageproc prepares camera frames for pose inference: a
// proportional thumbnail, padded to the exact template size the model
// expects, then flattened into an input tensor.
package imageproc

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/banshee-data/fallwatch/internal/inference"
)

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("image has empty bounds")

// Normalization selects how 8-bit pixel values map onto float32 inputs.
type Normalization int

const (
	// NormalizeNone feeds raw 0..255 values.
	NormalizeNone Normalization = iota
	// NormalizeSymmetric maps 0..255 onto -1..1 via (v-127.5)/127.5.
	NormalizeSymmetric
)

// Thumbnail returns a copy of img scaled down, preserving aspect ratio, so
// that it fits inside width x height. Images that already fit are copied
// unscaled; img itself is never modified.
func Thumbnail(img image.Image, width, height int) (*image.RGBA, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %dx%d", width, height)
	}

	w, h := b.Dx(), b.Dy()
	scale := math.Min(float64(width)/float64(w), float64(height)/float64(h))
	if scale < 1 {
		w = max(1, int(math.Round(float64(w)*scale)))
		h = max(1, int(math.Round(float64(h)*scale)))
		w = min(w, width)
		h = min(h, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst, nil
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// Pad places img at the top-left of a width x height canvas filled with
// opaque black. The input must already fit inside the canvas.
func Pad(img image.Image, width, height int) (*image.RGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() > width || b.Dy() > height {
		return nil, fmt.Errorf("image %dx%d does not fit template %dx%d", b.Dx(), b.Dy(), width, height)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(0, 0, b.Dx(), b.Dy()), img, b.Min, draw.Src)
	return dst, nil
}

// Template runs Thumbnail followed by Pad, returning both the proportional
// thumbnail and the padded template image.
func Template(img image.Image, width, height int) (thumb, template *image.RGBA, err error) {
	thumb, err = Thumbnail(img, width, height)
	if err != nil {
		return nil, nil, err
	}
	template, err = Pad(thumb, width, height)
	if err != nil {
		return nil, nil, err
	}
	return thumb, template, nil
}

// ToTensor flattens a template image into an HWC RGB tensor matching spec.
func ToTensor(img *image.RGBA, spec inference.TensorSpec, norm Normalization) (*inference.Tensor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	w, h := spec.Width(), spec.Height()
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return nil, fmt.Errorf("%w: template %dx%d, model expects %dx%d",
			inference.ErrShapeMismatch, b.Dx(), b.Dy(), w, h)
	}

	n := w * h * 3
	t := &inference.Tensor{
		Shape: append([]int(nil), spec.Shape...),
		Type:  spec.Type,
	}
	if spec.Type == inference.Uint8 {
		t.Uint8 = make([]uint8, 0, n)
	} else {
		t.Float32 = make([]float32, 0, n)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			for _, v := range img.Pix[off : off+3] {
				if spec.Type == inference.Uint8 {
					t.Uint8 = append(t.Uint8, v)
					continue
				}
				f := float32(v)
				if norm == NormalizeSymmetric {
					f = (f - 127.5) / 127.5
				}
				t.Float32 = append(t.Float32, f)
			}
		}
	}
	return t, nil
}
