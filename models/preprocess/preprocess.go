// Package preprocess - Frame to tensor conversion for image classifiers.
package preprocess

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-freshness/images"
)

// Config defines preprocessing for one model input.
type Config struct {
	// Width is the model input width.
	Width int `json:"width" yaml:"width"`
	// Height is the model input height.
	Height int `json:"height" yaml:"height"`
	// Dtype is the model input element type. Float32 inputs are scaled to [0, 1];
	// Uint8 inputs keep raw 0-255 values; Int8 inputs are shifted by -128.
	Dtype tensor.Dtype `json:"-" yaml:"-"`
}

// Preprocessor converts captured frames into NHWC input tensors.
type Preprocessor struct {
	config Config
}

// NewPreprocessor creates a preprocessor for the given input configuration.
//
// Arguments:
//   - config: The model input configuration.
//
// Returns:
//   - *Preprocessor: The preprocessor.
//   - error: An error if the size or dtype is unsupported.
//
// @example
//
//	p, err := NewPreprocessor(Config{Width: 224, Height: 224, Dtype: tensor.Float32})
//	input, err := p.Preprocess(frame) // shape (1, 224, 224, 3)
func NewPreprocessor(config Config) (*Preprocessor, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, errors.Errorf("invalid input size %dx%d", config.Width, config.Height)
	}
	switch config.Dtype {
	case tensor.Float32, tensor.Uint8, tensor.Int8:
	default:
		return nil, errors.Errorf("unsupported input dtype %v", config.Dtype)
	}
	return &Preprocessor{config: config}, nil
}

// ForShape creates a preprocessor for an NHWC input shape (1, height, width, 3).
//
// Arguments:
//   - shape: The model input shape.
//   - dtype: The model input element type.
//
// Returns:
//   - *Preprocessor: The preprocessor.
//   - error: An error if the shape is not a single-batch, 3-channel NHWC shape.
func ForShape(shape tensor.Shape, dtype tensor.Dtype) (*Preprocessor, error) {
	if len(shape) != 4 || shape[0] != 1 || shape[3] != images.Channels {
		return nil, errors.Errorf("input shape %v is not (1, H, W, 3)", []int(shape))
	}
	return NewPreprocessor(Config{Width: shape[2], Height: shape[1], Dtype: dtype})
}

// Config returns the preprocessor configuration.
func (p *Preprocessor) Config() Config {
	return p.config
}

// Shape returns the tensor shape Preprocess produces.
func (p *Preprocessor) Shape() tensor.Shape {
	return tensor.Shape{1, p.config.Height, p.config.Width, images.Channels}
}

// Preprocess runs the fixed pipeline: BGR to RGB, resize, normalize by dtype, and add the
// batch dimension.
//
// Arguments:
//   - frame: The captured BGR frame, any resolution.
//
// Returns:
//   - *tensor.Dense: A (1, H, W, 3) tensor of the configured dtype.
//   - error: An error if the frame is empty.
func (p *Preprocessor) Preprocess(frame *images.Frame) (*tensor.Dense, error) {
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	rgb := frame.RGB()
	resized := p.resize(rgb)

	w, h := p.config.Width, p.config.Height
	n := w * h * images.Channels

	var backing interface{}
	switch p.config.Dtype {
	case tensor.Uint8:
		data := make([]uint8, n)
		p.fill(resized, func(i int, v uint8) { data[i] = v })
		backing = data
	case tensor.Int8:
		data := make([]int8, n)
		p.fill(resized, func(i int, v uint8) { data[i] = int8(int(v) - 128) })
		backing = data
	default:
		data := make([]float32, n)
		p.fill(resized, func(i int, v uint8) { data[i] = float32(v) / 255.0 })
		backing = data
	}

	return tensor.New(tensor.WithShape(p.Shape()...), tensor.WithBacking(backing)), nil
}

func (p *Preprocessor) resize(img *image.RGBA) *image.RGBA {
	w, h := p.config.Width, p.config.Height
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		return img
	}

	out := resize.Resize(uint(w), uint(h), img, resize.Bilinear)
	if rgba, ok := out.(*image.RGBA); ok {
		return rgba
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := out.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.Set(x, y, out.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// fill walks the resized image in HWC order and hands each channel value to set.
func (p *Preprocessor) fill(img *image.RGBA, set func(i int, v uint8)) {
	w, h := p.config.Width, p.config.Height
	i := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			set(i, row[x*4])
			set(i+1, row[x*4+1])
			set(i+2, row[x*4+2])
			i += images.Channels
		}
	}
}
