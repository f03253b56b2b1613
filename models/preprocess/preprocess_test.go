package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-freshness/images"
)

// solidFrame builds a BGR frame filled with a single colour.
func solidFrame(t *testing.T, w, h int, b, g, r byte) *images.Frame {
	t.Helper()
	data := make([]byte, w*h*images.Channels)
	for i := 0; i < len(data); i += images.Channels {
		data[i], data[i+1], data[i+2] = b, g, r
	}
	frame, err := images.NewFrame(w, h, data)
	require.NoError(t, err)
	return frame
}

func newPreprocessor(t *testing.T, dtype tensor.Dtype) *Preprocessor {
	t.Helper()
	p, err := ForShape(tensor.Shape{1, 224, 224, 3}, dtype)
	require.NoError(t, err)
	return p
}

func TestPreprocessShapeForAnyResolution(t *testing.T) {
	p := newPreprocessor(t, tensor.Float32)

	for _, size := range [][2]int{{640, 480}, {224, 224}, {100, 300}, {1, 1}} {
		input, err := p.Preprocess(solidFrame(t, size[0], size[1], 10, 20, 30))
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{1, 224, 224, 3}, input.Shape(), "frame %dx%d", size[0], size[1])
		assert.Equal(t, tensor.Float32, input.Dtype())
	}
}

func TestPreprocessFloatIsScaledRGB(t *testing.T) {
	p := newPreprocessor(t, tensor.Float32)

	// BGR (0, 128, 255) is pure-ish red in RGB.
	input, err := p.Preprocess(solidFrame(t, 640, 480, 0, 128, 255))
	require.NoError(t, err)

	data := input.Data().([]float32)
	for _, v := range data {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
	assert.InDelta(t, 1.0, data[0], 1e-3)
	assert.InDelta(t, 128.0/255.0, data[1], 1e-2)
	assert.InDelta(t, 0.0, data[2], 1e-3)
}

func TestPreprocessUint8KeepsRawValues(t *testing.T) {
	p := newPreprocessor(t, tensor.Uint8)

	input, err := p.Preprocess(solidFrame(t, 224, 224, 30, 20, 10))
	require.NoError(t, err)

	data := input.Data().([]uint8)
	assert.Equal(t, []uint8{10, 20, 30}, data[:3])
	assert.Equal(t, []uint8{10, 20, 30}, data[len(data)-3:])
}

func TestPreprocessInt8IsShifted(t *testing.T) {
	p := newPreprocessor(t, tensor.Int8)

	input, err := p.Preprocess(solidFrame(t, 224, 224, 255, 128, 0))
	require.NoError(t, err)

	data := input.Data().([]int8)
	assert.Equal(t, []int8{-128, 0, 127}, data[:3])
}

func TestPreprocessRejectsEmptyFrame(t *testing.T) {
	p := newPreprocessor(t, tensor.Float32)

	_, err := p.Preprocess(nil)
	assert.Error(t, err)
	_, err = p.Preprocess(&images.Frame{})
	assert.Error(t, err)
}

func TestForShapeValidation(t *testing.T) {
	_, err := ForShape(tensor.Shape{1, 3, 224, 224}, tensor.Float32)
	assert.Error(t, err)
	_, err = ForShape(tensor.Shape{2, 224, 224, 3}, tensor.Float32)
	assert.Error(t, err)
	_, err = ForShape(tensor.Shape{1, 224, 224, 3}, tensor.Float64)
	assert.Error(t, err)

	p, err := ForShape(tensor.Shape{1, 96, 128, 3}, tensor.Uint8)
	require.NoError(t, err)
	assert.Equal(t, 128, p.Config().Width)
	assert.Equal(t, 96, p.Config().Height)
}
