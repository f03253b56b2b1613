package images

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameValidatesLength(t *testing.T) {
	_, err := NewFrame(2, 2, make([]byte, 11))
	assert.Error(t, err)

	_, err = NewFrame(0, 2, nil)
	assert.Error(t, err)

	frame, err := NewFrame(2, 2, make([]byte, 12))
	require.NoError(t, err)
	assert.False(t, frame.Empty())
}

func TestFromImagePacksBGR(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	frame := FromImage(img)

	assert.Equal(t, 2, frame.Width)
	assert.Equal(t, 1, frame.Height)
	assert.Equal(t, []byte{30, 20, 10, 50, 100, 200}, frame.Data)
}

func TestRGBSwapsChannels(t *testing.T) {
	frame, err := NewFrame(1, 1, []byte{1, 2, 3})
	require.NoError(t, err)

	rgb := frame.RGB()

	assert.Equal(t, []uint8{3, 2, 1, 255}, rgb.Pix)
}

func TestChecksumIsDeterministic(t *testing.T) {
	a, err := NewFrame(1, 1, []byte{1, 2, 3})
	require.NoError(t, err)
	b, err := NewFrame(1, 1, []byte{1, 2, 3})
	require.NoError(t, err)
	c, err := NewFrame(1, 1, []byte{3, 2, 1})
	require.NoError(t, err)

	assert.Equal(t, a.Checksum(), b.Checksum())
	assert.NotEqual(t, a.Checksum(), c.Checksum())
	assert.Equal(t, "empty", (*Frame)(nil).Checksum())
}

func TestDecodeAndWritePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 80), B: 7, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	frame, format, err := DecodeBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, format)
	assert.Equal(t, 4, frame.Width)
	assert.Equal(t, 3, frame.Height)

	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, WritePNG(path, frame))

	reread, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, frame.Data, reread.Data)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := DecodeBytes([]byte("not an image"))
	assert.Error(t, err)
}

// oversizedPNG encodes a 1x1 PNG and rewrites its header to declare w×h pixels.
func oversizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeRejectsOversizedImage(t *testing.T) {
	_, _, err := DecodeBytes(oversizedPNG(t, 8000, 8000))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, _, err = Decode(bytes.NewReader(oversizedPNG(t, MaxPixels+1, 1)))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("apple.PNG"))
	assert.True(t, IsSupported("/tmp/banana.webp"))
	assert.False(t, IsSupported("model.tflite"))
}
