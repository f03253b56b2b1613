// Package images - Captured frame representation and conversions.
package images

import (
	"crypto/md5"
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Channels is the number of interleaved channels in a Frame.
const Channels = 3

// Frame is a captured still image: Height rows of Width pixels, each pixel three bytes in
// BGR order as exported by the camera.
type Frame struct {
	// Width of the frame in pixels.
	Width int `json:"width" yaml:"width"`
	// Height of the frame in pixels.
	Height int `json:"height" yaml:"height"`
	// Data holds Width*Height*3 bytes, row-major, BGR interleaved.
	Data []byte `json:"-" yaml:"-"`
}

// NewFrame wraps raw BGR bytes in a Frame.
//
// Arguments:
//   - width: The frame width in pixels.
//   - height: The frame height in pixels.
//   - data: Row-major BGR bytes.
//
// Returns:
//   - *Frame: The frame.
//   - error: An error if the dimensions do not match the data length.
func NewFrame(width, height int, data []byte) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid frame dimensions %dx%d", width, height)
	}
	if want := width * height * Channels; len(data) != want {
		return nil, errors.Errorf("frame %dx%d needs %d bytes, got %d", width, height, want, len(data))
	}
	return &Frame{Width: width, Height: height, Data: data}, nil
}

// FromImage packs any image into a BGR frame. Alpha is dropped.
//
// Arguments:
//   - img: The source image.
//
// Returns:
//   - *Frame: The packed frame.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]byte, w*h*Channels)

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			data[i] = c.B
			data[i+1] = c.G
			data[i+2] = c.R
			i += Channels
		}
	}

	return &Frame{Width: w, Height: h, Data: data}
}

// Empty reports whether the frame carries no pixels.
func (f *Frame) Empty() bool {
	return f == nil || f.Width == 0 || f.Height == 0 || len(f.Data) == 0
}

// RGB converts the BGR frame into an RGB image.
//
// Returns:
//   - *image.RGBA: The converted image with opaque alpha.
func (f *Frame) RGB() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for src, px := 0, 0; src+2 < len(f.Data) && px+3 < len(dst.Pix); src, px = src+Channels, px+4 {
		dst.Pix[px] = f.Data[src+2]
		dst.Pix[px+1] = f.Data[src+1]
		dst.Pix[px+2] = f.Data[src]
		dst.Pix[px+3] = 0xff
	}
	return dst
}

// Checksum generates a deterministic checksum of the frame contents, used to tag
// snapshots in logs.
//
// Returns:
//   - string: A hex-encoded MD5 checksum, or "empty".
func (f *Frame) Checksum() string {
	if f.Empty() {
		return "empty"
	}
	return fmt.Sprintf("%x", md5.Sum(f.Data))
}
