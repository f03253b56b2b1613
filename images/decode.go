package images

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats.
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// SupportedExtensions lists the file extensions Decode understands.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// IsSupported reports whether the path has an image extension Decode understands.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// MaxPixels bounds the width×height of an image Decode accepts. The header is checked
// before any pixel buffer is allocated.
const MaxPixels = 4096 * 4096

// ErrTooLarge is returned when an image declares more than MaxPixels pixels.
var ErrTooLarge = errors.New("image exceeds the pixel limit")

// Decode reads an encoded image into a BGR frame.
//
// Arguments:
//   - r: The encoded image (PNG, JPEG or WebP).
//
// Returns:
//   - *Frame: The decoded frame.
//   - ImageFormat: The detected format.
//   - error: An error if the image cannot be decoded, or ErrTooLarge.
func Decode(r io.Reader) (*Frame, ImageFormat, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", errors.Wrap(err, "read image")
	}
	return DecodeBytes(data)
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (*Frame, ImageFormat, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image header")
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", errors.Wrapf(ErrTooLarge, "%dx%d", cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	return FromImage(img), ImageFormat(format), nil
}

// DecodeFile reads and decodes an image file.
//
// Arguments:
//   - path: The image file path.
//
// Returns:
//   - *Frame: The decoded frame.
//   - error: An error if the file cannot be opened or decoded.
func DecodeFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open image %s", path)
	}
	defer file.Close()

	frame, _, err := Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "image %s", path)
	}
	return frame, nil
}

// WritePNG encodes the frame as PNG at path, overwriting any existing file.
//
// Arguments:
//   - path: The destination file.
//   - frame: The frame to encode.
//
// Returns:
//   - error: An error if the file cannot be written.
func WritePNG(path string, frame *Frame) error {
	if frame.Empty() {
		return errors.New("cannot write an empty frame")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.RGB()); err != nil {
		return errors.Wrap(err, "encode png")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
