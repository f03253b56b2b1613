//go:build nogocv

package camera

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/config"
	"github.com/nvr-ai/go-freshness/images"
)

var errNoOpenCV = errors.New("capture devices are not available in builds tagged nogocv")

// Device is unavailable without OpenCV. Every Open fails.
type Device struct {
	config config.CameraConfig
}

// NewDevice creates a device that cannot open.
func NewDevice(cfg config.CameraConfig, _ logrus.FieldLogger) *Device {
	return &Device{config: cfg}
}

// Open always fails.
func (d *Device) Open() error {
	return errors.Wrapf(errNoOpenCV, "open video capture device %d", d.config.DeviceID)
}

// Close is a no-op.
func (d *Device) Close() error {
	return nil
}

// IsOpen is always false.
func (d *Device) IsOpen() bool {
	return false
}

// Capture always fails.
func (d *Device) Capture(context.Context) (*images.Frame, error) {
	return nil, ErrNotOpen
}
