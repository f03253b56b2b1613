//go:build !nogocv

package camera

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-freshness/config"
	"github.com/nvr-ai/go-freshness/images"
)

// Device captures frames from a video capture device through OpenCV.
type Device struct {
	mu      sync.Mutex
	config  config.CameraConfig
	capture *gocv.VideoCapture
	logger  logrus.FieldLogger
}

// NewDevice creates a capture device camera.
//
// Arguments:
//   - cfg: Device id, requested resolution and snapshot path.
//   - logger: Receives capture diagnostics.
//
// Returns:
//   - *Device: The camera, not yet opened.
func NewDevice(cfg config.CameraConfig, logger logrus.FieldLogger) *Device {
	return &Device{
		config: cfg,
		logger: logger.WithFields(logrus.Fields{"camera": "device", "device_id": cfg.DeviceID}),
	}
}

// Open starts the capture device at the configured resolution.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture != nil {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(d.config.DeviceID)
	if err != nil {
		return errors.Wrapf(err, "open video capture device %d", d.config.DeviceID)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return errors.Errorf("video capture device %d did not open", d.config.DeviceID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(d.config.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(d.config.Height))
	d.capture = capture

	d.logger.WithFields(logrus.Fields{
		"width":  d.config.Width,
		"height": d.config.Height,
	}).Info("camera started")
	return nil
}

// Close stops the capture device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture = nil
	d.logger.Info("camera stopped")
	return errors.Wrap(err, "close video capture")
}

// IsOpen reports whether the device is streaming.
func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.capture != nil
}

// Capture grabs a frame, writes it to the snapshot file, and reads the snapshot back as
// the captured frame.
func (d *Device) Capture(ctx context.Context) (*images.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture == nil {
		return nil, ErrNotOpen
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := d.capture.Read(&img); !ok || img.Empty() {
		return nil, ErrNoFrame
	}

	snapshot := d.config.SnapshotPath
	if snapshot == "" {
		return FromMat(img)
	}

	if !gocv.IMWrite(snapshot, img) {
		return nil, errors.Errorf("write snapshot %s", snapshot)
	}
	stored := gocv.IMRead(snapshot, gocv.IMReadColor)
	defer stored.Close()
	if stored.Empty() {
		return nil, ErrNoFrame
	}

	frame, err := FromMat(stored)
	if err != nil {
		return nil, err
	}
	d.logger.WithFields(logrus.Fields{
		"snapshot": snapshot,
		"checksum": frame.Checksum(),
	}).Debug("frame captured")
	return frame, nil
}

// FromMat copies an 8-bit, 3-channel BGR Mat into a Frame.
//
// Arguments:
//   - mat: The source matrix.
//
// Returns:
//   - *images.Frame: The frame.
//   - error: An error if the matrix is empty or not CV_8UC3.
func FromMat(mat gocv.Mat) (*images.Frame, error) {
	if mat.Empty() {
		return nil, ErrNoFrame
	}
	if mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, errors.Errorf("unsupported mat type %v, want CV_8UC3", mat.Type())
	}
	return images.NewFrame(mat.Cols(), mat.Rows(), mat.ToBytes())
}
