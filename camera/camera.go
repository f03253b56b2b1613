// Package camera - Frame acquisition from capture devices and still images.
package camera

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/config"
	"github.com/nvr-ai/go-freshness/images"
)

var (
	// ErrNotOpen is returned by Capture when the camera has not been opened.
	ErrNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned by Capture when the source produced no image.
	ErrNoFrame = errors.New("camera returned no frame")
	// ErrPermissionDenied is returned when the permission hook refuses camera access.
	ErrPermissionDenied = errors.New("camera permission denied")
)

// Camera is a source of still frames.
type Camera interface {
	// Open starts the camera. Opening an open camera is a no-op.
	Open() error
	// Close stops the camera. Closing a closed camera is a no-op.
	Close() error
	// IsOpen reports whether the camera is streaming.
	IsOpen() bool
	// Capture grabs one BGR frame.
	Capture(ctx context.Context) (*images.Frame, error)
}

// Permission asks the host for camera access. It is invoked once at startup.
type Permission func(ctx context.Context) (bool, error)

// AlwaysGrant is the permission hook used on desktop hosts.
func AlwaysGrant(context.Context) (bool, error) {
	return true, nil
}

// Request runs a permission hook and turns a refusal into ErrPermissionDenied.
//
// Arguments:
//   - ctx: The startup context.
//   - permission: The hook to run. Nil grants.
//
// Returns:
//   - error: ErrPermissionDenied if refused, or the hook's own error.
func Request(ctx context.Context, permission Permission) error {
	if permission == nil {
		return nil
	}
	granted, err := permission(ctx)
	if err != nil {
		return errors.Wrap(err, "request camera permission")
	}
	if !granted {
		return ErrPermissionDenied
	}
	return nil
}

// New selects the camera implementation for a configuration: a Still when a still image
// is configured, otherwise a capture Device.
//
// Arguments:
//   - cfg: The camera configuration.
//   - logger: Receives capture diagnostics.
//
// Returns:
//   - Camera: The camera, not yet opened.
func New(cfg config.CameraConfig, logger logrus.FieldLogger) Camera {
	if cfg.StillImage != "" {
		return NewStill(cfg.StillImage, cfg.SnapshotPath, logger)
	}
	return NewDevice(cfg, logger)
}
