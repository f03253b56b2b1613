package camera

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/images"
)

// Still serves every capture from an image file. It stands in for a capture device on
// headless hosts and in tests.
type Still struct {
	mu       sync.Mutex
	path     string
	snapshot string
	frame    *images.Frame
	logger   logrus.FieldLogger
}

// NewStill creates a still-image camera.
//
// Arguments:
//   - path: The PNG, JPEG or WebP file to serve.
//   - snapshot: The snapshot file written on each capture. Empty disables it.
//   - logger: Receives capture diagnostics.
//
// Returns:
//   - *Still: The camera, not yet opened.
func NewStill(path, snapshot string, logger logrus.FieldLogger) *Still {
	return &Still{
		path:     path,
		snapshot: snapshot,
		logger:   logger.WithField("camera", "still"),
	}
}

// Open decodes the image file.
func (s *Still) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame != nil {
		return nil
	}
	frame, err := images.DecodeFile(s.path)
	if err != nil {
		return errors.Wrap(err, "open still camera")
	}
	s.frame = frame
	s.logger.WithFields(logrus.Fields{
		"path":   s.path,
		"width":  frame.Width,
		"height": frame.Height,
	}).Debug("still camera opened")
	return nil
}

// Close releases the decoded image.
func (s *Still) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame = nil
	return nil
}

// IsOpen reports whether the image has been decoded.
func (s *Still) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frame != nil
}

// Capture returns a copy of the image and refreshes the snapshot file.
func (s *Still) Capture(ctx context.Context) (*images.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return nil, ErrNotOpen
	}

	data := make([]byte, len(s.frame.Data))
	copy(data, s.frame.Data)
	frame := &images.Frame{Width: s.frame.Width, Height: s.frame.Height, Data: data}

	if s.snapshot != "" {
		if err := images.WritePNG(s.snapshot, frame); err != nil {
			return nil, errors.Wrap(err, "write snapshot")
		}
	}

	s.logger.WithField("checksum", frame.Checksum()).Debug("frame captured")
	return frame, nil
}
