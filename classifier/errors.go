package classifier

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a failed check.
type ErrorKind int

const (
	// Unavailable means no model is loaded.
	Unavailable ErrorKind = iota + 1
	// CaptureFailed means the camera produced no image.
	CaptureFailed
	// Prediction means preprocessing, inference or postprocessing failed.
	Prediction
)

// String returns the user-facing text for the kind.
func (k ErrorKind) String() string {
	switch k {
	case Unavailable:
		return "inference unavailable"
	case CaptureFailed:
		return "capture failed"
	case Prediction:
		return "prediction error"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// Error is a failed check. Error() is the user-facing text; Err carries the details.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a check error, or 0 for other errors.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
