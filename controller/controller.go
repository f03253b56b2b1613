// Package controller - The two-button, one-label state machine behind every UI surface.
package controller

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/camera"
	"github.com/nvr-ai/go-freshness/classifier"
	"github.com/nvr-ai/go-freshness/images"
	"github.com/nvr-ai/go-freshness/models/postprocess"
	"github.com/nvr-ai/go-freshness/profiler"
)

// ErrCheckDisabled is returned by Check while the camera is not streaming.
var ErrCheckDisabled = errors.New("check is disabled while the camera is stopped")

// State is the UI state.
type State int

const (
	// Idle means the camera is stopped and Check is disabled.
	Idle State = iota
	// Streaming means the camera is running but no model is loaded. Check is enabled and
	// reports the model as unavailable.
	Streaming
	// StreamingAndReady means the camera is running and a model is loaded.
	StreamingAndReady
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case StreamingAndReady:
		return "streaming_ready"
	default:
		return "unknown"
	}
}

// Button captions and status texts.
const (
	CaptionOpen = "Open"
	CaptionStop = "Stop"

	StatusWelcome   = "Tap Open to start the camera."
	StatusStreaming = "Camera on. Tap Check to scan."
	StatusStopped   = "Camera stopped."
	StatusChecking  = "Checking..."
	StatusCameraErr = "camera unavailable"
)

// Snapshot is a consistent view of the UI.
type Snapshot struct {
	State        string              `json:"state"`
	Status       string              `json:"status"`
	Caption      string              `json:"caption"`
	CheckEnabled bool                `json:"check_enabled"`
	ModelLoaded  bool                `json:"model_loaded"`
	LastResult   *postprocess.Result `json:"last_result,omitempty"`
}

// Controller owns the camera, the status label and the Open/Stop caption. Every action
// holds one mutex for its whole duration, so a check blocks the next action.
type Controller struct {
	mu         sync.Mutex
	camera     camera.Camera
	classifier *classifier.Classifier
	logger     logrus.FieldLogger
	streaming  bool
	status     string
	last       *postprocess.Result
}

// New creates a controller in the Idle state.
//
// Arguments:
//   - cam: The camera toggled by Open/Stop.
//   - clf: The classifier used by Check.
//   - logger: Receives state transitions.
//
// Returns:
//   - *Controller: The controller.
func New(cam camera.Camera, clf *classifier.Classifier, logger logrus.FieldLogger) *Controller {
	return &Controller{
		camera:     cam,
		classifier: clf,
		logger:     logger.WithField("component", "controller"),
		status:     StatusWelcome,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state()
}

func (c *Controller) state() State {
	switch {
	case !c.streaming:
		return Idle
	case c.classifier.Available():
		return StreamingAndReady
	default:
		return Streaming
	}
}

// Status returns the status label text.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Caption returns the Open/Stop button caption.
func (c *Controller) Caption() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.caption()
}

func (c *Controller) caption() string {
	if c.streaming {
		return CaptionStop
	}
	return CaptionOpen
}

// CheckEnabled reports whether the Check button is enabled.
func (c *Controller) CheckEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.streaming
}

// Snapshot returns the full UI view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var last *postprocess.Result
	if c.last != nil {
		r := *c.last
		last = &r
	}
	return Snapshot{
		State:        c.state().String(),
		Status:       c.status,
		Caption:      c.caption(),
		CheckEnabled: c.streaming,
		ModelLoaded:  c.classifier.Available(),
		LastResult:   last,
	}
}

// Timings returns the classifier's per-stage latency statistics.
func (c *Controller) Timings() map[string]profiler.Stats {
	return c.classifier.Timings()
}

// Toggle handles the Open/Stop button: Idle starts the camera, any streaming state stops it.
//
// Returns:
//   - State: The state after the toggle.
//   - error: An error if the camera fails to start or stop. The state is unchanged.
func (c *Controller) Toggle() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.streaming {
		if err := c.camera.Close(); err != nil {
			c.logger.WithError(err).Error("failed to stop camera")
			return c.state(), errors.Wrap(err, "stop camera")
		}
		c.streaming = false
		c.status = StatusStopped
	} else {
		if err := c.camera.Open(); err != nil {
			c.logger.WithError(err).Error("failed to start camera")
			c.status = StatusCameraErr
			return c.state(), errors.Wrap(err, "start camera")
		}
		c.streaming = true
		c.status = StatusStreaming
	}

	state := c.state()
	c.logger.WithField("state", state.String()).Info("camera toggled")
	return state, nil
}

// Check handles the Check button: one capture and classification pass. The state never
// changes; the result or error text is written to the status label.
//
// Arguments:
//   - ctx: Cancels the pass before capture or inference.
//
// Returns:
//   - postprocess.Result: The classification.
//   - error: ErrCheckDisabled while Idle, or the classifier's error.
func (c *Controller) Check(ctx context.Context) (postprocess.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return postprocess.Result{}, ErrCheckDisabled
	}

	c.status = StatusChecking
	result, err := c.classifier.Check(ctx, c.camera)
	c.record(result, err)
	return result, err
}

// ClassifyFrame classifies an already captured frame, bypassing the camera. It is
// available in every state and shares the action lock with Toggle and Check.
//
// Arguments:
//   - ctx: Cancels the pass before inference.
//   - frame: The BGR frame.
//
// Returns:
//   - postprocess.Result: The classification.
//   - error: The classifier's error.
func (c *Controller) ClassifyFrame(ctx context.Context, frame *images.Frame) (postprocess.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.classifier.Classify(ctx, frame)
	c.record(result, err)
	return result, err
}

// record writes the outcome of a pass into the status label.
func (c *Controller) record(result postprocess.Result, err error) {
	if err != nil {
		c.status = StatusText(err)
		return
	}
	c.status = "Result: " + result.String()
	c.last = &result
}

// Shutdown stops the camera if it is running.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streaming {
		return nil
	}
	c.streaming = false
	return errors.Wrap(c.camera.Close(), "stop camera")
}

// StatusText renders an action error as status label text.
//
// Arguments:
//   - err: The error returned by Toggle, Check or ClassifyFrame.
//
// Returns:
//   - string: The user-facing text. Details are never included.
func StatusText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCheckDisabled):
		return "Open the camera first."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "check cancelled"
	}
	if kind := classifier.KindOf(err); kind != 0 {
		return kind.String()
	}
	return classifier.Prediction.String()
}
