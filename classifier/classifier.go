// Package classifier - Capture, preprocess, infer and interpret one frame.
package classifier

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/camera"
	"github.com/nvr-ai/go-freshness/images"
	"github.com/nvr-ai/go-freshness/inference"
	"github.com/nvr-ai/go-freshness/models"
	"github.com/nvr-ai/go-freshness/models/postprocess"
	"github.com/nvr-ai/go-freshness/models/preprocess"
	"github.com/nvr-ai/go-freshness/profiler"
)

// Pipeline stage names recorded by the classifier's profiler.
const (
	StageCapture     = "capture"
	StagePreprocess  = "preprocess"
	StageInference   = "inference"
	StagePostprocess = "postprocess"
)

// Classifier runs the freshness pipeline over a loaded model. A Classifier built without
// a model reports every check as Unavailable.
type Classifier struct {
	handle *inference.Handle
	pre    *preprocess.Preprocessor
	labels models.LabelTable
	logger logrus.FieldLogger
	timing *profiler.Profiler
}

// New creates a classifier.
//
// Arguments:
//   - handle: The loaded model, or nil when loading failed.
//   - labels: The label table the model output is ordered by.
//   - logger: Receives pipeline diagnostics.
//
// Returns:
//   - *Classifier: The classifier.
//   - error: An error if the model input cannot be preprocessed for or the label table is empty.
func New(handle *inference.Handle, labels models.LabelTable, logger logrus.FieldLogger) (*Classifier, error) {
	if labels.Len() == 0 {
		return nil, errors.New("label table is empty")
	}

	c := &Classifier{
		handle: handle,
		labels: labels,
		logger: logger,
		timing: profiler.New(profiler.DefaultMaxSamples),
	}
	if handle == nil {
		return c, nil
	}

	input := handle.Input()
	pre, err := preprocess.ForShape(input.Shape, input.Type.Dtype())
	if err != nil {
		return nil, errors.Wrap(err, "configure preprocessing")
	}
	c.pre = pre
	return c, nil
}

// Available reports whether a model is loaded.
func (c *Classifier) Available() bool {
	return c.handle != nil
}

// Labels returns the label table.
func (c *Classifier) Labels() models.LabelTable {
	return c.labels
}

// Timings returns per-stage latency statistics for every frame processed so far.
func (c *Classifier) Timings() map[string]profiler.Stats {
	return c.timing.Stats()
}

// Check captures a frame from the camera and classifies it.
//
// Arguments:
//   - ctx: Checked before capture and before inference.
//   - cam: The camera to capture from.
//
// Returns:
//   - postprocess.Result: The winning label and confidence.
//   - error: An *Error of kind Unavailable (no capture attempted), CaptureFailed (no
//     inference attempted) or Prediction; or the context error.
func (c *Classifier) Check(ctx context.Context, cam camera.Camera) (postprocess.Result, error) {
	if c.handle == nil {
		return postprocess.Result{}, &Error{Kind: Unavailable, Err: errors.New("no model loaded")}
	}
	if err := ctx.Err(); err != nil {
		return postprocess.Result{}, err
	}

	done := c.timing.StartOperation(StageCapture)
	frame, err := cam.Capture(ctx)
	done()
	if err == nil && frame.Empty() {
		err = camera.ErrNoFrame
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return postprocess.Result{}, ctxErr
		}
		c.logger.WithError(err).Warn("capture failed")
		return postprocess.Result{}, &Error{Kind: CaptureFailed, Err: err}
	}

	return c.Classify(ctx, frame)
}

// Classify runs preprocessing, inference and postprocessing on a captured frame.
//
// Arguments:
//   - ctx: Checked before inference.
//   - frame: The BGR frame, any resolution.
//
// Returns:
//   - postprocess.Result: The winning label and confidence.
//   - error: An *Error of kind Unavailable or Prediction; or the context error. A panic
//     raised by preprocessing or the engine is reported as a Prediction error.
func (c *Classifier) Classify(ctx context.Context, frame *images.Frame) (result postprocess.Result, err error) {
	if c.handle == nil {
		return postprocess.Result{}, &Error{Kind: Unavailable, Err: errors.New("no model loaded")}
	}

	defer func() {
		if r := recover(); r != nil {
			result = postprocess.Result{}
			err = c.predictionError(errors.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()
	done := c.timing.StartOperation(StagePreprocess)
	input, err := c.pre.Preprocess(frame)
	done()
	if err != nil {
		return postprocess.Result{}, c.predictionError(errors.Wrap(err, "preprocess"))
	}

	if err := ctx.Err(); err != nil {
		return postprocess.Result{}, err
	}

	done = c.timing.StartOperation(StageInference)
	scores, err := c.handle.Run(input)
	done()
	if err != nil {
		return postprocess.Result{}, c.predictionError(err)
	}

	done = c.timing.StartOperation(StagePostprocess)
	result, err = postprocess.Resolve(scores, c.labels)
	done()
	if err != nil {
		return postprocess.Result{}, c.predictionError(errors.Wrap(err, "postprocess"))
	}

	c.logger.WithFields(logrus.Fields{
		"label":      result.Label,
		"confidence": result.Confidence,
		"elapsed":    time.Since(start),
	}).Info("frame classified")
	return result, nil
}

func (c *Classifier) predictionError(err error) error {
	c.logger.WithError(err).Error("prediction failed")
	return &Error{Kind: Prediction, Err: err}
}
