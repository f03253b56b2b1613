package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/classifier"
	"github.com/nvr-ai/go-freshness/controller"
	"github.com/nvr-ai/go-freshness/images"
	"github.com/nvr-ai/go-freshness/models/postprocess"
	"github.com/nvr-ai/go-freshness/profiler"
)

// MaxUploadBytes bounds the multipart body accepted by /classify.
const MaxUploadBytes = 10 << 20

// Handler serves the controller over HTTP.
type Handler struct {
	ctrl   *controller.Controller
	logger logrus.FieldLogger
}

// NewHandler creates a handler.
func NewHandler(ctrl *controller.Controller, logger logrus.FieldLogger) *Handler {
	return &Handler{
		ctrl:   ctrl,
		logger: logger.WithField("component", "api"),
	}
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// ResultResponse is the body of a successful classification.
type ResultResponse struct {
	RequestID string             `json:"request_id"`
	Result    postprocess.Result `json:"result"`
	Status    string             `json:"status"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
	Status    string `json:"status,omitempty"`
}

// Health reports liveness and whether a model is loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:      "healthy",
		ModelLoaded: h.ctrl.Snapshot().ModelLoaded,
	})
}

// Status returns the controller snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.ctrl.Snapshot())
}

// MetricsResponse is the /metrics body.
type MetricsResponse struct {
	Stages map[string]profiler.Stats `json:"stages"`
}

// Metrics returns per-stage pipeline latency.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, MetricsResponse{Stages: h.ctrl.Timings()})
}

// Toggle presses the Open/Stop button.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ctrl.Toggle(); err != nil {
		h.log(r).WithError(err).Warn("toggle failed")
		h.writeError(w, r, http.StatusServiceUnavailable, controller.StatusCameraErr)
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.ctrl.Snapshot())
}

// Check presses the Check button.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	result, err := h.ctrl.Check(r.Context())
	h.writeResult(w, r, result, err)
}

// Classify runs the pipeline on an uploaded image, form field "image".
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "failed to parse form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "no image file provided, use 'image' as the form field name")
		return
	}
	defer file.Close()

	frame, format, err := images.Decode(file)
	if err != nil {
		h.log(r).WithError(err).WithField("filename", header.Filename).Warn("upload rejected")
		if errors.Is(err, images.ErrTooLarge) {
			h.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("image too large, at most %d pixels", images.MaxPixels))
			return
		}
		h.writeError(w, r, http.StatusBadRequest, "invalid image, supported formats: jpeg, png, webp")
		return
	}

	h.log(r).WithFields(logrus.Fields{
		"filename": header.Filename,
		"format":   format,
		"width":    frame.Width,
		"height":   frame.Height,
	}).Debug("upload decoded")

	result, err := h.ctrl.ClassifyFrame(r.Context(), frame)
	h.writeResult(w, r, result, err)
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, result postprocess.Result, err error) {
	if err != nil {
		h.writeError(w, r, statusCode(err), controller.StatusText(err))
		return
	}
	h.writeJSON(w, r, http.StatusOK, ResultResponse{
		RequestID: RequestID(r.Context()),
		Result:    result,
		Status:    h.ctrl.Status(),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	h.writeJSON(w, r, code, ErrorResponse{
		RequestID: RequestID(r.Context()),
		Error:     message,
		Status:    h.ctrl.Status(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log(r).WithError(err).Error("failed to write response")
	}
}

func (h *Handler) log(r *http.Request) logrus.FieldLogger {
	return h.logger.WithField("request_id", RequestID(r.Context()))
}

// statusCode maps an action error to an HTTP status.
func statusCode(err error) int {
	switch {
	case errors.Is(err, controller.ErrCheckDisabled):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	switch classifier.KindOf(err) {
	case classifier.Unavailable, classifier.CaptureFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
