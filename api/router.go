// Package api - HTTP surface for the freshness controller.
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/controller"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

type contextKey int

const requestIDKey contextKey = iota

// NewRouter builds the HTTP routes over a controller.
//
// Arguments:
//   - ctrl: The controller every route acts on.
//   - logger: Receives one entry per request.
//
// Returns:
//   - *mux.Router: The router.
func NewRouter(ctrl *controller.Controller, logger logrus.FieldLogger) *mux.Router {
	h := NewHandler(ctrl, logger)

	r := mux.NewRouter()
	r.Use(h.requestID)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.Metrics).Methods(http.MethodGet)
	r.HandleFunc("/camera/toggle", h.Toggle).Methods(http.MethodPost)
	r.HandleFunc("/check", h.Check).Methods(http.MethodPost)
	r.HandleFunc("/classify", h.Classify).Methods(http.MethodPost)
	return r
}

// requestID tags each request with an id, reusing a valid incoming one.
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)

		h.logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Debug("request")

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestID returns the request id attached by the router, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
