// Package api provides the HTTP surface the chat UI talks to.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/hrchat/internal/app"
	"github.com/ashureev/hrchat/internal/domain"
	"github.com/ashureev/hrchat/internal/identity"
)

const maxRequestBodySize = 64 << 10

// Handler serves the presentation API over one App.
type Handler struct {
	app            *app.App
	hub            *Hub
	allowedOrigins []string
	logger         *slog.Logger
}

// NewHandler creates a Handler and starts pushing state changes to stream
// subscribers. allowedOrigins bounds which browser origins may open the state
// stream; "*" allows any.
func NewHandler(a *app.App, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{app: a, hub: NewHub(logger), allowedOrigins: allowedOrigins, logger: logger}
	a.Subscribe(h.hub.Broadcast)
	return h
}

// Hub returns the stream connection registry.
func (h *Handler) Hub() *Hub { return h.hub }

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// ErrorBody is the JSON body of a failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error writes a JSON error response with a machine-readable code.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Error: message, Code: code})
}

// StatusFor maps a core error to its HTTP status and machine-readable code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrMismatch):
		return http.StatusBadRequest, "mismatch"
	case errors.Is(err, domain.ErrInvalidRating):
		return http.StatusBadRequest, "invalid_rating"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrAuthRequired):
		return http.StatusUnauthorized, "auth_required"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrOutOfRange):
		return http.StatusNotFound, "out_of_range"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, domain.ErrServiceFailure):
		return http.StatusBadGateway, "service_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	Error(w, status, code, identity.Reason(err))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "validation", "invalid request body")
		return false
	}
	return true
}
