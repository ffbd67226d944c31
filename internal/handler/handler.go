// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/humanizer/humanizer/internal/handler/dto"
	"github.com/humanizer/humanizer/internal/middleware"
	"github.com/humanizer/humanizer/internal/service"
)

// humanizationFailedMessage is the only failure text users see for provider
// and storage problems.
const humanizationFailedMessage = "Failed to humanize text. Please try again."

// NotFound handles 404 responses.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
}

// MethodNotAllowed handles 405 responses.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// decodeJSON reads a JSON body into dst. An empty body is accepted only
// when optional is set.
func decodeJSON(r *http.Request, dst any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return io.EOF
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeDecodeError answers a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
}

// writeServiceError maps service outcomes to the fixed API error set.
// Causes are logged, never returned to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	log := middleware.LoggerWithRequest(r.Context(), logger)
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err))
	case errors.Is(err, service.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "Insufficient credits. Please upgrade your plan.")
	case errors.Is(err, service.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found. Please register first.")
	case errors.Is(err, service.ErrJobInProgress):
		writeError(w, http.StatusConflict, "JOB_IN_PROGRESS", "A humanization is already in progress.")
	case errors.Is(err, service.ErrHumanizationFailed):
		log.Warn("humanization failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "HUMANIZATION_FAILED", humanizationFailedMessage)
	default:
		log.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// validationMessage returns the detail of a validation error. These messages
// are built by the service from request fields only.
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	if msg == "" || msg == service.ErrValidation.Error() {
		return "Invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
