package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Mapped to a status code from the sentinel they wrap
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Status is chosen by statusFor, message by core.MapError
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is written as JSON

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/fieldmap/internal/core"
	"github.com/JonMunkholm/fieldmap/internal/importer"
	"github.com/JonMunkholm/fieldmap/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"` // Technical detail, client errors only
}

// errRateLimited is the body returned by the rate limiter.
var errRateLimited = core.MapError(errors.New("rate limit exceeded"))

// errNoFile is returned when an upload has no file part or body.
var errNoFile = errors.New("no file provided")

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, importer.ErrSessionNotFound),
		errors.Is(err, core.ErrUnknownSchema),
		errors.Is(err, core.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrPresetExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrRequiredUnmapped),
		errors.Is(err, core.ErrDuplicateTarget),
		errors.Is(err, core.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, core.ErrInvalidCSV),
		errors.Is(err, core.ErrUnsupportedEncoding),
		errors.Is(err, core.ErrUnknownField),
		errors.Is(err, core.ErrUnknownColumn),
		errors.Is(err, core.ErrPresetInvalid),
		errors.Is(err, errNoFile),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the user-facing message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	resp := ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}
	if status < http.StatusInternalServerError {
		resp.Detail = err.Error()
	}
	writeJSONStatus(w, resp, status)
}

// respondErrorJSON writes a JSON error response without logging.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	writeJSONStatus(w, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}, statusCode)
}

// writeJSON encodes v as JSON with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, v, http.StatusOK)
}

// writeJSONStatus encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
