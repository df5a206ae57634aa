package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jacentio/grove/board"
)

// Message is the body of error responses.
type Message struct {
	Message string `json:"message"`
}

// respond writes data as JSON with the given status code.
func respond(w http.ResponseWriter, logger *slog.Logger, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Warn("encode response", "error", err)
		}
	}
}

// statusOf maps a board error to an HTTP status code.
func statusOf(err error) int {
	switch {
	case errors.Is(err, board.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, board.ErrQuota):
		return http.StatusConflict
	case errors.Is(err, board.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

// fail writes err as a Message with its status code.
func fail(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := statusOf(err)
	if code == http.StatusServiceUnavailable {
		logger.Error("request failed", "error", err)
	}
	respond(w, logger, code, Message{Message: err.Error()})
}
