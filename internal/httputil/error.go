package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AdamBeresnev/pong-arena/internal/apperr"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string         `json:"error"`
	Kind    apperr.Kind    `json:"kind,omitempty"`
	Details apperr.Details `json:"details,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response", zap.Error(err))
	}
}

// StatusOf maps an error to the HTTP status the API answers with.
func StatusOf(err error) int {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return http.StatusBadRequest
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// Error answers with the status for err. Unexpected errors are logged and hidden from
// the client.
func Error(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		InternalServerError(w, logger, msg, err)
		return
	}
	logger.Debug(msg, zap.Int("status", status), zap.Error(err))
	WriteJSON(w, logger, status, errorBody{
		Error:   err.Error(),
		Kind:    apperr.KindOf(err),
		Details: apperr.DetailsOf(err),
	})
}

func InternalServerError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	logger.Error(msg, zap.Error(err))
	WriteJSON(w, logger, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

func BadRequest(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	if err != nil {
		logger.Debug("bad request", zap.String("message", msg), zap.Error(err))
	} else {
		logger.Debug("bad request", zap.String("message", msg))
	}
	WriteJSON(w, logger, http.StatusBadRequest, errorBody{Error: msg})
}
