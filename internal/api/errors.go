package api

import (
	"errors"
	"net/http"

	"demoforge/internal/services"
)

// StatusCode maps a Service error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConcurrentRun):
		return http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody builds the JSON error payload for err.
func ErrorBody(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	details := services.Details(err)
	return ErrorResponse{Error: details.Message, Kind: details.Kind}
}
