// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/ManuGH/xmlembed/internal/history"
	"github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/workflow"
)

// Error codes returned in the "error" field.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeBusy           = "backend_busy"
	CodeNotActive      = "not_active"
	CodeInternal       = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// classify maps domain errors onto an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrUnknownSubmitKind), errors.Is(err, model.ErrEmptyPayload):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, workflow.ErrBusy):
		return http.StatusConflict, CodeBusy
	case errors.Is(err, workflow.ErrNotActive):
		return http.StatusConflict, CodeNotActive
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).Str("event", "api.encode_failed").Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	writeJSON(w, r, status, ErrorResponse{
		Error:     code,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeDomainError classifies err. Internal errors are logged and their detail withheld.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str("event", "api.internal_error").Msg("request failed")
		detail = ""
	}
	writeError(w, r, status, code, detail)
}
