// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/xmlembed/internal/api/middleware"
	"github.com/ManuGH/xmlembed/internal/auth"
	"github.com/ManuGH/xmlembed/internal/domain/submission/model"
	"github.com/ManuGH/xmlembed/internal/history"
	"github.com/ManuGH/xmlembed/internal/log"
	"github.com/ManuGH/xmlembed/internal/telemetry"
	"github.com/ManuGH/xmlembed/internal/workflow"
)

// CreateSubmissionRequest is the body of POST /api/v1/submissions.
type CreateSubmissionRequest struct {
	Kind    string `json:"kind"`
	Payload string `json:"payload"`
	// Source labels unauthenticated submissions. It is ignored when the
	// request carries a token; the principal is recorded instead.
	Source string `json:"source,omitempty"`
}

// ListResponse is the body of GET /api/v1/submissions.
type ListResponse struct {
	Items  []history.Record `json:"items"`
	Active string           `json:"active,omitempty"`
}

const maxListLimit = 500

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	var req CreateSubmissionRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "malformed JSON body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "body must contain a single JSON object")
		return
	}

	kind, err := model.ParseSubmitKind(req.Kind)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Payload) == "" {
		writeDomainError(w, r, model.ErrEmptyPayload)
		return
	}
	source := submissionSource(r, req.Source)

	handle, err := s.runner.Submit(r.Context(), workflow.Request{Kind: kind, Payload: req.Payload, Source: source})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	middleware.AddSpanAttributes(r, telemetry.SubmissionAttributes(handle.ID, kind.Token())...)

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "api.submission_accepted").
		Str(log.FieldSubmissionID, handle.ID).
		Str(log.FieldKind, kind.Token()).
		Msg("submission accepted")

	rec, err := s.store.Get(r.Context(), handle.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/submissions/%s", handle.ID))
	writeJSON(w, r, http.StatusAccepted, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, r, http.StatusBadRequest, CodeInvalidRequest,
				fmt.Sprintf("limit must be an integer between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}
	items, err := s.store.List(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if items == nil {
		items = []history.Record{}
	}
	active, _ := s.runner.Active()
	writeJSON(w, r, http.StatusOK, ListResponse{Items: items, Active: active})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.runner.Cancel(id); err != nil {
		if errors.Is(err, workflow.ErrNotActive) {
			if _, getErr := s.store.Get(r.Context(), id); getErr != nil {
				writeDomainError(w, r, getErr)
				return
			}
		}
		writeDomainError(w, r, err)
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "api.cancel_requested").
		Str(log.FieldSubmissionID, id).
		Msg("cancellation requested")

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, rec)
}

// submissionSource returns the audit source for a submission. An
// authenticated principal always wins over the client-supplied label.
func submissionSource(r *http.Request, label string) string {
	if id := auth.PrincipalFromContext(r.Context()); id != "" {
		return "api:" + id
	}
	if label != "" {
		return label
	}
	return "api"
}
