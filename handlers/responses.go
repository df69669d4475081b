// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/dekuf/ingest"
	"github.com/danielhkuo/dekuf/middleware"
)

type ResponseHandler struct {
	ingestor *ingest.Ingestor
}

func NewResponseHandler(ing *ingest.Ingestor) *ResponseHandler {
	return &ResponseHandler{ingestor: ing}
}

// SubmitResponse handles POST /api/survey-response/
func (h *ResponseHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	req, err := ingest.Decode(http.MaxBytesReader(w, r.Body, middleware.MaxBodyBytes))
	if err != nil {
		writeError(w, "decode survey response", err)
		return
	}

	resp, err := h.ingestor.Submit(r.Context(), req)
	if err != nil {
		writeError(w, "ingest survey response", err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// SubmitDelegateResponse handles POST /api/delegate/:delegate_id/response
func (h *ResponseHandler) SubmitDelegateResponse(w http.ResponseWriter, r *http.Request) {
	delegateID := r.PathValue("delegate_id")
	if delegateID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "delegate_id is required")
		return
	}

	defer r.Body.Close()
	req, err := ingest.Decode(http.MaxBytesReader(w, r.Body, middleware.MaxBodyBytes))
	if err != nil {
		writeError(w, "decode delegate response", err)
		return
	}

	resp, err := h.ingestor.SubmitForDelegate(r.Context(), delegateID, req)
	if err != nil {
		writeError(w, "ingest delegate response", err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, resp)
}
