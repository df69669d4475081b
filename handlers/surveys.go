// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/dekuf/cliparse"
	"github.com/danielhkuo/dekuf/middleware"
	"github.com/danielhkuo/dekuf/models"
	"github.com/danielhkuo/dekuf/survey"
)

type SurveyHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewSurveyHandler(db *sql.DB, cfg cliparse.Config) *SurveyHandler {
	return &SurveyHandler{db: db, cfg: cfg}
}

// ListSurveys handles GET /api/surveys/
func (h *SurveyHandler) ListSurveys(w http.ResponseWriter, r *http.Request) {
	surveys, err := survey.List(r.Context(), h.db)
	if err != nil {
		writeError(w, "list surveys", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, surveys)
}

// CreateSurvey handles POST /api/surveys/
func (h *SurveyHandler) CreateSurvey(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSurveyRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	s, err := survey.Create(r.Context(), h.db, req)
	if err != nil {
		writeError(w, "create survey", err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, s)
}

// GetAggregates handles GET /api/surveys/:survey_id/aggregates
func (h *SurveyHandler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	surveyID := r.PathValue("survey_id")
	if surveyID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "survey_id is required")
		return
	}

	resp, err := survey.Aggregates(r.Context(), h.db, surveyID)
	if err != nil {
		writeError(w, "load aggregates", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
