// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/dekuf/grouping"
	"github.com/danielhkuo/dekuf/middleware"
	"github.com/danielhkuo/dekuf/models"
)

type SignupHandler struct {
	engine *grouping.Engine
}

func NewSignupHandler(engine *grouping.Engine) *SignupHandler {
	return &SignupHandler{engine: engine}
}

// Signup handles POST /api/survey-signup/:survey_id/
func (h *SignupHandler) Signup(w http.ResponseWriter, r *http.Request) {
	surveyID := r.PathValue("survey_id")
	if surveyID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "survey_id is required")
		return
	}

	signup, err := h.engine.Signup(r.Context(), surveyID)
	if err != nil {
		writeError(w, "create signup", err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.SignupResponse{
		ClientID: signup.ID,
		SurveyID: signup.SurveyID,
		Time:     signup.CreatedAt,
	})
}

// GetState handles GET /api/survey-signup/:client_id/state
func (h *SignupHandler) GetState(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("client_id")
	if clientID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "client_id is required")
		return
	}

	state, err := h.engine.State(r.Context(), clientID)
	if err != nil {
		writeError(w, "query signup state", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, state)
}
