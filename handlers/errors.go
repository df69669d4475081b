// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/dekuf/grouping"
	"github.com/danielhkuo/dekuf/ingest"
	"github.com/danielhkuo/dekuf/middleware"
	"github.com/danielhkuo/dekuf/models"
	"github.com/danielhkuo/dekuf/relay"
	"github.com/danielhkuo/dekuf/survey"
)

// writeError maps domain errors to HTTP responses. Anything unrecognised is
// logged under op and reported as a 500.
func writeError(w http.ResponseWriter, op string, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		middleware.ValidationErrorResponse(w, verr)
	case errors.Is(err, ingest.ErrMalformedInput):
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
	case errors.Is(err, relay.ErrInvalidPayload):
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid data format")
	case errors.Is(err, survey.ErrSurveyNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Survey not found")
	case errors.Is(err, grouping.ErrSignupNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Signup not found")
	case errors.Is(err, grouping.ErrGroupNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Aggregation group not found")
	default:
		slog.Error("failed to "+op, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
	}
}
