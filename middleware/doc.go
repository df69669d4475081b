// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs completion with status, bytes written, duration_ms and the request id
assigned by chi's RequestID middleware.

# Request Metrics

WithMetrics observes handler latency under the registered route pattern:

	mux.HandleFunc(pattern, middleware.WithMetrics(m, pattern, handler))

# CORS Middleware

Enable cross-origin requests for survey clients:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.ValidationErrorResponse(w, verr)

Parse JSON request bodies (capped at MaxBodyBytes):

	var req models.CreateSurveyRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
