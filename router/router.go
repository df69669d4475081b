// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/danielhkuo/dekuf/cliparse"
	"github.com/danielhkuo/dekuf/grouping"
	"github.com/danielhkuo/dekuf/handlers"
	"github.com/danielhkuo/dekuf/ingest"
	"github.com/danielhkuo/dekuf/metrics"
	"github.com/danielhkuo/dekuf/middleware"
	"github.com/danielhkuo/dekuf/relay"
)

// NewRouter wires every endpoint onto a ServeMux and wraps it with request
// ids, real-IP resolution, panic recovery and CORS. m may be nil.
func NewRouter(db *sql.DB, cfg cliparse.Config, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	// Initialize handlers
	surveyHandler := handlers.NewSurveyHandler(db, cfg)
	signupHandler := handlers.NewSignupHandler(grouping.NewEngine(db, cfg.GroupSize, m))
	relayHandler := handlers.NewRelayHandler(relay.New(db, m))
	responseHandler := handlers.NewResponseHandler(ingest.New(db, m))

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, middleware.WithMetrics(m, pattern, middleware.WithLogging(h)))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", m.Handler())

	// Surveys
	handle("GET /api/surveys/{$}", surveyHandler.ListSurveys)
	handle("POST /api/surveys/{$}", surveyHandler.CreateSurvey)
	handle("GET /api/surveys/{survey_id}/aggregates", surveyHandler.GetAggregates)

	// Signup and grouping
	handle("POST /api/survey-signup/{survey_id}/{$}", signupHandler.Signup)
	handle("GET /api/survey-signup/{client_id}/state", signupHandler.GetState)

	// Delegate relay
	handle("POST /api/delegate/{delegate_id}/messages", relayHandler.SendMessage)
	handle("GET /api/delegate/{delegate_id}/messages", relayHandler.GetMessages)

	// Response ingestion
	handle("POST /api/survey-response/{$}", responseHandler.SubmitResponse)
	handle("POST /api/delegate/{delegate_id}/response", responseHandler.SubmitDelegateResponse)

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("dekuf API v1"))
	})

	return chi.Chain(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS,
	).Handler(mux)
}
