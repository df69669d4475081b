// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the survey API.

# Route Registration

NewRouter builds the handler tree with every endpoint:

	handler := router.NewRouter(db, cfg, metrics.New())

The ServeMux is wrapped with chi's RequestID, RealIP and Recoverer
middleware and with CORS. Every API route is also wrapped with request
logging and latency metrics.

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Surveys:

	GET  /api/surveys/                       - List surveys
	POST /api/surveys/                       - Create survey
	GET  /api/surveys/{survey_id}/aggregates - Running aggregates

Signup and grouping:

	POST /api/survey-signup/{survey_id}/     - Sign up, maybe form a group
	GET  /api/survey-signup/{client_id}/state - Delegate and grouping state

Delegate relay:

	POST /api/delegate/{delegate_id}/messages - Send to delegate
	GET  /api/delegate/{delegate_id}/messages - Read mailbox

Responses:

	POST /api/survey-response/                - Direct response
	POST /api/delegate/{delegate_id}/response - Group response, dissolves group
*/
package router
