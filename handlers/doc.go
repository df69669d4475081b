// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the survey API.

# Handler Types

Each handler is a struct wrapping the component it exposes:

  - SurveyHandler: survey listing, creation and aggregate readout
  - SignupHandler: signups and grouping state (grouping.Engine)
  - RelayHandler: delegate mailbox (relay.Relay)
  - ResponseHandler: direct and delegate responses (ingest.Ingestor)

# Protocol Flow

A respondent signs up and polls its state until a group forms:

	POST /api/survey-signup/{survey_id}/ → Signup (201 client_id)
	GET  /api/survey-signup/{client_id}/state → GetState

Peers post their answers to the delegate, who reads them back:

	POST /api/delegate/{delegate_id}/messages → SendMessage (201)
	GET  /api/delegate/{delegate_id}/messages → GetMessages

The delegate submits the merged response, which dissolves the group:

	POST /api/delegate/{delegate_id}/response → SubmitDelegateResponse

Respondents that are never grouped submit directly:

	POST /api/survey-response/ → SubmitResponse

# Errors

Error bodies are models.ErrorResponse. Validation failures carry
per-field messages in "fields". An empty mailbox is a 400 with
"No messages found for: {delegate_id}".
*/
package handlers
