// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - CreateSurveyRequest: id, name, commissioners, queries
  - SurveyResponseRequest: survey_id, commissioners, queryResponses
  - QueryResponseRequest: data_key, data (raw JSON)
  - CommissionerRequest: id, name

# Response Types

Types for JSON responses:

  - SignupResponse: client_id, survey_id, time
  - SignupState: delegate_id, aggregation_started
  - MessagesResponse: messages
  - SurveyAggregatesResponse: survey_id, aggregates
  - ErrorResponse: error, message, fields

# Domain Types

Stored records:

  - Survey, Query, Commissioner
  - SurveySignup: one respondent waiting for (or assigned to) a group
  - AggregationGroup: signups that submit one combined response
  - ClientToDelegateMessage: relayed payload for a delegate
  - SurveyResponse, QueryResponse

# Constants

Aggregate kinds:

	KindNumeric  = "numeric"
	KindDiscrete = "discrete"
*/
package models
