package models

import (
	"encoding/json"
	"time"
)

// Aggregate kinds
const (
	KindNumeric  = "numeric"
	KindDiscrete = "discrete"
)

// Request types

type CommissionerRequest struct {
	ID   string `json:"id,omitempty" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type CreateQueryRequest struct {
	DataKey  string   `json:"data_key" yaml:"data_key"`
	Discrete bool     `json:"discrete" yaml:"discrete"`
	Cohorts  []string `json:"cohorts" yaml:"cohorts"`
}

type CreateSurveyRequest struct {
	ID            string                `json:"id,omitempty" yaml:"id"`
	Name          string                `json:"name" yaml:"name"`
	Commissioners []CommissionerRequest `json:"commissioners" yaml:"commissioners"`
	Queries       []CreateQueryRequest  `json:"queries" yaml:"queries"`
}

// Data is kept raw so the aggregator sees the answer's JSON shape
type QueryResponseRequest struct {
	DataKey string          `json:"data_key"`
	Data    json.RawMessage `json:"data"`
}

// Commissioners and QueryResponses are nil when the field was absent
type SurveyResponseRequest struct {
	SurveyID       string                 `json:"survey_id,omitempty"`
	Commissioners  []CommissionerRequest  `json:"commissioners"`
	QueryResponses []QueryResponseRequest `json:"queryResponses"`
}

// Response types

type SignupResponse struct {
	ClientID string    `json:"client_id"`
	SurveyID string    `json:"survey_id"`
	Time     time.Time `json:"time"`
}

type SignupState struct {
	DelegateID         string `json:"delegate_id"`
	AggregationStarted bool   `json:"aggregation_started"`
}

type MessagesResponse struct {
	Messages []json.RawMessage `json:"messages"`
}

type QueryAggregate struct {
	DataKey   string          `json:"data_key"`
	Aggregate json.RawMessage `json:"aggregate"`
}

type SurveyAggregatesResponse struct {
	SurveyID   string           `json:"survey_id"`
	Aggregates []QueryAggregate `json:"aggregates"`
}

// Domain types

type Commissioner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Query struct {
	ID        string          `json:"id"`
	SurveyID  string          `json:"-"`
	DataKey   string          `json:"data_key"`
	Discrete  bool            `json:"discrete"`
	Cohorts   []string        `json:"cohorts"`
	Aggregate json.RawMessage `json:"-"`
	Version   int64           `json:"-"`
}

type Survey struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Commissioners []Commissioner `json:"commissioners"`
	Queries       []Query        `json:"queries"`
	CreatedAt     time.Time      `json:"created_at"`
}

type SurveySignup struct {
	ID        string    `json:"id"`
	SurveyID  string    `json:"survey_id"`
	GroupID   *string   `json:"group_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AggregationGroup struct {
	ID         string    `json:"id"`
	SurveyID   string    `json:"survey_id"`
	DelegateID string    `json:"delegate_id"`
	MemberIDs  []string  `json:"member_ids,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type ClientToDelegateMessage struct {
	Seq        int64           `json:"-"`
	ID         string          `json:"id"`
	DelegateID string          `json:"delegate_id"`
	GroupID    string          `json:"group_id"`
	Content    json.RawMessage `json:"content"`
	CreatedAt  time.Time       `json:"created_at"`
}

type QueryResponse struct {
	ID      string          `json:"id"`
	QueryID string          `json:"-"`
	DataKey string          `json:"data_key"`
	Data    json.RawMessage `json:"data"`
}

type SurveyResponse struct {
	ID             string          `json:"id"`
	SurveyID       string          `json:"survey_id"`
	DelegateID     *string         `json:"delegate_id,omitempty"`
	Commissioners  []Commissioner  `json:"commissioners"`
	QueryResponses []QueryResponse `json:"queryResponses"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Error response

type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}
