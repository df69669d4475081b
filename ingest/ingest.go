// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/dekuf/aggregate"
	"github.com/danielhkuo/dekuf/db"
	"github.com/danielhkuo/dekuf/grouping"
	"github.com/danielhkuo/dekuf/metrics"
	"github.com/danielhkuo/dekuf/models"
	"github.com/danielhkuo/dekuf/survey"
)

type Ingestor struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

// New returns an ingestor over conn. m may be nil.
func New(conn *sql.DB, m *metrics.Metrics) *Ingestor {
	return &Ingestor{db: conn, metrics: m}
}

// Submit stores a response from a single respondent. The survey is taken
// from req.SurveyID, or else from the one survey owning every data_key.
func (ing *Ingestor) Submit(ctx context.Context, req models.SurveyResponseRequest) (models.SurveyResponse, error) {
	if err := Validate(req); err != nil {
		return models.SurveyResponse{}, err
	}

	var resp models.SurveyResponse
	err := db.RetryTx(ctx, ing.db, db.DefaultAttempts, ing.metrics.RetryCounter("ingest"), func(tx *sql.Tx) error {
		surveyID, err := resolveSurvey(ctx, tx, req)
		if err != nil {
			return err
		}
		resp, err = store(ctx, tx, surveyID, nil, req)
		return err
	})
	if err != nil {
		return models.SurveyResponse{}, err
	}

	ing.metrics.ResponseIngested(metrics.SourceDirect)
	slog.Info("survey response ingested",
		"response_id", resp.ID,
		"survey_id", resp.SurveyID,
		"answers", len(resp.QueryResponses),
	)

	return resp, nil
}

// SubmitForDelegate stores the merged response of delegateID's group and
// dissolves the group. Both commit together or not at all.
func (ing *Ingestor) SubmitForDelegate(ctx context.Context, delegateID string, req models.SurveyResponseRequest) (models.SurveyResponse, error) {
	var (
		resp    models.SurveyResponse
		groupID string
		members int64
	)
	err := db.RetryTx(ctx, ing.db, db.DefaultAttempts, ing.metrics.RetryCounter("ingest_delegate"), func(tx *sql.Tx) error {
		g, err := grouping.GroupByDelegate(ctx, tx, delegateID)
		if err != nil {
			return err
		}
		if err := Validate(req); err != nil {
			return err
		}
		if req.SurveyID != "" && req.SurveyID != g.SurveyID {
			verr := models.NewValidationError()
			verr.Add("survey_id", "Does not match the delegate's survey.")
			return verr
		}

		delegate := delegateID
		resp, err = store(ctx, tx, g.SurveyID, &delegate, req)
		if err != nil {
			return err
		}

		groupID = g.ID
		members, err = grouping.Dissolve(ctx, tx, g.ID)
		return err
	})
	if err != nil {
		return models.SurveyResponse{}, err
	}

	ing.metrics.ResponseIngested(metrics.SourceDelegate)
	ing.metrics.GroupDissolved()
	slog.Info("delegate response ingested",
		"response_id", resp.ID,
		"survey_id", resp.SurveyID,
		"delegate_id", delegateID,
		"group_id", groupID,
		"signups_released", members,
	)

	return resp, nil
}

func resolveSurvey(ctx context.Context, tx *sql.Tx, req models.SurveyResponseRequest) (string, error) {
	if req.SurveyID != "" {
		exists, err := survey.Exists(ctx, tx, req.SurveyID)
		if err != nil {
			return "", err
		}
		if !exists {
			verr := models.NewValidationError()
			verr.Add("survey_id", "Survey does not exist.")
			return "", verr
		}
		return req.SurveyID, nil
	}

	keys := make([]string, 0, len(req.QueryResponses))
	for _, qr := range req.QueryResponses {
		keys = append(keys, qr.DataKey)
	}

	surveyID, err := survey.ResolveSurveyID(ctx, tx, keys)
	if errors.Is(err, survey.ErrNoSurveyMatch) {
		verr := models.NewValidationError()
		verr.Add("survey_id", "Could not determine a single survey from the given data keys.")
		return "", verr
	}
	return surveyID, err
}

// store writes the response and its answers, then applies the merged
// aggregates. Answers that cannot be aggregated fail the whole call.
func store(ctx context.Context, tx *sql.Tx, surveyID string, delegateID *string, req models.SurveyResponseRequest) (models.SurveyResponse, error) {
	queries, err := survey.Queries(ctx, tx, surveyID)
	if err != nil {
		return models.SurveyResponse{}, err
	}
	byKey := make(map[string]models.Query, len(queries))
	for _, q := range queries {
		byKey[q.DataKey] = q
	}

	pending, err := mergeAnswers(byKey, req.QueryResponses)
	if err != nil {
		return models.SurveyResponse{}, err
	}

	resp := models.SurveyResponse{
		ID:             uuid.NewString(),
		SurveyID:       surveyID,
		DelegateID:     delegateID,
		Commissioners:  []models.Commissioner{},
		QueryResponses: make([]models.QueryResponse, 0, len(req.QueryResponses)),
		CreatedAt:      time.Now().UTC(),
	}

	var delegate sql.NullString
	if delegateID != nil {
		delegate = sql.NullString{String: *delegateID, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO survey_response (id, survey_id, delegate_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, resp.ID, resp.SurveyID, delegate, resp.CreatedAt)
	if err != nil {
		return models.SurveyResponse{}, fmt.Errorf("failed to insert survey response: %w", err)
	}

	for _, name := range commissionerNames(req.Commissioners) {
		c, err := survey.GetOrCreateCommissioner(ctx, tx, name)
		if err != nil {
			return models.SurveyResponse{}, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO survey_response_commissioner (survey_response_id, commissioner_id)
			VALUES ($1, $2)
		`, resp.ID, c.ID)
		if err != nil {
			return models.SurveyResponse{}, fmt.Errorf("failed to link commissioner: %w", err)
		}
		resp.Commissioners = append(resp.Commissioners, c)
	}

	for i, qr := range req.QueryResponses {
		data, err := compact(qr.Data)
		if err != nil {
			return models.SurveyResponse{}, err
		}
		answer := models.QueryResponse{
			ID:      uuid.NewString(),
			QueryID: byKey[qr.DataKey].ID,
			DataKey: qr.DataKey,
			Data:    data,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO query_response (id, survey_response_id, query_id, data_key, data, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, answer.ID, resp.ID, answer.QueryID, answer.DataKey, string(answer.Data), i)
		if err != nil {
			return models.SurveyResponse{}, fmt.Errorf("failed to insert query response: %w", err)
		}
		resp.QueryResponses = append(resp.QueryResponses, answer)
	}

	for _, p := range pending {
		if err := writeAggregate(ctx, tx, p); err != nil {
			return models.SurveyResponse{}, err
		}
	}

	return resp, nil
}

// pendingAggregate is a query's merged aggregate waiting to be written over
// the version it was read at.
type pendingAggregate struct {
	query models.Query
	agg   aggregate.Aggregate
}

// mergeAnswers folds every answer into its query's aggregate in memory, in
// request order, and returns one result per touched query sorted by query
// id. All unknown keys and unusable answers are reported together.
func mergeAnswers(byKey map[string]models.Query, answers []models.QueryResponseRequest) ([]pendingAggregate, error) {
	verr := models.NewValidationError()
	merged := make(map[string]*pendingAggregate)

	for i, qr := range answers {
		q, ok := byKey[qr.DataKey]
		if !ok {
			verr.Add(fmt.Sprintf("queryResponses[%d].data_key", i), "No query with this data_key in the survey.")
			continue
		}

		p, ok := merged[q.ID]
		if !ok {
			agg, err := aggregate.Decode(q, q.Aggregate)
			if err != nil {
				return nil, err
			}
			p = &pendingAggregate{query: q, agg: agg}
			merged[q.ID] = p
		}

		next, err := aggregate.Merge(q, p.agg, qr.Data)
		if err != nil {
			verr.Add(fmt.Sprintf("queryResponses[%d].data", i), answerMessage(err))
			continue
		}
		p.agg = next
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	out := make([]pendingAggregate, 0, len(merged))
	for _, p := range merged {
		out = append(out, *p)
	}
	// Fixed write order keeps concurrent ingestions from deadlocking
	sort.Slice(out, func(i, j int) bool { return out[i].query.ID < out[j].query.ID })

	return out, nil
}

func writeAggregate(ctx context.Context, tx *sql.Tx, p pendingAggregate) error {
	encoded, err := p.agg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode aggregate for %s: %w", p.query.DataKey, err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE survey_query
		SET aggregate = $1, version = version + 1
		WHERE id = $2 AND version = $3
	`, string(encoded), p.query.ID, p.query.Version)
	if err != nil {
		return fmt.Errorf("failed to update aggregate for %s: %w", p.query.DataKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update aggregate for %s: %w", p.query.DataKey, err)
	}
	if n != 1 {
		return fmt.Errorf("aggregate for %s changed concurrently: %w", p.query.DataKey, db.ErrConflict)
	}

	return nil
}

func answerMessage(err error) string {
	switch {
	case errors.Is(err, aggregate.ErrNotNumeric):
		return "A valid number is required."
	case errors.Is(err, aggregate.ErrNotInCohorts):
		return "Value is not one of the query's cohorts."
	default:
		return "This answer cannot be aggregated."
	}
}

func compact(data json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to compact answer: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
