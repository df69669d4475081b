// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package grouping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/dekuf/db"
	"github.com/danielhkuo/dekuf/metrics"
	"github.com/danielhkuo/dekuf/models"
	"github.com/danielhkuo/dekuf/survey"
)

var (
	ErrSignupNotFound = errors.New("signup not found")
	ErrGroupNotFound  = errors.New("aggregation group not found")
)

// Engine clusters ungrouped signups of a survey into aggregation groups.
type Engine struct {
	db      *sql.DB
	size    int
	locks   *surveyLocks
	metrics *metrics.Metrics
}

// NewEngine returns an engine that forms a group every time size ungrouped
// signups of one survey are waiting. m may be nil.
func NewEngine(conn *sql.DB, size int, m *metrics.Metrics) *Engine {
	if size < 2 {
		size = 2
	}
	return &Engine{
		db:      conn,
		size:    size,
		locks:   newSurveyLocks(),
		metrics: m,
	}
}

// GroupSize is the number of signups per group.
func (e *Engine) GroupSize() int {
	return e.size
}

// Signup registers a respondent for a survey, then runs a grouping pass for
// that survey. A failed pass is logged, not returned: the signup stands and
// the next signup retries grouping.
func (e *Engine) Signup(ctx context.Context, surveyID string) (models.SurveySignup, error) {
	exists, err := survey.Exists(ctx, e.db, surveyID)
	if err != nil {
		return models.SurveySignup{}, err
	}
	if !exists {
		return models.SurveySignup{}, survey.ErrSurveyNotFound
	}

	id, err := uuid.NewV7()
	if err != nil {
		return models.SurveySignup{}, fmt.Errorf("failed to generate signup id: %w", err)
	}

	signup := models.SurveySignup{
		ID:        id.String(),
		SurveyID:  surveyID,
		CreatedAt: time.Now().UTC(),
	}

	_, err = e.db.ExecContext(ctx, `
		INSERT INTO survey_signup (id, survey_id, group_id, created_at)
		VALUES ($1, $2, NULL, $3)
	`, signup.ID, signup.SurveyID, signup.CreatedAt)
	if err != nil {
		return models.SurveySignup{}, fmt.Errorf("failed to insert signup: %w", err)
	}

	e.metrics.SignupCreated()
	slog.Info("signup created", "client_id", signup.ID, "survey_id", surveyID)

	groups, err := e.GroupUngroupedSignups(ctx, surveyID)
	if err != nil {
		slog.Error("grouping pass failed", "survey_id", surveyID, "error", err)
		return signup, nil
	}
	for _, g := range groups {
		for _, member := range g.MemberIDs {
			if member == signup.ID {
				gid := g.ID
				signup.GroupID = &gid
			}
		}
	}

	return signup, nil
}

// GroupUngroupedSignups forms as many groups as the survey's ungrouped
// signups allow, oldest signups first, and returns the new groups. Below the
// threshold it does nothing. Passes for one survey never overlap, and each
// membership is assigned with a compare-and-set so no signup can land in two
// groups even across processes.
func (e *Engine) GroupUngroupedSignups(ctx context.Context, surveyID string) ([]models.AggregationGroup, error) {
	unlock := e.locks.lock(surveyID)
	defer unlock()

	var formed []models.AggregationGroup
	err := db.RetryTx(ctx, e.db, db.DefaultAttempts, e.metrics.RetryCounter("grouping"), func(tx *sql.Tx) error {
		formed = nil

		ungrouped, err := ungroupedSignups(ctx, tx, surveyID)
		if err != nil {
			return err
		}

		for len(ungrouped) >= e.size {
			batch := ungrouped[:e.size]
			ungrouped = ungrouped[e.size:]

			g, err := formGroup(ctx, tx, surveyID, batch)
			if err != nil {
				return err
			}
			formed = append(formed, g)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, g := range formed {
		slog.Info("aggregation group formed",
			"group_id", g.ID,
			"survey_id", surveyID,
			"delegate_id", g.DelegateID,
			"members", len(g.MemberIDs),
		)
	}
	e.metrics.GroupsFormed(len(formed))

	return formed, nil
}

// ungroupedSignups lists a survey's signups without a group, oldest first.
func ungroupedSignups(ctx context.Context, q db.DBTX, surveyID string) ([]models.SurveySignup, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, survey_id, created_at
		FROM survey_signup
		WHERE survey_id = $1 AND group_id IS NULL
		ORDER BY created_at, id
	`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ungrouped signups: %w", err)
	}
	defer rows.Close()

	var signups []models.SurveySignup
	for rows.Next() {
		var s models.SurveySignup
		if err := rows.Scan(&s.ID, &s.SurveyID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signup: %w", err)
		}
		signups = append(signups, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read signups: %w", err)
	}

	return signups, nil
}

// formGroup creates a group for batch and elects batch[0], the earliest
// signup, as delegate.
func formGroup(ctx context.Context, tx *sql.Tx, surveyID string, batch []models.SurveySignup) (models.AggregationGroup, error) {
	g := models.AggregationGroup{
		ID:         uuid.NewString(),
		SurveyID:   surveyID,
		DelegateID: batch[0].ID,
		MemberIDs:  make([]string, 0, len(batch)),
		CreatedAt:  time.Now().UTC(),
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO aggregation_group (id, survey_id, delegate_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, g.ID, g.SurveyID, g.DelegateID, g.CreatedAt)
	if err != nil {
		return models.AggregationGroup{}, fmt.Errorf("failed to insert group: %w", err)
	}

	for _, s := range batch {
		res, err := tx.ExecContext(ctx, `
			UPDATE survey_signup
			SET group_id = $1
			WHERE id = $2 AND survey_id = $3 AND group_id IS NULL
		`, g.ID, s.ID, surveyID)
		if err != nil {
			return models.AggregationGroup{}, fmt.Errorf("failed to assign signup: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return models.AggregationGroup{}, fmt.Errorf("failed to assign signup: %w", err)
		}
		if n != 1 {
			return models.AggregationGroup{}, fmt.Errorf("signup %s already grouped: %w", s.ID, db.ErrConflict)
		}
		g.MemberIDs = append(g.MemberIDs, s.ID)
	}

	return g, nil
}

// State reports whether a signup has been grouped and who its delegate is.
func (e *Engine) State(ctx context.Context, clientID string) (models.SignupState, error) {
	var groupID, delegateID sql.NullString
	err := e.db.QueryRowContext(ctx, `
		SELECT s.group_id, g.delegate_id
		FROM survey_signup s
		LEFT JOIN aggregation_group g ON g.id = s.group_id
		WHERE s.id = $1
	`, clientID).Scan(&groupID, &delegateID)
	if err == sql.ErrNoRows {
		return models.SignupState{}, ErrSignupNotFound
	}
	if err != nil {
		return models.SignupState{}, fmt.Errorf("failed to query signup: %w", err)
	}

	if !groupID.Valid {
		return models.SignupState{DelegateID: "", AggregationStarted: false}, nil
	}

	return models.SignupState{DelegateID: delegateID.String, AggregationStarted: true}, nil
}

// GroupByDelegate loads the open group whose delegate is delegateID,
// including its member ids oldest first.
func GroupByDelegate(ctx context.Context, q db.DBTX, delegateID string) (models.AggregationGroup, error) {
	var g models.AggregationGroup
	err := q.QueryRowContext(ctx, `
		SELECT id, survey_id, delegate_id, created_at
		FROM aggregation_group
		WHERE delegate_id = $1
	`, delegateID).Scan(&g.ID, &g.SurveyID, &g.DelegateID, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return models.AggregationGroup{}, ErrGroupNotFound
	}
	if err != nil {
		return models.AggregationGroup{}, fmt.Errorf("failed to query group: %w", err)
	}

	members, err := memberIDs(ctx, q, g.ID)
	if err != nil {
		return models.AggregationGroup{}, err
	}
	g.MemberIDs = members

	return g, nil
}

// Groups lists a survey's open groups, oldest first.
func Groups(ctx context.Context, q db.DBTX, surveyID string) ([]models.AggregationGroup, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, survey_id, delegate_id, created_at
		FROM aggregation_group
		WHERE survey_id = $1
		ORDER BY created_at, id
	`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}

	var groups []models.AggregationGroup
	for rows.Next() {
		var g models.AggregationGroup
		if err := rows.Scan(&g.ID, &g.SurveyID, &g.DelegateID, &g.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read groups: %w", err)
	}
	rows.Close()

	for i := range groups {
		members, err := memberIDs(ctx, q, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].MemberIDs = members
	}

	return groups, nil
}

func memberIDs(ctx context.Context, q db.DBTX, groupID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM survey_signup WHERE group_id = $1 ORDER BY created_at, id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query group members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read group members: %w", err)
	}

	return ids, nil
}

// Dissolve deletes a group's relayed messages, its member signups and the
// group itself. It must run inside the transaction that ingested the
// delegate's response so that all of it commits or none of it does.
func Dissolve(ctx context.Context, tx *sql.Tx, groupID string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM client_to_delegate_message WHERE group_id = $1
	`, groupID); err != nil {
		return 0, fmt.Errorf("failed to delete group messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM survey_signup WHERE group_id = $1
	`, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete group signups: %w", err)
	}
	signups, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete group signups: %w", err)
	}

	res, err = tx.ExecContext(ctx, `
		DELETE FROM aggregation_group WHERE id = $1
	`, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete group: %w", err)
	}
	if n != 1 {
		return 0, fmt.Errorf("group %s already dissolved: %w", groupID, db.ErrConflict)
	}

	return signups, nil
}
