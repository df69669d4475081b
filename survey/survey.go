// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package survey

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/dekuf/aggregate"
	"github.com/danielhkuo/dekuf/db"
	"github.com/danielhkuo/dekuf/models"
)

var (
	ErrSurveyNotFound = errors.New("survey not found")
	ErrNoSurveyMatch  = errors.New("no single survey owns all data keys")
)

// Create validates req and stores the survey with its commissioners and
// queries. Every query starts with an empty aggregate.
func Create(ctx context.Context, conn *sql.DB, req models.CreateSurveyRequest) (models.Survey, error) {
	if err := validateCreate(req); err != nil {
		return models.Survey{}, err
	}

	s := models.Survey{
		ID:            req.ID,
		Name:          strings.TrimSpace(req.Name),
		Commissioners: []models.Commissioner{},
		Queries:       []models.Query{},
		CreatedAt:     time.Now().UTC(),
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	err := db.WithTx(ctx, conn, func(tx *sql.Tx) error {
		exists, err := Exists(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if exists {
			verr := models.NewValidationError()
			verr.Add("id", "survey with this id already exists.")
			return verr
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO survey (id, name, created_at)
			VALUES ($1, $2, $3)
		`, s.ID, s.Name, s.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert survey: %w", err)
		}

		seen := make(map[string]bool)
		for _, c := range req.Commissioners {
			name := strings.TrimSpace(c.Name)
			if seen[name] {
				continue
			}
			seen[name] = true

			commissioner, err := GetOrCreateCommissioner(ctx, tx, name)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO survey_commissioner (survey_id, commissioner_id)
				VALUES ($1, $2)
			`, s.ID, commissioner.ID)
			if err != nil {
				return fmt.Errorf("failed to link commissioner: %w", err)
			}
			s.Commissioners = append(s.Commissioners, commissioner)
		}

		for i, qr := range req.Queries {
			q := models.Query{
				ID:       uuid.NewString(),
				SurveyID: s.ID,
				DataKey:  strings.TrimSpace(qr.DataKey),
				Discrete: qr.Discrete,
				Cohorts:  qr.Cohorts,
			}
			if q.Cohorts == nil {
				q.Cohorts = []string{}
			}

			agg, err := aggregate.New(q).Encode()
			if err != nil {
				return err
			}
			cohorts, err := json.Marshal(q.Cohorts)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO survey_query (id, survey_id, data_key, position, discrete, cohorts, aggregate, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
			`, q.ID, s.ID, q.DataKey, i, q.Discrete, string(cohorts), string(agg))
			if err != nil {
				return fmt.Errorf("failed to insert query: %w", err)
			}

			q.Aggregate = agg
			s.Queries = append(s.Queries, q)
		}

		return nil
	})
	if err != nil {
		return models.Survey{}, err
	}

	slog.Info("survey created", "survey_id", s.ID, "queries", len(s.Queries))

	return s, nil
}

func validateCreate(req models.CreateSurveyRequest) error {
	verr := models.NewValidationError()

	if req.ID != "" {
		if _, err := uuid.Parse(req.ID); err != nil {
			verr.Add("id", "Must be a valid UUID.")
		}
	}
	if strings.TrimSpace(req.Name) == "" {
		verr.Add("name", models.MsgRequired)
	}
	if req.Commissioners == nil {
		verr.Add("commissioners", models.MsgRequired)
	}
	for i, c := range req.Commissioners {
		if strings.TrimSpace(c.Name) == "" {
			verr.Add("commissioners["+strconv.Itoa(i)+"].name", models.MsgRequired)
		}
	}
	if len(req.Queries) == 0 {
		verr.Add("queries", "At least one query is required.")
	}

	keys := make(map[string]bool)
	for i, q := range req.Queries {
		field := "queries[" + strconv.Itoa(i) + "].data_key"
		key := strings.TrimSpace(q.DataKey)
		if key == "" {
			verr.Add(field, models.MsgRequired)
			continue
		}
		if keys[key] {
			verr.Add(field, models.MsgDuplicate)
		}
		keys[key] = true
	}

	return verr.OrNil()
}

// Exists reports whether a survey with the given id is stored.
func Exists(ctx context.Context, q db.DBTX, id string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM survey WHERE id = $1)
	`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check survey: %w", err)
	}
	return exists, nil
}

// Get loads one survey with its commissioners and queries.
func Get(ctx context.Context, q db.DBTX, id string) (models.Survey, error) {
	var s models.Survey
	err := q.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM survey WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Survey{}, ErrSurveyNotFound
	}
	if err != nil {
		return models.Survey{}, fmt.Errorf("failed to query survey: %w", err)
	}

	surveys := []models.Survey{s}
	if err := attachChildren(ctx, q, surveys, "WHERE sc.survey_id = $1", "WHERE survey_id = $1", id); err != nil {
		return models.Survey{}, err
	}

	return surveys[0], nil
}

// List returns every survey, oldest first, with nested commissioners and queries.
func List(ctx context.Context, q db.DBTX) ([]models.Survey, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, created_at FROM survey ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query surveys: %w", err)
	}

	surveys := []models.Survey{}
	for rows.Next() {
		var s models.Survey
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan survey: %w", err)
		}
		surveys = append(surveys, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read surveys: %w", err)
	}
	rows.Close()

	if err := attachChildren(ctx, q, surveys, "", ""); err != nil {
		return nil, err
	}

	return surveys, nil
}

// attachChildren loads commissioners and queries for the given surveys in
// two queries. Rows are drained before the next statement runs.
func attachChildren(ctx context.Context, q db.DBTX, surveys []models.Survey, commissionerWhere, queryWhere string, args ...any) error {
	index := make(map[string]int, len(surveys))
	for i := range surveys {
		surveys[i].Commissioners = []models.Commissioner{}
		surveys[i].Queries = []models.Query{}
		index[surveys[i].ID] = i
	}

	rows, err := q.QueryContext(ctx, `
		SELECT sc.survey_id, c.id, c.name
		FROM survey_commissioner sc
		JOIN commissioner c ON c.id = sc.commissioner_id
		`+commissionerWhere+`
		ORDER BY c.name
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query commissioners: %w", err)
	}
	for rows.Next() {
		var surveyID string
		var c models.Commissioner
		if err := rows.Scan(&surveyID, &c.ID, &c.Name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan commissioner: %w", err)
		}
		if i, ok := index[surveyID]; ok {
			surveys[i].Commissioners = append(surveys[i].Commissioners, c)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read commissioners: %w", err)
	}
	rows.Close()

	queries, err := scanQueries(ctx, q, queryWhere, args...)
	if err != nil {
		return err
	}
	for _, query := range queries {
		if i, ok := index[query.SurveyID]; ok {
			surveys[i].Queries = append(surveys[i].Queries, query)
		}
	}

	return nil
}

// Queries returns a survey's queries in definition order, including each
// query's stored aggregate and version.
func Queries(ctx context.Context, q db.DBTX, surveyID string) ([]models.Query, error) {
	return scanQueries(ctx, q, "WHERE survey_id = $1", surveyID)
}

func scanQueries(ctx context.Context, q db.DBTX, where string, args ...any) ([]models.Query, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, survey_id, data_key, discrete, cohorts, aggregate, version
		FROM survey_query
		`+where+`
		ORDER BY survey_id, position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queries: %w", err)
	}
	defer rows.Close()

	queries := []models.Query{}
	for rows.Next() {
		var query models.Query
		var cohorts, agg string
		if err := rows.Scan(&query.ID, &query.SurveyID, &query.DataKey, &query.Discrete, &cohorts, &agg, &query.Version); err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		if err := json.Unmarshal([]byte(cohorts), &query.Cohorts); err != nil {
			return nil, fmt.Errorf("failed to decode cohorts for %s: %w", query.DataKey, err)
		}
		if query.Cohorts == nil {
			query.Cohorts = []string{}
		}
		query.Aggregate = json.RawMessage(agg)
		queries = append(queries, query)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}

	return queries, nil
}

// ResolveSurveyID finds the one survey whose queries cover every data key.
func ResolveSurveyID(ctx context.Context, q db.DBTX, dataKeys []string) (string, error) {
	if len(dataKeys) == 0 {
		return "", ErrNoSurveyMatch
	}

	unique := make(map[string]bool, len(dataKeys))
	for _, k := range dataKeys {
		unique[k] = true
	}

	rows, err := q.QueryContext(ctx, `
		SELECT survey_id FROM survey_query WHERE data_key = $1
	`, dataKeys[0])
	if err != nil {
		return "", fmt.Errorf("failed to query surveys by data key: %w", err)
	}
	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return "", fmt.Errorf("failed to scan survey id: %w", err)
		}
		candidates = append(candidates, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return "", fmt.Errorf("failed to read survey ids: %w", err)
	}
	rows.Close()

	var match string
	for _, id := range candidates {
		var covered int
		err := q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM survey_query WHERE survey_id = $1 AND data_key IN (`+placeholders(2, len(unique))+`)
		`, append([]any{id}, keysToArgs(unique)...)...).Scan(&covered)
		if err != nil {
			return "", fmt.Errorf("failed to count covered keys: %w", err)
		}
		if covered != len(unique) {
			continue
		}
		if match != "" {
			return "", ErrNoSurveyMatch
		}
		match = id
	}

	if match == "" {
		return "", ErrNoSurveyMatch
	}
	return match, nil
}

func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(start+i)
	}
	return strings.Join(parts, ", ")
}

func keysToArgs(keys map[string]bool) []any {
	args := make([]any, 0, len(keys))
	for k := range keys {
		args = append(args, k)
	}
	return args
}

// GetOrCreateCommissioner returns the commissioner with this name, inserting
// it first if needed. Run it inside the caller's transaction.
func GetOrCreateCommissioner(ctx context.Context, q db.DBTX, name string) (models.Commissioner, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO commissioner (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`, uuid.NewString(), name)
	if err != nil {
		return models.Commissioner{}, fmt.Errorf("failed to insert commissioner: %w", err)
	}

	c := models.Commissioner{Name: name}
	err = q.QueryRowContext(ctx, `
		SELECT id FROM commissioner WHERE name = $1
	`, name).Scan(&c.ID)
	if err != nil {
		return models.Commissioner{}, fmt.Errorf("failed to query commissioner: %w", err)
	}

	return c, nil
}

// Aggregates returns the running aggregate of every query in a survey.
func Aggregates(ctx context.Context, q db.DBTX, surveyID string) (models.SurveyAggregatesResponse, error) {
	exists, err := Exists(ctx, q, surveyID)
	if err != nil {
		return models.SurveyAggregatesResponse{}, err
	}
	if !exists {
		return models.SurveyAggregatesResponse{}, ErrSurveyNotFound
	}

	queries, err := Queries(ctx, q, surveyID)
	if err != nil {
		return models.SurveyAggregatesResponse{}, err
	}

	resp := models.SurveyAggregatesResponse{
		SurveyID:   surveyID,
		Aggregates: make([]models.QueryAggregate, 0, len(queries)),
	}
	for _, query := range queries {
		agg, err := aggregate.Decode(query, query.Aggregate)
		if err != nil {
			return models.SurveyAggregatesResponse{}, err
		}
		raw, err := agg.Encode()
		if err != nil {
			return models.SurveyAggregatesResponse{}, err
		}
		resp.Aggregates = append(resp.Aggregates, models.QueryAggregate{
			DataKey:   query.DataKey,
			Aggregate: raw,
		})
	}

	return resp, nil
}
