// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/dekuf/cliparse"
	"github.com/danielhkuo/dekuf/db"
	"github.com/danielhkuo/dekuf/models"
	"github.com/danielhkuo/dekuf/survey"
)

// SetupTestDB creates a fresh in-memory SQLite database with the full schema.
// Each call returns an isolated database.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", db.SQLiteDSN("file::memory:"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// The in-memory database lives and dies with its single connection
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	if err := db.CreateSchema(conn, db.DialectSQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         8000,
		DatabaseURL:  "file::memory:",
		DatabaseType: db.DialectSQLite,
		GroupSize:    3,
		LogLevel:     "info",
	}
}

// CreateTestSurvey stores a survey with one commissioner and the given
// queries. Without queries it gets a single numeric query "q1".
func CreateTestSurvey(t *testing.T, conn *sql.DB, name string, queries ...models.CreateQueryRequest) models.Survey {
	t.Helper()

	if len(queries) == 0 {
		queries = []models.CreateQueryRequest{{DataKey: "q1"}}
	}

	s, err := survey.Create(context.Background(), conn, models.CreateSurveyRequest{
		Name:          name,
		Commissioners: []models.CommissionerRequest{{Name: "Test Commissioner"}},
		Queries:       queries,
	})
	if err != nil {
		t.Fatalf("Failed to create test survey: %v", err)
	}

	return s
}

// CreateTestSignup inserts an ungrouped signup created at the given time
func CreateTestSignup(t *testing.T, conn *sql.DB, surveyID string, at time.Time) string {
	t.Helper()

	id := uuid.Must(uuid.NewV7()).String()
	_, err := conn.Exec(`
		INSERT INTO survey_signup (id, survey_id, group_id, created_at)
		VALUES ($1, $2, NULL, $3)
	`, id, surveyID, at.UTC())
	if err != nil {
		t.Fatalf("Failed to create test signup: %v", err)
	}

	return id
}

// CreateTestGroup inserts a group for existing signups. The first member
// becomes the delegate.
func CreateTestGroup(t *testing.T, conn *sql.DB, surveyID string, memberIDs ...string) string {
	t.Helper()

	if len(memberIDs) == 0 {
		t.Fatal("CreateTestGroup needs at least one member")
	}

	groupID := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO aggregation_group (id, survey_id, delegate_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, groupID, surveyID, memberIDs[0], time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test group: %v", err)
	}

	for _, id := range memberIDs {
		_, err := conn.Exec(`
			UPDATE survey_signup SET group_id = $1 WHERE id = $2
		`, groupID, id)
		if err != nil {
			t.Fatalf("Failed to assign test signup: %v", err)
		}
	}

	return groupID
}

// CreateTestDelegate creates a survey-bound group of n fresh signups and
// returns the group and delegate ids
func CreateTestDelegate(t *testing.T, conn *sql.DB, surveyID string, n int) (groupID, delegateID string) {
	t.Helper()

	base := time.Now().Add(-time.Minute)
	members := make([]string, n)
	for i := range members {
		members[i] = CreateTestSignup(t, conn, surveyID, base.Add(time.Duration(i)*time.Second))
	}

	return CreateTestGroup(t, conn, surveyID, members...), members[0]
}

// SetTestAggregate overwrites a query's stored aggregate
func SetTestAggregate(t *testing.T, conn *sql.DB, surveyID, dataKey, aggregate string) {
	t.Helper()

	_, err := conn.Exec(`
		UPDATE survey_query SET aggregate = $1 WHERE survey_id = $2 AND data_key = $3
	`, aggregate, surveyID, dataKey)
	if err != nil {
		t.Fatalf("Failed to set test aggregate: %v", err)
	}
}

// GetTestAggregate returns a query's stored aggregate decoded into a map
func GetTestAggregate(t *testing.T, conn *sql.DB, surveyID, dataKey string) map[string]any {
	t.Helper()

	var raw string
	err := conn.QueryRow(`
		SELECT aggregate FROM survey_query WHERE survey_id = $1 AND data_key = $2
	`, surveyID, dataKey).Scan(&raw)
	if err != nil {
		t.Fatalf("Failed to read test aggregate: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("Failed to decode test aggregate: %v", err)
	}

	return out
}

// CountRows counts rows in a table matching an optional WHERE clause
func CountRows(t *testing.T, conn *sql.DB, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}

	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
