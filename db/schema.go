// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB, dialect string) error {
	stmt, err := schemaFor(dialect)
	if err != nil {
		return err
	}

	_, err = db.Exec(stmt)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func schemaFor(dialect string) (string, error) {
	switch dialect {
	case DialectPostgres:
		return strings.ReplaceAll(schema, "{{serial}}", "BIGSERIAL PRIMARY KEY"), nil
	case DialectSQLite:
		return strings.ReplaceAll(schema, "{{serial}}", "INTEGER PRIMARY KEY AUTOINCREMENT"), nil
	default:
		return "", fmt.Errorf("unsupported database type %q", dialect)
	}
}

const schema = `
-- Surveys
CREATE TABLE IF NOT EXISTS survey (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

-- Commissioners
CREATE TABLE IF NOT EXISTS commissioner (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS survey_commissioner (
    survey_id TEXT NOT NULL REFERENCES survey(id),
    commissioner_id TEXT NOT NULL REFERENCES commissioner(id),
    PRIMARY KEY (survey_id, commissioner_id)
);

-- Queries
CREATE TABLE IF NOT EXISTS survey_query (
    id TEXT PRIMARY KEY,
    survey_id TEXT NOT NULL REFERENCES survey(id),
    data_key TEXT NOT NULL,
    position INTEGER NOT NULL,
    discrete BOOLEAN NOT NULL DEFAULT FALSE,
    cohorts TEXT NOT NULL DEFAULT '[]',
    aggregate TEXT NOT NULL,
    version BIGINT NOT NULL DEFAULT 0,
    UNIQUE (survey_id, data_key)
);

CREATE INDEX IF NOT EXISTS idx_survey_query_data_key ON survey_query(data_key);

-- Aggregation groups
CREATE TABLE IF NOT EXISTS aggregation_group (
    id TEXT PRIMARY KEY,
    survey_id TEXT NOT NULL REFERENCES survey(id),
    delegate_id TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_aggregation_group_survey_id ON aggregation_group(survey_id);

-- Signups
CREATE TABLE IF NOT EXISTS survey_signup (
    id TEXT PRIMARY KEY,
    survey_id TEXT NOT NULL REFERENCES survey(id),
    group_id TEXT REFERENCES aggregation_group(id),
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_survey_signup_ungrouped ON survey_signup(survey_id, group_id, created_at);

-- Relayed messages
CREATE TABLE IF NOT EXISTS client_to_delegate_message (
    seq {{serial}},
    id TEXT NOT NULL UNIQUE,
    delegate_id TEXT NOT NULL,
    group_id TEXT NOT NULL REFERENCES aggregation_group(id),
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_message_delegate_id ON client_to_delegate_message(delegate_id, seq);
CREATE INDEX IF NOT EXISTS idx_message_group_id ON client_to_delegate_message(group_id);

-- Survey responses
CREATE TABLE IF NOT EXISTS survey_response (
    id TEXT PRIMARY KEY,
    survey_id TEXT NOT NULL REFERENCES survey(id),
    delegate_id TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS survey_response_commissioner (
    survey_response_id TEXT NOT NULL REFERENCES survey_response(id),
    commissioner_id TEXT NOT NULL REFERENCES commissioner(id),
    PRIMARY KEY (survey_response_id, commissioner_id)
);

-- Query responses
CREATE TABLE IF NOT EXISTS query_response (
    id TEXT PRIMARY KEY,
    survey_response_id TEXT NOT NULL REFERENCES survey_response(id),
    query_id TEXT NOT NULL REFERENCES survey_query(id),
    data_key TEXT NOT NULL,
    data TEXT NOT NULL,
    position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_response_survey_response_id ON query_response(survey_response_id);
`
