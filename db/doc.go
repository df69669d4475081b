// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database, creates the schema, and runs transactions.

# Opening

Open registers nothing itself; the PostgreSQL (lib/pq) and SQLite
(modernc.org/sqlite) drivers are imported here and selected by type:

	conn, err := db.Open(db.DialectSQLite, "dekuf.db")

SQLite connections are limited to one open connection and always run with
foreign keys enabled.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn, db.DialectSQLite); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

The schema includes:

  - survey: survey metadata
  - commissioner: commissioners, unique by name
  - survey_commissioner: links surveys to commissioners
  - survey_query: queries with their running aggregate and version
  - aggregation_group: one row per open group, unique delegate
  - survey_signup: respondents, optionally assigned to a group
  - client_to_delegate_message: relayed messages in arrival order
  - survey_response: submitted responses
  - survey_response_commissioner: commissioners credited on a response
  - query_response: one answer per query within a response

# Relationships

	survey 1──* survey_query
	survey *──* commissioner (via survey_commissioner)
	survey 1──* aggregation_group
	aggregation_group 1──* survey_signup
	aggregation_group 1──* client_to_delegate_message
	survey_response 1──* query_response
	survey_query 1──* query_response

Foreign keys carry no ON DELETE CASCADE. Dependent rows are deleted
explicitly inside the same transaction as their parent.

# Transactions

WithTx runs a function inside a transaction. RetryTx reruns it when the
function or the commit fails with a conflict (see IsConflict):

	err := db.RetryTx(ctx, conn, db.DefaultAttempts, nil, func(tx *sql.Tx) error {
		...
	})
*/
package db
