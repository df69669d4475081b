// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the dekuf survey server.

Respondents sign up for a survey and are clustered into aggregation groups.
Each group elects its earliest signup as delegate, peers relay their answers
to the delegate through the server, and the delegate submits one merged
response that is folded into the survey's running per-query aggregates.

# Starting the Server

	DATABASE_URL=dekuf.db go run .

Or with flags:

	go run . -p 8000 -t postgres -d "postgres://..." -surveys surveys.yaml

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string

Optional settings:

  - PORT (-p): Server port (default: 8000)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - GROUP_SIZE (-group-size): signups per aggregation group (default: 3)
  - SURVEYS_FILE (-surveys): YAML surveys created at startup if missing
  - LOG_LEVEL (-log-level): debug, info, warn or error (default: info)

Values are also read from a .env file (-env-file); real environment
variables take precedence over it.

# Architecture

  - grouping: signup clustering and delegate election
  - relay: delegate mailbox
  - ingest: response validation, storage and aggregation
  - aggregate: numeric and discrete running statistics
  - survey: survey definitions, seeding and lookups
  - handlers, router, middleware: HTTP surface
  - metrics: Prometheus collectors served at /metrics
  - db: connections, schema and retrying transactions
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
