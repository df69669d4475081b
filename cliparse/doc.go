// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 8000)
  - DatabaseURL: SQLite path or PostgreSQL connection string (required)
  - DatabaseType: sqlite or postgres (default: sqlite)
  - GroupSize: signups per aggregation group (default: 3, minimum 2)
  - SurveysFile: YAML seed file (optional)
  - LogLevel: debug, info, warn or error (default: info)

# CLI Flags

	-p            Server port
	-d            Database URL
	-t            Database type
	-group-size   Signups per group
	-surveys      Survey seed file
	-log-level    Log level
	-env-file     Env file to load (default: .env)

# Environment Variables

Flags fall back to environment variables:

	PORT          → -p
	DATABASE_URL  → -d
	DATABASE_TYPE → -t
	GROUP_SIZE    → -group-size
	SURVEYS_FILE  → -surveys
	LOG_LEVEL     → -log-level

CLI flags take precedence over environment variables, which take
precedence over the env file.
*/
package cliparse
