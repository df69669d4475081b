package cliparse

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	GroupSize    int
	SurveysFile  string
	LogLevel     string
}

// ParseFlags validates flags and fills unset values from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var envFile string

	fs := flag.NewFlagSet("dekuf", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Grouping and seeding
	fs.IntVar(&cfg.GroupSize, "group-size", 0, "Ungrouped signups needed to form a group")
	fs.StringVar(&cfg.SurveysFile, "surveys", "", "YAML file with surveys to create at startup")

	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&envFile, "env-file", ".env", "Optional env file")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Real environment wins over the file; a missing file is fine
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load env file", "path", envFile, "error", err)
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 8000 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	if cfg.GroupSize == 0 {
		if sizeStr := os.Getenv("GROUP_SIZE"); sizeStr != "" {
			size, err := strconv.Atoi(sizeStr)
			if err != nil {
				return Config{}, errors.New("invalid GROUP_SIZE env variable")
			}
			cfg.GroupSize = size
		} else {
			cfg.GroupSize = 3
		}
	}
	if cfg.GroupSize < 2 {
		return Config{}, errors.New("group size must be at least 2")
	}

	if cfg.SurveysFile == "" {
		cfg.SurveysFile = os.Getenv("SURVEYS_FILE")
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = os.Getenv("LOG_LEVEL")
		if cfg.LogLevel == "" {
			cfg.LogLevel = "info"
		}
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ParseLogLevel maps a level name onto slog's levels
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, errors.New("log level must be debug, info, warn or error")
	}
	return level, nil
}
