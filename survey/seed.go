// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package survey

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielhkuo/dekuf/models"
)

// SeedFile is the YAML layout of a survey seed file:
//
//	surveys:
//	  - id: 7c1d...
//	    name: Sleep
//	    commissioners:
//	      - name: Uni Lab
//	    queries:
//	      - data_key: hours
//	      - data_key: mood
//	        discrete: true
//	        cohorts: [good, bad]
type SeedFile struct {
	Surveys []models.CreateSurveyRequest `yaml:"surveys"`
}

// LoadSeedFile reads and parses a seed file.
func LoadSeedFile(path string) ([]models.CreateSurveyRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	return ParseSeed(data)
}

// ParseSeed parses seed file contents. Every survey must carry an id so that
// seeding stays idempotent across restarts.
func ParseSeed(data []byte) ([]models.CreateSurveyRequest, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, s := range f.Surveys {
		if s.ID == "" {
			return nil, fmt.Errorf("seed survey %d (%q): id is required", i, s.Name)
		}
		if s.Commissioners == nil {
			f.Surveys[i].Commissioners = []models.CommissionerRequest{}
		}
	}

	return f.Surveys, nil
}

// Seed creates every survey that does not exist yet and returns how many
// were created.
func Seed(ctx context.Context, conn *sql.DB, surveys []models.CreateSurveyRequest) (int, error) {
	created := 0
	for _, req := range surveys {
		exists, err := Exists(ctx, conn, req.ID)
		if err != nil {
			return created, err
		}
		if exists {
			slog.Debug("seed survey already present", "survey_id", req.ID)
			continue
		}

		if _, err := Create(ctx, conn, req); err != nil {
			return created, fmt.Errorf("seeding survey %s: %w", req.ID, err)
		}
		created++
	}

	return created, nil
}
