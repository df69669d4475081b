// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danielhkuo/dekuf/models"
)

// ErrMalformedInput means the body was not a parseable JSON document.
var ErrMalformedInput = errors.New("malformed input")

// Decode parses a survey response body. Syntax errors are ErrMalformedInput;
// values of the wrong JSON type are reported as a *models.ValidationError.
func Decode(body io.Reader) (models.SurveyResponseRequest, error) {
	var req models.SurveyResponseRequest

	data, err := io.ReadAll(body)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return req, fmt.Errorf("%w: empty body", ErrMalformedInput)
	}

	if err := json.Unmarshal(data, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			verr := models.NewValidationError()
			field := typeErr.Field
			if field == "" {
				field = "non_field_errors"
			}
			verr.Add(field, fmt.Sprintf("Expected %s but got %s.", typeErr.Type, typeErr.Value))
			return req, verr
		}
		return req, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	return req, nil
}

// Validate checks the shape of a decoded request. Every problem is
// collected into one *models.ValidationError.
func Validate(req models.SurveyResponseRequest) error {
	verr := models.NewValidationError()

	if req.Commissioners == nil {
		verr.Add("commissioners", models.MsgRequired)
	}
	for i, c := range req.Commissioners {
		if strings.TrimSpace(c.Name) == "" {
			verr.Add(fmt.Sprintf("commissioners[%d].name", i), models.MsgNotBlank)
		}
	}

	if req.QueryResponses == nil {
		verr.Add("queryResponses", models.MsgRequired)
	}
	for i, qr := range req.QueryResponses {
		if strings.TrimSpace(qr.DataKey) == "" {
			verr.Add(fmt.Sprintf("queryResponses[%d].data_key", i), models.MsgNotBlank)
		}
		switch {
		case qr.Data == nil:
			verr.Add(fmt.Sprintf("queryResponses[%d].data", i), models.MsgRequired)
		case bytes.Equal(bytes.TrimSpace(qr.Data), []byte("null")):
			verr.Add(fmt.Sprintf("queryResponses[%d].data", i), models.MsgNotNull)
		}
	}

	return verr.OrNil()
}

// commissionerNames returns the trimmed names in first-seen order without
// duplicates.
func commissionerNames(commissioners []models.CommissionerRequest) []string {
	seen := make(map[string]bool, len(commissioners))
	names := make([]string, 0, len(commissioners))
	for _, c := range commissioners {
		name := strings.TrimSpace(c.Name)
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
