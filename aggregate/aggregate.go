// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package aggregate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/danielhkuo/dekuf/models"
)

var (
	ErrNotNumeric        = errors.New("answer is not numeric")
	ErrUnsupportedAnswer = errors.New("answer shape cannot be aggregated")
	ErrNotInCohorts      = errors.New("answer is not one of the query's cohorts")
	ErrKindMismatch      = errors.New("aggregate kind does not match query")
)

// Aggregate is the running statistic for one query.
// Numeric queries fill Sum/Min/Max, discrete queries fill Frequencies.
type Aggregate struct {
	Kind        string           `json:"kind"`
	Count       int64            `json:"count"`
	Sum         float64          `json:"sum"`
	Min         *float64         `json:"min,omitempty"`
	Max         *float64         `json:"max,omitempty"`
	Mean        *float64         `json:"mean,omitempty"`
	Frequencies map[string]int64 `json:"frequencies,omitempty"`
}

// New returns the empty aggregate for a query.
func New(query models.Query) Aggregate {
	if query.Discrete {
		return Aggregate{Kind: models.KindDiscrete, Frequencies: map[string]int64{}}
	}
	return Aggregate{Kind: models.KindNumeric}
}

// Decode parses a stored aggregate. An empty document yields New(query).
func Decode(query models.Query, raw []byte) (Aggregate, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("{}")) || bytes.Equal(raw, []byte("null")) {
		return New(query), nil
	}

	var agg Aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		return Aggregate{}, fmt.Errorf("failed to decode aggregate for %s: %w", query.DataKey, err)
	}

	want := New(query).Kind
	if agg.Kind == "" {
		agg.Kind = want
	}
	if agg.Kind != want {
		return Aggregate{}, fmt.Errorf("%s: stored %s, want %s: %w", query.DataKey, agg.Kind, want, ErrKindMismatch)
	}
	if agg.Kind == models.KindDiscrete && agg.Frequencies == nil {
		agg.Frequencies = map[string]int64{}
	}

	return agg, nil
}

// Encode serializes an aggregate for storage.
func (a Aggregate) Encode() ([]byte, error) {
	return json.Marshal(a)
}

// Merge folds one answer into agg and returns the new aggregate.
// agg is not modified.
func Merge(query models.Query, agg Aggregate, data json.RawMessage) (Aggregate, error) {
	if query.Discrete {
		return mergeDiscrete(query, agg, data)
	}
	return mergeNumeric(agg, data)
}

func mergeNumeric(agg Aggregate, data json.RawMessage) (Aggregate, error) {
	v, err := numericValue(data)
	if err != nil {
		return Aggregate{}, err
	}

	out := agg
	out.Kind = models.KindNumeric
	out.Count++
	out.Sum += v

	if agg.Min == nil || v < *agg.Min {
		out.Min = &v
	}
	if agg.Max == nil || v > *agg.Max {
		out.Max = &v
	}

	mean := out.Sum / float64(out.Count)
	out.Mean = &mean

	return out, nil
}

func mergeDiscrete(query models.Query, agg Aggregate, data json.RawMessage) (Aggregate, error) {
	values, err := discreteValues(data)
	if err != nil {
		return Aggregate{}, err
	}

	if len(query.Cohorts) > 0 {
		for _, v := range values {
			if !slices.Contains(query.Cohorts, v) {
				return Aggregate{}, fmt.Errorf("%q: %w", v, ErrNotInCohorts)
			}
		}
	}

	out := agg
	out.Kind = models.KindDiscrete
	out.Count++
	out.Frequencies = make(map[string]int64, len(agg.Frequencies)+len(values))
	for k, n := range agg.Frequencies {
		out.Frequencies[k] = n
	}
	for _, v := range values {
		out.Frequencies[v]++
	}

	return out, nil
}

// numericValue accepts JSON numbers and strings holding a number.
func numericValue(data json.RawMessage) (float64, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotNumeric, err)
	}

	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%q: %w", t, ErrNotNumeric)
		}
		return f, nil
	default:
		return 0, ErrNotNumeric
	}
}

// discreteValues returns the category labels an answer counts towards.
// Arrays count each element once.
func discreteValues(data json.RawMessage) ([]string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedAnswer, err)
	}

	if list, ok := v.([]any); ok {
		seen := make(map[string]bool, len(list))
		values := make([]string, 0, len(list))
		for _, item := range list {
			label, err := scalarLabel(item)
			if err != nil {
				return nil, err
			}
			if !seen[label] {
				seen[label] = true
				values = append(values, label)
			}
		}
		return values, nil
	}

	label, err := scalarLabel(v)
	if err != nil {
		return nil, err
	}
	return []string{label}, nil
}

func scalarLabel(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", ErrUnsupportedAnswer
	}
}
