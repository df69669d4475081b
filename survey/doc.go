// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package survey stores survey definitions with their commissioners and
// queries, seeds them from YAML, and resolves surveys by data key.
package survey
