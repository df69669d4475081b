// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package aggregate merges query answers into running per-query statistics.

The package is pure: it never touches storage. Callers load the stored
aggregate, call Merge, and write the result back under their own
concurrency control.

# Numeric Queries

Queries with discrete=false accumulate count, sum, min, max and mean.
Answers may be JSON numbers or strings holding a number:

	agg, err := aggregate.Merge(query, agg, json.RawMessage(`5`))

# Discrete Queries

Queries with discrete=true accumulate a frequency table keyed by the answer
label. Arrays count each distinct element once (multi-select answers).
When the query lists cohorts, every label must be one of them.

Both merge functions are commutative: the order answers arrive in does not
change the final aggregate.
*/
package aggregate
