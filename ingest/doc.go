// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ingest validates and stores survey responses and folds every answer
into its query's running aggregate.

A response is written in a single transaction: the response row, the
credited commissioners, one row per answer and the updated aggregates.
A delegate's response also dissolves the delegate's group in that same
transaction. If any answer cannot be aggregated, nothing is written.

Aggregates are updated with a compare-and-set on the query's version
column. A lost race aborts the transaction and the whole submission is
retried, so concurrent responses for one query never overwrite each other:

	ing := ingest.New(conn, m)
	resp, err := ing.Submit(ctx, req)
	resp, err = ing.SubmitForDelegate(ctx, delegateID, req)
*/
package ingest
