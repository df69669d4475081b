// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package grouping clusters survey signups into aggregation groups and elects
each group's delegate.

# Grouping Pass

Every signup triggers a pass for its survey. While at least GroupSize
ungrouped signups are waiting, the oldest GroupSize of them form a group and
the earliest becomes delegate:

	engine := grouping.NewEngine(conn, 3, m)
	signup, err := engine.Signup(ctx, surveyID)

Passes for the same survey are serialized in-process, and each membership
is written with a compare-and-set on group_id IS NULL, so a signup never
joins two groups.

# Dissolution

Dissolve removes a group with its signups and relayed messages. It takes
the caller's transaction so the delegate's response and the dissolution
commit together.
*/
package grouping
