// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package relay implements the delegate mailbox: group members post opaque
// JSON objects addressed to their delegate, and the delegate reads the whole
// mailbox in send order. Messages never leave the mailbox on read; they are
// removed when the group dissolves.
package relay
