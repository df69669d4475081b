// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package relay

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/dekuf/db"
	"github.com/danielhkuo/dekuf/grouping"
	"github.com/danielhkuo/dekuf/metrics"
	"github.com/danielhkuo/dekuf/models"
)

var (
	ErrInvalidPayload = errors.New("message content must be a JSON object")
	ErrNoMessages     = errors.New("no messages found")
)

type Relay struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

// New returns a relay over conn. m may be nil.
func New(conn *sql.DB, m *metrics.Metrics) *Relay {
	return &Relay{db: conn, metrics: m}
}

// Send appends content to the mailbox of delegateID's group. The group is
// checked before the payload, so an unknown delegate wins over a bad body.
func (r *Relay) Send(ctx context.Context, delegateID string, content []byte) (models.ClientToDelegateMessage, error) {
	g, err := grouping.GroupByDelegate(ctx, r.db, delegateID)
	if err != nil {
		return models.ClientToDelegateMessage{}, err
	}

	compact, err := objectPayload(content)
	if err != nil {
		return models.ClientToDelegateMessage{}, err
	}

	msg := models.ClientToDelegateMessage{
		ID:         uuid.NewString(),
		DelegateID: delegateID,
		GroupID:    g.ID,
		Content:    compact,
		CreatedAt:  time.Now().UTC(),
	}

	// A group dissolved since the lookup shows up as a foreign key failure.
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO client_to_delegate_message (id, delegate_id, group_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.DelegateID, msg.GroupID, string(compact), msg.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return models.ClientToDelegateMessage{}, grouping.ErrGroupNotFound
	}
	if err != nil {
		return models.ClientToDelegateMessage{}, fmt.Errorf("failed to insert message: %w", err)
	}

	r.metrics.MessageSent()
	slog.Debug("relay message stored", "delegate_id", delegateID, "group_id", g.ID, "message_id", msg.ID)

	return msg, nil
}

// Receive returns every message addressed to delegateID, oldest first. An
// empty mailbox is ErrNoMessages.
func (r *Relay) Receive(ctx context.Context, delegateID string) ([]models.ClientToDelegateMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, id, delegate_id, group_id, content, created_at
		FROM client_to_delegate_message
		WHERE delegate_id = $1
		ORDER BY seq
	`, delegateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ClientToDelegateMessage
	for rows.Next() {
		var m models.ClientToDelegateMessage
		var content string
		if err := rows.Scan(&m.Seq, &m.ID, &m.DelegateID, &m.GroupID, &content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Content = json.RawMessage(content)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	r.metrics.MessagesReceived(len(messages))
	return messages, nil
}

// objectPayload accepts a single JSON object and returns it compacted.
func objectPayload(content []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, ErrInvalidPayload
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, ErrInvalidPayload
	}
	return json.RawMessage(buf.Bytes()), nil
}
