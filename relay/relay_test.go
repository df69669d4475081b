// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package relay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/dekuf/grouping"
	"github.com/danielhkuo/dekuf/metrics"
	dbtest "github.com/danielhkuo/dekuf/testutil"
)

func TestSendAndReceive_PreservesOrder(t *testing.T) {
	conn := dbtest.SetupTestDB(t)
	defer conn.Close()
	ctx := context.Background()

	s := dbtest.CreateTestSurvey(t, conn, "S1")
	_, delegateID := dbtest.CreateTestDelegate(t, conn, s.ID, 3)

	m := metrics.New()
	r := New(conn, m)

	_, err := r.Send(ctx, delegateID, []byte(`{"msg": "A"}`))
	require.NoError(t, err)
	_, err = r.Send(ctx, delegateID, []byte(`{"msg": "B"}`))
	require.NoError(t, err)

	msgs, err := r.Receive(ctx, delegateID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.JSONEq(t, `{"msg":"A"}`, string(msgs[0].Content))
	assert.JSONEq(t, `{"msg":"B"}`, string(msgs[1].Content))
	assert.Less(t, msgs[0].Seq, msgs[1].Seq)

	assert.Equal(t, float64(2), m.Value("dekuf_relay_messages_total"))

	// Reading does not drain the mailbox
	again, err := r.Receive(ctx, delegateID)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestSend_StoresCompactContent(t *testing.T) {
	conn := dbtest.SetupTestDB(t)
	defer conn.Close()
	ctx := context.Background()

	s := dbtest.CreateTestSurvey(t, conn, "S1")
	groupID, delegateID := dbtest.CreateTestDelegate(t, conn, s.ID, 3)

	r := New(conn, nil)
	msg, err := r.Send(ctx, delegateID, []byte("{\n  \"answer\": \"yes\"\n}"))
	require.NoError(t, err)

	assert.Equal(t, `{"answer":"yes"}`, string(msg.Content))
	assert.Equal(t, groupID, msg.GroupID)
	assert.Equal(t, delegateID, msg.DelegateID)
	assert.NotEmpty(t, msg.ID)

	msgs, err := r.Receive(ctx, delegateID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var content map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Content, &content))
	assert.Equal(t, "yes", content["answer"])
}

func TestSend_UnknownDelegate(t *testing.T) {
	conn := dbtest.SetupTestDB(t)
	defer conn.Close()

	r := New(conn, nil)

	// Unknown delegate is reported even when the payload is bad too
	for _, body := range []string{`{"msg":"A"}`, `not json`} {
		_, err := r.Send(context.Background(), "nonexistent", []byte(body))
		assert.ErrorIs(t, err, grouping.ErrGroupNotFound, "body %q", body)
	}
	assert.Equal(t, 0, dbtest.CountRows(t, conn, "client_to_delegate_message", ""))
}

func TestSend_InvalidPayload(t *testing.T) {
	conn := dbtest.SetupTestDB(t)
	defer conn.Close()

	s := dbtest.CreateTestSurvey(t, conn, "S1")
	_, delegateID := dbtest.CreateTestDelegate(t, conn, s.ID, 3)
	r := New(conn, nil)

	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"malformed", `{"msg":`},
		{"array", `[1,2,3]`},
		{"string", `"hello"`},
		{"number", `42`},
		{"null", `null`},
		{"trailing garbage", `{"a":1} {"b":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Send(context.Background(), delegateID, []byte(tt.body))
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
	assert.Equal(t, 0, dbtest.CountRows(t, conn, "client_to_delegate_message", ""))
}

func TestReceive_EmptyMailbox(t *testing.T) {
	conn := dbtest.SetupTestDB(t)
	defer conn.Close()

	s := dbtest.CreateTestSurvey(t, conn, "S1")
	_, delegateID := dbtest.CreateTestDelegate(t, conn, s.ID, 3)
	r := New(conn, nil)

	_, err := r.Receive(context.Background(), delegateID)
	assert.ErrorIs(t, err, ErrNoMessages)

	// Unknown ids look the same as an empty mailbox
	_, err = r.Receive(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestReceive_OnlyOwnMailbox(t *testing.T) {
	conn := dbtest.SetupTestDB(t)
	defer conn.Close()
	ctx := context.Background()

	s := dbtest.CreateTestSurvey(t, conn, "S1")
	_, d1 := dbtest.CreateTestDelegate(t, conn, s.ID, 3)
	_, d2 := dbtest.CreateTestDelegate(t, conn, s.ID, 3)
	r := New(conn, nil)

	_, err := r.Send(ctx, d1, []byte(`{"to":"d1"}`))
	require.NoError(t, err)
	_, err = r.Send(ctx, d2, []byte(`{"to":"d2"}`))
	require.NoError(t, err)

	msgs, err := r.Receive(ctx, d1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"to":"d1"}`, string(msgs[0].Content))
}

func TestSend_AfterDissolution(t *testing.T) {
	conn := dbtest.SetupTestDB(t)
	defer conn.Close()
	ctx := context.Background()

	s := dbtest.CreateTestSurvey(t, conn, "S1")
	groupID, delegateID := dbtest.CreateTestDelegate(t, conn, s.ID, 3)
	r := New(conn, nil)

	_, err := r.Send(ctx, delegateID, []byte(`{"msg":"A"}`))
	require.NoError(t, err)

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = grouping.Dissolve(ctx, tx, groupID)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = r.Send(ctx, delegateID, []byte(`{"msg":"B"}`))
	assert.ErrorIs(t, err, grouping.ErrGroupNotFound)

	_, err = r.Receive(ctx, delegateID)
	assert.ErrorIs(t, err, ErrNoMessages)
}
