// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/dekuf/models"
	"github.com/danielhkuo/dekuf/relay"
	"github.com/danielhkuo/dekuf/testutil"
)

func sendMessage(h *RelayHandler, delegateID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/delegate/"+delegateID+"/messages", strings.NewReader(body))
	req.SetPathValue("delegate_id", delegateID)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.SendMessage(w, req)
	return w
}

func getMessages(h *RelayHandler, delegateID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/api/delegate/"+delegateID+"/messages", nil)
	req.SetPathValue("delegate_id", delegateID)
	w := httptest.NewRecorder()
	h.GetMessages(w, req)
	return w
}

func TestSendMessage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	s := testutil.CreateTestSurvey(t, db, "S1")
	_, delegateID := testutil.CreateTestDelegate(t, db, s.ID, 3)
	h := NewRelayHandler(relay.New(db, nil))

	testCases := []struct {
		name       string
		delegateID string
		body       string
		expected   int
	}{
		{"valid object", delegateID, `{"answer":"yes"}`, http.StatusCreated},
		{"empty body", delegateID, ``, http.StatusBadRequest},
		{"invalid JSON", delegateID, `{"answer":`, http.StatusBadRequest},
		{"not an object", delegateID, `["yes"]`, http.StatusBadRequest},
		{"unknown delegate", "nope", `{"answer":"yes"}`, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := sendMessage(h, tc.delegateID, tc.body)
			testutil.AssertStatus(t, w, tc.expected)
			if tc.expected == http.StatusCreated && w.Body.Len() != 0 {
				t.Errorf("Expected empty body, got %s", w.Body.String())
			}
		})
	}

	if n := testutil.CountRows(t, db, "client_to_delegate_message", ""); n != 1 {
		t.Errorf("Expected 1 stored message, got %d", n)
	}
}

func TestGetMessages(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	s := testutil.CreateTestSurvey(t, db, "S1")
	_, delegateID := testutil.CreateTestDelegate(t, db, s.ID, 3)
	h := NewRelayHandler(relay.New(db, nil))

	t.Run("empty mailbox", func(t *testing.T) {
		w := getMessages(h, delegateID)
		testutil.AssertStatus(t, w, http.StatusBadRequest)

		var resp models.ErrorResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Message != "No messages found for: "+delegateID {
			t.Errorf("Unexpected message: %q", resp.Message)
		}
	})

	t.Run("messages in send order", func(t *testing.T) {
		testutil.AssertStatus(t, sendMessage(h, delegateID, `{"answer": "yes"}`), http.StatusCreated)
		testutil.AssertStatus(t, sendMessage(h, delegateID, `{"answer": "no"}`), http.StatusCreated)

		w := getMessages(h, delegateID)
		testutil.AssertStatus(t, w, http.StatusOK)

		expected := `{"messages":[{"answer":"yes"},{"answer":"no"}]}`
		if body := strings.TrimSpace(w.Body.String()); body != expected {
			t.Errorf("Expected %s, got %s", expected, body)
		}
	})
}
