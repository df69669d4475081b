// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/dekuf/grouping"
	"github.com/danielhkuo/dekuf/ingest"
	"github.com/danielhkuo/dekuf/models"
	"github.com/danielhkuo/dekuf/relay"
	"github.com/danielhkuo/dekuf/testutil"
)

// TestFullProtocolWorkflow runs one group through the whole protocol:
// 1. Three respondents sign up
// 2. All three see the same delegate
// 3. Peers post their answers to the delegate
// 4. The delegate reads its mailbox
// 5. The delegate submits the merged response
// 6. The group is gone and the aggregate reflects the response
func TestFullProtocolWorkflow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer db.Close()

	cfg := testutil.GetTestConfig()
	s := testutil.CreateTestSurvey(t, db, "S1")

	signupHandler := NewSignupHandler(grouping.NewEngine(db, cfg.GroupSize, nil))
	relayHandler := NewRelayHandler(relay.New(db, nil))
	responseHandler := NewResponseHandler(ingest.New(db, nil))
	surveyHandler := NewSurveyHandler(db, cfg)

	// Step 1
	clients := make([]string, 0, cfg.GroupSize)
	for i := 0; i < cfg.GroupSize; i++ {
		clients = append(clients, signup(t, signupHandler, s.ID).ClientID)
	}
	t.Logf("Step 1 - Signed up %d clients", len(clients))

	// Step 2
	delegateID := ""
	for _, id := range clients {
		w, st := state(t, signupHandler, id)
		testutil.AssertStatus(t, w, http.StatusOK)
		if !st.AggregationStarted {
			t.Fatalf("Step 2 - Client %s not grouped", id)
		}
		if delegateID == "" {
			delegateID = st.DelegateID
		}
		if st.DelegateID != delegateID {
			t.Fatalf("Step 2 - Clients disagree on delegate: %s vs %s", st.DelegateID, delegateID)
		}
	}
	if delegateID != clients[0] {
		t.Fatalf("Step 2 - Expected earliest signup %s as delegate, got %s", clients[0], delegateID)
	}

	// Step 3
	answers := []int{4, 6}
	for i, id := range clients[1:] {
		body := fmt.Sprintf(`{"client_id":%q,"q1":%d}`, id, answers[i])
		w := sendMessage(relayHandler, delegateID, body)
		if w.Code != http.StatusCreated {
			t.Fatalf("Step 3 - Send failed: %d - %s", w.Code, w.Body.String())
		}
	}

	// Step 4
	w := getMessages(relayHandler, delegateID)
	if w.Code != http.StatusOK {
		t.Fatalf("Step 4 - Get messages failed: %d - %s", w.Code, w.Body.String())
	}
	var mailbox models.MessagesResponse
	testutil.AssertJSON(t, w, &mailbox)
	if len(mailbox.Messages) != 2 {
		t.Fatalf("Step 4 - Expected 2 messages, got %d", len(mailbox.Messages))
	}

	total := 5 // delegate's own answer
	for _, raw := range mailbox.Messages {
		var m struct {
			Q1 int `json:"q1"`
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("Step 4 - Bad message %s: %v", raw, err)
		}
		total += m.Q1
	}

	// Step 5
	body := fmt.Sprintf(`{"commissioners":[{"name":"Test Commissioner"}],"queryResponses":[{"data_key":"q1","data":%d}]}`, total)
	w = submitDelegateResponse(responseHandler, delegateID, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Step 5 - Delegate response failed: %d - %s", w.Code, w.Body.String())
	}

	// Step 6
	for _, id := range clients {
		w, _ := state(t, signupHandler, id)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	}
	w = getMessages(relayHandler, delegateID)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	req := httptest.NewRequest("GET", "/api/surveys/"+s.ID+"/aggregates", nil)
	req.SetPathValue("survey_id", s.ID)
	w = httptest.NewRecorder()
	surveyHandler.GetAggregates(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var aggs models.SurveyAggregatesResponse
	testutil.AssertJSON(t, w, &aggs)
	var agg map[string]any
	if err := json.Unmarshal(aggs.Aggregates[0].Aggregate, &agg); err != nil {
		t.Fatalf("Step 6 - Bad aggregate: %v", err)
	}
	if agg["sum"] != 15.0 || agg["count"] != 1.0 {
		t.Errorf("Step 6 - Expected sum 15 count 1, got %v", agg)
	}
}
