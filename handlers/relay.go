// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielhkuo/dekuf/middleware"
	"github.com/danielhkuo/dekuf/models"
	"github.com/danielhkuo/dekuf/relay"
)

type RelayHandler struct {
	relay *relay.Relay
}

func NewRelayHandler(r *relay.Relay) *RelayHandler {
	return &RelayHandler{relay: r}
}

// SendMessage handles POST /api/delegate/:delegate_id/messages
func (h *RelayHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	delegateID := r.PathValue("delegate_id")
	if delegateID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "delegate_id is required")
		return
	}

	body, err := middleware.ReadBody(w, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Message content required")
		return
	}

	if _, err := h.relay.Send(r.Context(), delegateID, body); err != nil {
		writeError(w, "store message", err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

// GetMessages handles GET /api/delegate/:delegate_id/messages
func (h *RelayHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	delegateID := r.PathValue("delegate_id")
	if delegateID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "delegate_id is required")
		return
	}

	messages, err := h.relay.Receive(r.Context(), delegateID)
	if errors.Is(err, relay.ErrNoMessages) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "No messages found for: "+delegateID)
		return
	}
	if err != nil {
		writeError(w, "query messages", err)
		return
	}

	resp := models.MessagesResponse{Messages: make([]json.RawMessage, 0, len(messages))}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, m.Content)
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}
