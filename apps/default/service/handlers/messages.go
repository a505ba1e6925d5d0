package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/antinvestor/service-signal/apps/default/service/models"
	"github.com/antinvestor/service-signal/apps/default/service/protocol"
)

type sendMessageRequest struct {
	Recipient   string              `json:"recipient"`
	Message     string              `json:"message"`
	Attachments []models.Attachment `json:"attachments"`
}

// SendMessage handles POST /accounts/{tel}/messages. The message goes out
// through the account's live connection, which is established on demand.
func (ss *SignalServer) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientID, ok := ss.requireClient(w, r)
	if !ok {
		return
	}

	account, err := ss.AccountRepo.GetByClientAndTel(ctx, clientID, r.PathValue("tel"))
	if err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	var req sendMessageRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed request body"})
		return
	}

	err = ss.MessageBusiness.SendMessage(ctx, account, req.Recipient, protocol.OutgoingMessage{
		Body:        req.Message,
		Attachments: req.Attachments,
	})
	if err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
