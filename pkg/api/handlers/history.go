package handlers

import (
	"encoding/json"
	"net/http"

	"tutorchat/pkg/chat"
	"tutorchat/pkg/models"
	"tutorchat/pkg/utils"
)

type pairRequest struct {
	ModelID string `json:"model_id"`
}

// loadHistory returns the full client-visible turn sequence for the
// caller's (identity, model) pair. Clients call this after every terminal
// event to resynchronize with the persisted log.
func (h *Handlers) loadHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	turns, err := h.engine.History(r.Context(), id.UserID, req.ModelID)
	if err != nil {
		utils.JSONError(w, chat.StatusFor(err), err.Error())
		return
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Messages []models.DisplayTurn `json:"messages"`
	}{Messages: turns})
}

// clearConversation deletes every turn of the pair's conversation. The
// operation is idempotent; clearing an empty conversation succeeds.
func (h *Handlers) clearConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.engine.Clear(r.Context(), id.UserID, req.ModelID); err != nil {
		utils.JSONError(w, chat.StatusFor(err), err.Error())
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]bool{"ok": true})
}
