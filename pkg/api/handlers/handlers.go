// Package handlers contains the HTTP handlers for the chat protocol.
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"tutorchat/pkg/auth"
	"tutorchat/pkg/chat"
	"tutorchat/pkg/utils"
)

// Handlers binds the protocol engine to the HTTP surface.
type Handlers struct {
	engine *chat.Engine
}

// New creates the handler set.
func New(engine *chat.Engine) *Handlers {
	return &Handlers{engine: engine}
}

// Register registers the chat endpoints on the given router.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/chat", h.submitTurn).Methods(http.MethodPost)
	r.HandleFunc("/history", h.loadHistory).Methods(http.MethodPost)
	r.HandleFunc("/clear", h.clearConversation).Methods(http.MethodPost)
	r.HandleFunc("/models", h.listModels).Methods(http.MethodGet)
}

// identity extracts the verified identity injected by the auth middleware.
func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return auth.Identity{}, false
	}
	return id, true
}
