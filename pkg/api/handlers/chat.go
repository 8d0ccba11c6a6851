package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"tutorchat/pkg/chat"
	"tutorchat/pkg/llm"
	"tutorchat/pkg/logger"
	"tutorchat/pkg/utils"
)

type submitRequest struct {
	ModelID string `json:"model_id"`
	Input   string `json:"input"`
}

// sseEvent is one streamed payload. Type is "text", "reasoning", "done"
// or "error".
type sseEvent struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// submitTurn runs the turn submission protocol and streams fragments to
// the caller as server-sent events. Errors raised before the stream opens
// are plain JSON; errors after it are delivered as a terminal error event.
func (h *Handlers) submitTurn(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	flusher, canFlush := w.(http.Flusher)
	streaming := false
	writeEvent := func(ev sseEvent) {
		if !streaming {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			streaming = true
		}
		b, _ := json.Marshal(ev)
		_, _ = fmt.Fprintf(w, "data: %s\n\n", b)
		if canFlush {
			flusher.Flush()
		}
	}

	res, err := h.engine.Submit(r.Context(), chat.SubmitRequest{
		Identity:  id.UserID,
		ModelID:   req.ModelID,
		Utterance: req.Input,
	}, func(f llm.Fragment) {
		writeEvent(sseEvent{Type: f.Kind, Content: f.Content})
	})

	if err != nil {
		var ie *chat.InferenceError
		if errors.As(err, &ie) && ie.Canceled {
			// caller went away; nothing left to write
			logger.Debug("chat_request_canceled", "user", id.UserID)
			return
		}
		if streaming {
			writeEvent(sseEvent{Type: "error", Error: err.Error()})
			return
		}
		utils.JSONError(w, chat.StatusFor(err), err.Error())
		return
	}
	writeEvent(sseEvent{Type: "done", ConversationID: res.ConversationID})
}
