package chat

import (
	"context"
	"errors"
	"strings"

	"tutorchat/pkg/logger"
	"tutorchat/pkg/models"
	"tutorchat/pkg/store"
)

// History reconstructs the client-visible turn sequence. A missing
// conversation is the empty sequence, not an error; no conversation is
// created by a read. This is the only read path clients use to
// re-synchronize after any mutation.
func (e *Engine) History(ctx context.Context, identity, modelID string) ([]models.DisplayTurn, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, &AuthorizationError{Msg: "missing identity"}
	}
	if _, ok := e.catalog.Find(modelID); !ok {
		return nil, &ValidationError{Msg: "unknown model"}
	}

	conv, err := e.store.ResolveConversation(ctx, identity, modelID)
	if errors.Is(err, store.ErrNotFound) {
		return []models.DisplayTurn{}, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "resolve conversation", Err: err}
	}

	// Error turns ARE shown; Display remaps them to failure-styled
	// assistant turns.
	turns, err := e.store.ListTurns(ctx, conv.ID)
	if err != nil {
		return nil, &StorageError{Op: "list turns", Err: err}
	}
	out := make([]models.DisplayTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.Display())
	}
	return out, nil
}

// Clear deletes every turn of the pair's conversation. Clearing an empty
// or nonexistent conversation succeeds as a no-op, so the operation is
// idempotent. The conversation row itself is retained.
func (e *Engine) Clear(ctx context.Context, identity, modelID string) error {
	if strings.TrimSpace(identity) == "" {
		return &AuthorizationError{Msg: "missing identity"}
	}
	if _, ok := e.catalog.Find(modelID); !ok {
		return &ValidationError{Msg: "unknown model"}
	}

	conv, err := e.store.ResolveConversation(ctx, identity, modelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return &StorageError{Op: "resolve conversation", Err: err}
	}
	if err := e.store.DeleteTurns(ctx, conv.ID); err != nil {
		return &StorageError{Op: "delete turns", Err: err}
	}
	logger.Info("conversation_cleared", "conversation", conv.ID, "model", modelID)
	return nil
}
