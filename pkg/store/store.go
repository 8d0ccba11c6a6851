package store

import (
	"context"
	"errors"
	"fmt"

	"tutorchat/pkg/config"
	"tutorchat/pkg/models"
)

// ErrNotFound is returned when a conversation or turn does not exist.
var ErrNotFound = errors.New("store: not found")

// Backend is the conversation store boundary. Each operation is
// individually atomic; no cross-entity transaction is assumed.
type Backend interface {
	// ResolveConversation returns the unique conversation for the
	// (owner, model) pair, or ErrNotFound. It never creates one.
	ResolveConversation(ctx context.Context, ownerID, modelID string) (*models.Conversation, error)

	// CreateConversation creates the conversation row for the pair. Drivers
	// backed by a store with a uniqueness constraint return the existing
	// row on conflict.
	CreateConversation(ctx context.Context, ownerID, modelID string) (*models.Conversation, error)

	// AppendTurn appends a single immutable turn to the conversation log.
	AppendTurn(ctx context.Context, conversationID string, role models.Role, content string) (*models.Turn, error)

	// ListTurns returns all turns of the conversation ordered ascending by
	// creation, excluding the given roles. Ties on the timestamp are broken
	// by insertion order.
	ListTurns(ctx context.Context, conversationID string, exclude ...models.Role) ([]models.Turn, error)

	// DeleteTurns removes every turn of the conversation. Deleting from an
	// empty or unknown conversation is a no-op.
	DeleteTurns(ctx context.Context, conversationID string) error

	// ListConversations returns all conversation rows (retention sweeps).
	ListConversations(ctx context.Context) ([]models.Conversation, error)

	Ready() bool
	Close() error
}

// Open builds the configured backend.
func Open(cfg config.StorageConfig, dbPath string) (Backend, error) {
	switch cfg.Driver {
	case "", "pebble":
		if cfg.DBPath != "" {
			dbPath = cfg.DBPath
		}
		return OpenPebble(dbPath)
	case "supabase":
		return NewSupabase(cfg.Supabase)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}

func excluded(role models.Role, exclude []models.Role) bool {
	for _, e := range exclude {
		if role == e {
			return true
		}
	}
	return false
}
