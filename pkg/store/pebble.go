package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"tutorchat/pkg/logger"
	"tutorchat/pkg/models"
	"tutorchat/pkg/utils"
)

// Pebble is the embedded store driver. Turn keys carry a zero-padded
// nanosecond timestamp plus a process-wide sequence so iteration order is
// creation order even when timestamps collide.
type Pebble struct {
	db *pebble.DB
	// seq reduces key collisions when multiple turns share a nanosecond.
	seq uint64
}

// OpenPebble opens (or creates) a pebble database at the given path.
func OpenPebble(path string) (*Pebble, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path)
	return &Pebble{db: db}, nil
}

// Close closes the underlying database.
func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return err
	}
	p.db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened.
func (p *Pebble) Ready() bool { return p.db != nil }

// Key layout:
//   pair:<ownerID>/<modelID>          -> conversation JSON
//   conv:<convID>                     -> conversation JSON
//   conv:<convID>:turn:<ns>-<seq>     -> turn JSON
//
// Both ns and seq are zero-padded to the full uint64 decimal width so
// byte order matches numeric order for every value either can take.
func pairKey(ownerID, modelID string) []byte {
	return []byte(fmt.Sprintf("pair:%s/%s", ownerID, modelID))
}

func turnKey(convID string, ts int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("conv:%s:turn:%020d-%020d", convID, ts, seq))
}

func convKey(id string) []byte {
	return []byte("conv:" + id)
}

func turnPrefix(convID string) []byte {
	return []byte(fmt.Sprintf("conv:%s:turn:", convID))
}

func (p *Pebble) ResolveConversation(ctx context.Context, ownerID, modelID string) (*models.Conversation, error) {
	if p.db == nil {
		return nil, fmt.Errorf("pebble not opened")
	}
	v, closer, err := p.db.Get(pairKey(ownerID, modelID))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	defer closer.Close()
	var c models.Conversation
	if err := json.Unmarshal(v, &c); err != nil {
		return nil, fmt.Errorf("invalid stored conversation: %w", err)
	}
	return &c, nil
}

func (p *Pebble) CreateConversation(ctx context.Context, ownerID, modelID string) (*models.Conversation, error) {
	if p.db == nil {
		return nil, fmt.Errorf("pebble not opened")
	}
	// Return the existing row if a concurrent caller beat us to it.
	if c, err := p.ResolveConversation(ctx, ownerID, modelID); err == nil {
		return c, nil
	} else if err != ErrNotFound {
		return nil, err
	}
	c := models.Conversation{
		ID:        utils.GenConversationID(),
		OwnerID:   ownerID,
		ModelID:   modelID,
		CreatedAt: time.Now().UTC().UnixNano(),
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal conversation: %w", err)
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(pairKey(ownerID, modelID), b, nil); err != nil {
		return nil, err
	}
	if err := batch.Set(convKey(c.ID), b, nil); err != nil {
		return nil, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("create_conversation_failed", "owner", ownerID, "model", modelID, "error", err)
		return nil, err
	}
	logger.Info("conversation_created", "id", c.ID, "owner", ownerID, "model", modelID)
	return &c, nil
}

func (p *Pebble) AppendTurn(ctx context.Context, conversationID string, role models.Role, content string) (*models.Turn, error) {
	if p.db == nil {
		return nil, fmt.Errorf("pebble not opened")
	}
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&p.seq, 1)
	t := models.Turn{
		ID:             utils.GenTurnID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      ts,
		Seq:            s,
	}
	key := turnKey(conversationID, ts, s)
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal turn: %w", err)
	}
	if err := p.db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("append_turn_failed", "conversation", conversationID, "key", string(key), "error", err)
		return nil, err
	}
	logger.Info("turn_appended", "conversation", conversationID, "id", t.ID, "role", string(role))
	return &t, nil
}

func (p *Pebble) ListTurns(ctx context.Context, conversationID string, exclude ...models.Role) ([]models.Turn, error) {
	if p.db == nil {
		return nil, fmt.Errorf("pebble not opened")
	}
	prefix := turnPrefix(conversationID)
	upper := append(append([]byte{}, prefix...), 0xff)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make([]models.Turn, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var t models.Turn
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("invalid stored turn: %w", err)
		}
		if excluded(t.Role, exclude) {
			continue
		}
		out = append(out, t)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pebble) DeleteTurns(ctx context.Context, conversationID string) error {
	if p.db == nil {
		return fmt.Errorf("pebble not opened")
	}
	prefix := turnPrefix(conversationID)
	upper := append(append([]byte{}, prefix...), 0xff)
	// Range deletion commits as a single batch, so a clear is all-or-nothing.
	if err := p.db.DeleteRange(prefix, upper, pebble.Sync); err != nil {
		logger.Error("delete_turns_failed", "conversation", conversationID, "error", err)
		return err
	}
	logger.Info("turns_deleted", "conversation", conversationID)
	return nil
}

func (p *Pebble) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	if p.db == nil {
		return nil, fmt.Errorf("pebble not opened")
	}
	lower := []byte("pair:")
	upper := []byte("pair;")
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make([]models.Conversation, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var c models.Conversation
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}
