package store

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"tutorchat/pkg/config"
	"tutorchat/pkg/logger"
	"tutorchat/pkg/models"
)

// Supabase is the hosted-Postgres store driver. Conversations and turns
// live in the `conversations` and `messages` tables; the service key
// bypasses row-level security, so ownership checks stay in this process.
type Supabase struct {
	client *supabase.Client
}

// NewSupabase creates a store client for the hosted database.
func NewSupabase(cfg config.SupabaseConfig) (*Supabase, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("supabase service key is required")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Supabase{client: client}, nil
}

func (s *Supabase) Ready() bool { return s.client != nil }

func (s *Supabase) Close() error { return nil }

type conversationRow struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ModelID   string `json:"model_id"`
	CreatedAt string `json:"created_at,omitempty"`
}

// messageRow maps the `messages` table. The seq column is a bigserial the
// database assigns on insert; it is the monotonic ordering key, since both
// created_at (ties at timestamp resolution) and a random uuid id would
// leave same-instant turns in arbitrary order.
type messageRow struct {
	ID             string `json:"id,omitempty"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Seq            uint64 `json:"seq,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func parseTS(s string) int64 {
	if s == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return t.UTC().UnixNano()
}

func (r conversationRow) model() models.Conversation {
	return models.Conversation{
		ID:        r.ID,
		OwnerID:   r.UserID,
		ModelID:   r.ModelID,
		CreatedAt: parseTS(r.CreatedAt),
	}
}

func (s *Supabase) ResolveConversation(ctx context.Context, ownerID, modelID string) (*models.Conversation, error) {
	var rows []conversationRow
	_, err := s.client.From("conversations").
		Select("id,user_id,model_id,created_at", "", false).
		Eq("user_id", ownerID).
		Eq("model_id", modelID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	c := rows[0].model()
	return &c, nil
}

func (s *Supabase) CreateConversation(ctx context.Context, ownerID, modelID string) (*models.Conversation, error) {
	// Upsert on the (user_id, model_id) uniqueness constraint returns the
	// existing row when a concurrent request already created it.
	var rows []conversationRow
	_, err := s.client.From("conversations").
		Insert(conversationRow{UserID: ownerID, ModelID: modelID}, true, "user_id,model_id", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create conversation: empty representation")
	}
	c := rows[0].model()
	logger.Info("conversation_created", "id", c.ID, "owner", ownerID, "model", modelID)
	return &c, nil
}

func (s *Supabase) AppendTurn(ctx context.Context, conversationID string, role models.Role, content string) (*models.Turn, error) {
	var rows []messageRow
	_, err := s.client.From("messages").
		Insert(messageRow{ConversationID: conversationID, Role: string(role), Content: content}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("append turn: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("append turn: empty representation")
	}
	r := rows[0]
	logger.Info("turn_appended", "conversation", conversationID, "id", r.ID, "role", string(role))
	return &models.Turn{
		ID:             r.ID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Seq:            r.Seq,
		CreatedAt:      parseTS(r.CreatedAt),
	}, nil
}

func (s *Supabase) ListTurns(ctx context.Context, conversationID string, exclude ...models.Role) ([]models.Turn, error) {
	q := s.client.From("messages").
		Select("id,conversation_id,role,content,seq,created_at", "", false).
		Eq("conversation_id", conversationID)
	for _, e := range exclude {
		q = q.Neq("role", string(e))
	}
	var rows []messageRow
	// Insertion order comes from the bigserial seq column; created_at
	// cannot break its own ties and uuid ids sort randomly.
	_, err := q.
		Order("seq", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	out := make([]models.Turn, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Turn{
			ID:             r.ID,
			ConversationID: r.ConversationID,
			Role:           models.Role(r.Role),
			Content:        r.Content,
			Seq:            r.Seq,
			CreatedAt:      parseTS(r.CreatedAt),
		})
	}
	return out, nil
}

func (s *Supabase) DeleteTurns(ctx context.Context, conversationID string) error {
	_, _, err := s.client.From("messages").
		Delete("", "").
		Eq("conversation_id", conversationID).
		Execute()
	if err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	logger.Info("turns_deleted", "conversation", conversationID)
	return nil
}

func (s *Supabase) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var rows []conversationRow
	_, err := s.client.From("conversations").
		Select("id,user_id,model_id,created_at", "", false).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]models.Conversation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}
