package models

// Conversation is the single persistent dialogue thread for one
// (owner, model) pair. Rows are created lazily on first user turn and
// never updated; clearing purges turns but keeps the row.
type Conversation struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	ModelID string `json:"model_id"`
	// Created timestamp (ns)
	CreatedAt int64 `json:"created_at,omitempty"`
}
