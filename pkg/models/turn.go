package models

// Role tags a persisted turn. Error turns record a failed assistant
// attempt; they are shown to clients but excluded from prompt assembly.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// Valid reports whether r is one of the persistable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleError:
		return true
	}
	return false
}

type Turn struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           Role   `json:"role"`
	Content        string `json:"content"`
	// CreatedAt is the ordering key (ns, UTC).
	CreatedAt int64 `json:"created_at"`
	// Seq breaks ties between turns sharing a nanosecond timestamp so
	// listing order stays deterministic.
	Seq uint64 `json:"seq,omitempty"`
}

// DisplayTurn is the client-facing projection of a Turn. Error turns are
// remapped to the assistant role with IsFailure set so renderers can style
// them as failures and suppress copy/regenerate affordances.
type DisplayTurn struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
	IsFailure bool   `json:"is_failure,omitempty"`
}

// Display projects a persisted turn into its client-visible form.
func (t Turn) Display() DisplayTurn {
	d := DisplayTurn{
		ID:        t.ID,
		Role:      t.Role,
		Content:   t.Content,
		CreatedAt: t.CreatedAt,
	}
	if t.Role == RoleError {
		d.Role = RoleAssistant
		d.IsFailure = true
	}
	return d
}
