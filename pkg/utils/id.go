package utils

import "github.com/google/uuid"

// GenConversationID returns a new opaque conversation identifier.
func GenConversationID() string {
	return "conv-" + uuid.NewString()
}

// GenTurnID returns a new opaque turn identifier.
func GenTurnID() string {
	return "turn-" + uuid.NewString()
}
