package domain

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ActivityID uuid.UUID `json:"activity_id" db:"activity_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type ConversationParticipant struct {
	ConversationID uuid.UUID  `json:"conversation_id" db:"conversation_id"`
	UserID         uuid.UUID  `json:"user_id" db:"user_id"`
	JoinedAt       time.Time  `json:"joined_at" db:"joined_at"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
}
