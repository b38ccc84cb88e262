package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	UserID     uuid.UUID        `json:"user_id" db:"user_id"`
	ActorID    *uuid.UUID       `json:"actor_id,omitempty" db:"actor_id"`
	ActivityID *uuid.UUID       `json:"activity_id,omitempty" db:"activity_id"`
	Type       NotificationType `json:"type" db:"type"`
	Title      string           `json:"title" db:"title"`
	Message    string           `json:"message" db:"message"`
	DedupeKey  *string          `json:"-" db:"dedupe_key"`
	Data       json.RawMessage  `json:"data,omitempty" db:"data"`
	IsRead     bool             `json:"is_read" db:"is_read"`
	ReadAt     *time.Time       `json:"read_at,omitempty" db:"read_at"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

type NotificationType string

const (
	NotifJoinRequested   NotificationType = "join_requested"
	NotifJoinApproved    NotificationType = "join_approved"
	NotifJoinRejected    NotificationType = "join_rejected"
	NotifMemberLeft      NotificationType = "member_left"
	NotifMemberRemoved   NotificationType = "member_removed"
	NotifActivityUpdated NotificationType = "activity_updated"
	NotifActivityDeleted NotificationType = "activity_deleted"
	NotifChatActivity    NotificationType = "chat_activity"
)
