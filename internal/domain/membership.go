package domain

import (
	"time"

	"github.com/google/uuid"
)

type MembershipStatus string

const MembershipActive MembershipStatus = "active"

type Membership struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	ActivityID uuid.UUID        `json:"activity_id" db:"activity_id"`
	UserID     uuid.UUID        `json:"user_id" db:"user_id"`
	Status     MembershipStatus `json:"status" db:"status"`
	JoinedAt   time.Time        `json:"joined_at" db:"joined_at"`
}

type RemoveMemberCommand struct {
	ActivityID   uuid.UUID
	TargetUserID uuid.UUID
}

type RemoveResult struct {
	Activity  *Activity   `json:"activity"`
	Removed   *Membership `json:"removed"`
	SelfLeave bool        `json:"self_leave"`
}

type MemberList struct {
	HostID  uuid.UUID    `json:"host_id"`
	Members []Membership `json:"members"`
}
