package domain

import (
	"time"

	"github.com/google/uuid"
)

type JoinRequestStatus string

const (
	JoinPending  JoinRequestStatus = "pending"
	JoinApproved JoinRequestStatus = "approved"
	JoinRejected JoinRequestStatus = "rejected"
)

func (s JoinRequestStatus) IsValid() bool {
	switch s {
	case JoinPending, JoinApproved, JoinRejected:
		return true
	}
	return false
}

type JoinRequest struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	ActivityID  uuid.UUID         `json:"activity_id" db:"activity_id"`
	RequesterID uuid.UUID         `json:"requester_id" db:"requester_id"`
	Status      JoinRequestStatus `json:"status" db:"status"`
	Message     *string           `json:"message,omitempty" db:"message"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	RespondedAt *time.Time        `json:"responded_at,omitempty" db:"responded_at"`

	Answers []JoinAnswer `json:"answers,omitempty" db:"-"`
}

type JoinAnswer struct {
	JoinRequestID uuid.UUID `json:"join_request_id" db:"join_request_id"`
	Position      int       `json:"position" db:"position"`
	Question      string    `json:"question" db:"question"`
	Answer        string    `json:"answer" db:"answer"`
}

type RequestJoinCommand struct {
	ActivityID uuid.UUID
	Message    *string
	Answers    []string
}

// ResolveJoinCommand identifies a join request either directly or by the
// (activity, requester) pair.
type ResolveJoinCommand struct {
	JoinRequestID *uuid.UUID
	ActivityID    *uuid.UUID
	RequesterID   *uuid.UUID
}

func (c ResolveJoinCommand) IsValid() bool {
	return c.JoinRequestID != nil || (c.ActivityID != nil && c.RequesterID != nil)
}

type RequestJoinResult struct {
	JoinRequest      *JoinRequest `json:"join_request"`
	DuplicatePending bool         `json:"duplicatePending"`
}

type ApproveResult struct {
	JoinRequest *JoinRequest `json:"join_request"`
	Membership  *Membership  `json:"membership"`
	Activity    *Activity    `json:"activity"`
}
