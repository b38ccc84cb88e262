package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	ActivityID uuid.UUID       `json:"activity_id" db:"activity_id"`
	Action     AuditAction     `json:"action" db:"action"`
	SubjectID  *uuid.UUID      `json:"subject_id,omitempty" db:"subject_id"`
	Details    json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

type AuditAction string

const (
	AuditJoinApproved    AuditAction = "join_approved"
	AuditJoinRejected    AuditAction = "join_rejected"
	AuditMemberRemoved   AuditAction = "member_removed"
	AuditMemberLeft      AuditAction = "member_left"
	AuditActivityUpdated AuditAction = "activity_updated"
	AuditActivityDeleted AuditAction = "activity_deleted"
)

type CreateAuditLogInput struct {
	Actor      Caller
	ActivityID uuid.UUID
	Action     AuditAction
	SubjectID  *uuid.UUID
	Details    interface{}
}
