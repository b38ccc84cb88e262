package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the read-only profile projection this service needs. Profiles are
// owned by the identity provider.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	AvatarURL *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
