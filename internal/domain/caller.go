package domain

import "github.com/google/uuid"

type TrustLevel string

const (
	TrustUser     TrustLevel = "user"
	TrustInternal TrustLevel = "internal"
)

// Caller identifies who is invoking an operation. Internal callers skip
// per-user authorization but never business validation.
type Caller struct {
	UserID uuid.UUID
	Trust  TrustLevel
}

func UserCaller(id uuid.UUID) Caller {
	return Caller{UserID: id, Trust: TrustUser}
}

func InternalCaller() Caller {
	return Caller{Trust: TrustInternal}
}

func (c Caller) IsInternal() bool {
	return c.Trust == TrustInternal
}

func (c Caller) Authenticated() bool {
	return c.IsInternal() || c.UserID != uuid.Nil
}

// Is reports whether the caller is the given user.
func (c Caller) Is(userID uuid.UUID) bool {
	return c.Trust == TrustUser && c.UserID != uuid.Nil && c.UserID == userID
}
