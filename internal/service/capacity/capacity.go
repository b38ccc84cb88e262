// Package capacity holds the pure rules for activity capacity and status.
// Nothing in here performs I/O; callers feed it freshly read rows.
package capacity

import (
	"time"

	"activity-hub/internal/domain"
)

// CanAcceptJoin reports whether a new member may be added right now.
func CanAcceptJoin(a *domain.Activity, now time.Time) bool {
	return a.Status == domain.StatusOpen &&
		a.StartsAt.After(now) &&
		a.MemberCount < a.MaxMembers
}

// CheckJoin is nil exactly when CanAcceptJoin holds and otherwise explains
// why not. Expiry wins over every other reason so callers know to run lazy
// completion.
func CheckJoin(a *domain.Activity, now time.Time) error {
	if CanAcceptJoin(a, now) {
		return nil
	}
	switch {
	case a.Status == domain.StatusDeleted:
		return domain.ErrActivityNotFound
	case a.Status == domain.StatusCompleted || IsExpired(a, now):
		return domain.ErrActivityEnded
	case a.Status == domain.StatusFull || a.MemberCount >= a.MaxMembers:
		return domain.ErrActivityFull
	}
	return domain.ErrActivityClosed
}

// StatusAfterJoin is the status once the member count has been incremented.
func StatusAfterJoin(a *domain.Activity) domain.ActivityStatus {
	if a.MemberCount+1 == a.MaxMembers {
		return domain.StatusFull
	}
	return a.Status
}

// StatusAfterLeave is the status once the member count has dropped to newCount.
// Only a full activity reopens.
func StatusAfterLeave(a *domain.Activity, newCount int) domain.ActivityStatus {
	if a.Status == domain.StatusFull && newCount < a.MaxMembers {
		return domain.StatusOpen
	}
	return a.Status
}

// StatusForMax recomputes a live activity's status after its capacity changed.
func StatusForMax(a *domain.Activity, newMax int) domain.ActivityStatus {
	if !a.Status.IsLive() {
		return a.Status
	}
	if a.MemberCount >= newMax {
		return domain.StatusFull
	}
	return domain.StatusOpen
}

// StatusForCount is the status of an activity holding count members, for
// writers that recount rows instead of applying a delta. Finished activities
// keep their status.
func StatusForCount(a *domain.Activity, count int) domain.ActivityStatus {
	if !a.Status.IsLive() {
		return a.Status
	}
	if count >= a.MaxMembers {
		return domain.StatusFull
	}
	return domain.StatusOpen
}

func IsExpired(a *domain.Activity, now time.Time) bool {
	return a.StartsAt.Before(now)
}

// ShouldComplete reports whether the sweep should flip a to completed.
func ShouldComplete(a *domain.Activity, now time.Time) bool {
	return a.Status.IsLive() && IsExpired(a, now)
}

// ValidCount reports whether count satisfies 0 <= count <= max.
func ValidCount(count, max int) bool {
	return count >= 0 && count <= max
}

// ValidateMaxMembers enforces the per-kind capacity bounds.
func ValidateMaxMembers(kind domain.ActivityKind, max int) error {
	switch kind {
	case domain.KindOneOnOne:
		if max != domain.OneOnOneMaxMembers {
			return domain.BadRequest("one-on-one activities must have max_members of 2")
		}
	case domain.KindGroup:
		if max < domain.MinGroupMembers || max > domain.MaxGroupMembers {
			return domain.BadRequest("group activities must have between 2 and 50 max_members")
		}
	default:
		return domain.BadRequest("invalid activity kind")
	}
	return nil
}
