// Package store performs the multi-row membership mutations. Every method
// either fully applies or leaves the rows as they were before the call.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/metrics"
	"activity-hub/internal/repository"
	"activity-hub/internal/service/capacity"
)

type Mode string

const (
	ModeTransactional Mode = "transactional"
	ModeCompensating  Mode = "compensating"
)

// MembershipStore is the single entry point for writes that touch more than
// one row. Services call it without knowing which implementation is active.
type MembershipStore interface {
	CreateActivity(ctx context.Context, b *domain.ActivityBundle) error
	// SubmitJoinRequest inserts jr as pending. When a pending request already
	// exists it is returned with duplicate set and nothing is written.
	SubmitJoinRequest(ctx context.Context, jr *domain.JoinRequest, now time.Time) (existing *domain.JoinRequest, duplicate bool, err error)
	ApproveJoin(ctx context.Context, requestID uuid.UUID, now time.Time) (*domain.ApproveResult, error)
	RejectJoin(ctx context.Context, requestID uuid.UUID, now time.Time) (*domain.JoinRequest, error)
	RemoveMember(ctx context.Context, activityID, userID uuid.UUID) (*domain.RemoveResult, error)
	UpdateActivity(ctx context.Context, activityID uuid.UUID, apply func(a *domain.Activity) error) (*domain.Activity, error)
	DeleteActivity(ctx context.Context, activityID uuid.UUID, now time.Time) (*domain.DeleteResult, error)
	CompleteExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	CompleteIfExpired(ctx context.Context, activityID uuid.UUID, now time.Time) (bool, error)
	Mode() Mode
}

// New returns the implementation selected by mode.
func New(mode Mode, gw repository.Gateway, m *metrics.Metrics, logger *slog.Logger) (MembershipStore, error) {
	switch mode {
	case ModeTransactional, "":
		return NewTransactional(gw, logger), nil
	case ModeCompensating:
		return NewCompensating(gw, m, logger), nil
	default:
		return nil, fmt.Errorf("unknown membership store mode %q", mode)
	}
}

// base holds the operations that are a single statement and therefore
// atomic in both modes.
type base struct {
	gw     repository.Gateway
	logger *slog.Logger
}

func (b *base) RejectJoin(ctx context.Context, requestID uuid.UUID, now time.Time) (*domain.JoinRequest, error) {
	r := b.gw.Privileged()
	ok, err := r.JoinRequests.Transition(ctx, requestID, domain.JoinPending, domain.JoinRejected, &now)
	if err != nil {
		return nil, fmt.Errorf("reject join request: %w", err)
	}
	if !ok {
		return nil, resolvedOrMissing(ctx, r, requestID)
	}
	jr, err := r.JoinRequests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("reload join request: %w", err)
	}
	return jr, nil
}

func (b *base) CompleteExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ids, err := b.gw.Privileged().Activities.CompleteExpired(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("complete expired activities: %w", err)
	}
	return ids, nil
}

func (b *base) CompleteIfExpired(ctx context.Context, activityID uuid.UUID, now time.Time) (bool, error) {
	ok, err := b.gw.Privileged().Activities.CompleteIfExpired(ctx, activityID, now)
	if err != nil {
		return false, fmt.Errorf("complete activity: %w", err)
	}
	return ok, nil
}

func resolvedOrMissing(ctx context.Context, r *repository.Repositories, requestID uuid.UUID) error {
	jr, err := r.JoinRequests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("get join request: %w", err)
	}
	if jr == nil {
		return domain.ErrJoinRequestNotFound
	}
	return domain.ErrJoinRequestResolved
}

// checkJoinable validates a freshly read activity for a new member.
func checkJoinable(ctx context.Context, r *repository.Repositories, a *domain.Activity, userID uuid.UUID, now time.Time) error {
	if a.IsHost(userID) {
		return domain.ErrHostCannotJoin
	}
	if err := capacity.CheckJoin(a, now); err != nil {
		return err
	}
	existing, err := r.Memberships.Get(ctx, a.ID, userID)
	if err != nil {
		return fmt.Errorf("get membership: %w", err)
	}
	if existing != nil {
		return domain.ErrAlreadyMember
	}
	return nil
}

func newMembership(activityID, userID uuid.UUID, now time.Time) *domain.Membership {
	return &domain.Membership{
		ID:         uuid.New(),
		ActivityID: activityID,
		UserID:     userID,
		Status:     domain.MembershipActive,
		JoinedAt:   now,
	}
}

func resolveTags(ctx context.Context, r *repository.Repositories, slugs []string) ([]uuid.UUID, error) {
	if len(slugs) == 0 {
		return nil, domain.ErrTagsRequired
	}
	uniq := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		uniq[s] = struct{}{}
	}
	tags, err := r.Tags.GetBySlugs(ctx, slugs)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	if len(tags) != len(uniq) {
		return nil, domain.BadRequest("unknown tag")
	}
	ids := make([]uuid.UUID, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids, nil
}

var deletableStatuses = []domain.ActivityStatus{domain.StatusOpen, domain.StatusFull, domain.StatusCompleted}
