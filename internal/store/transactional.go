package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/repository"
	"activity-hub/internal/service/capacity"
)

// Transactional runs each mutation in one database transaction and locks the
// activity row first, so concurrent mutations of one activity serialise.
type Transactional struct {
	base
}

var _ MembershipStore = (*Transactional)(nil)

func NewTransactional(gw repository.Gateway, logger *slog.Logger) *Transactional {
	return &Transactional{base{gw: gw, logger: logger}}
}

func (s *Transactional) Mode() Mode { return ModeTransactional }

func (s *Transactional) CreateActivity(ctx context.Context, b *domain.ActivityBundle) error {
	return s.gw.WithinTx(ctx, func(r *repository.Repositories) error {
		if err := r.Activities.Create(ctx, b.Activity); err != nil {
			return fmt.Errorf("create activity: %w", err)
		}
		if err := r.Conversations.Create(ctx, b.Conversation); err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		if _, err := r.Conversations.AddParticipant(ctx, b.Host); err != nil {
			return fmt.Errorf("add host participant: %w", err)
		}
		tagIDs, err := resolveTags(ctx, r, b.TagSlugs)
		if err != nil {
			return err
		}
		if err := r.Tags.LinkActivity(ctx, b.Activity.ID, tagIDs); err != nil {
			return fmt.Errorf("link tags: %w", err)
		}
		return nil
	})
}

func (s *Transactional) SubmitJoinRequest(ctx context.Context, jr *domain.JoinRequest, now time.Time) (*domain.JoinRequest, bool, error) {
	var existing *domain.JoinRequest
	err := s.gw.WithinTx(ctx, func(r *repository.Repositories) error {
		a, err := r.Activities.GetByIDForUpdate(ctx, jr.ActivityID)
		if err != nil {
			return fmt.Errorf("lock activity: %w", err)
		}
		if a == nil {
			return domain.ErrActivityNotFound
		}
		if err := checkJoinable(ctx, r, a, jr.RequesterID, now); err != nil {
			return err
		}

		existing, err = r.JoinRequests.GetPending(ctx, jr.ActivityID, jr.RequesterID)
		if err != nil {
			return fmt.Errorf("get pending request: %w", err)
		}
		if existing != nil {
			return nil
		}

		jr.Status = domain.JoinPending
		if err := r.JoinRequests.Create(ctx, jr); err != nil {
			return fmt.Errorf("create join request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return existing, existing != nil, nil
}

func (s *Transactional) ApproveJoin(ctx context.Context, requestID uuid.UUID, now time.Time) (*domain.ApproveResult, error) {
	var result domain.ApproveResult
	err := s.gw.WithinTx(ctx, func(r *repository.Repositories) error {
		jr, err := r.JoinRequests.GetByID(ctx, requestID)
		if err != nil {
			return fmt.Errorf("get join request: %w", err)
		}
		if jr == nil {
			return domain.ErrJoinRequestNotFound
		}
		if jr.Status != domain.JoinPending {
			return domain.ErrJoinRequestResolved
		}

		a, err := r.Activities.GetByIDForUpdate(ctx, jr.ActivityID)
		if err != nil {
			return fmt.Errorf("lock activity: %w", err)
		}
		if a == nil {
			return domain.ErrActivityNotFound
		}
		if err := checkJoinable(ctx, r, a, jr.RequesterID, now); err != nil {
			return err
		}

		ok, err := r.JoinRequests.Transition(ctx, jr.ID, domain.JoinPending, domain.JoinApproved, &now)
		if err != nil {
			return fmt.Errorf("approve join request: %w", err)
		}
		if !ok {
			return domain.ErrJoinRequestResolved
		}

		m := newMembership(a.ID, jr.RequesterID, now)
		if err := r.Memberships.Insert(ctx, m); err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}

		status := capacity.StatusAfterJoin(a)
		if err := r.Activities.UpdateCounts(ctx, a.ID, a.MemberCount, a.Status, a.MemberCount+1, status); err != nil {
			return fmt.Errorf("update activity counts: %w", err)
		}

		conv, err := r.Conversations.GetByActivity(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("get conversation: %w", err)
		}
		if conv != nil {
			p := &domain.ConversationParticipant{ConversationID: conv.ID, UserID: jr.RequesterID, JoinedAt: now}
			if _, err := r.Conversations.AddParticipant(ctx, p); err != nil {
				return fmt.Errorf("add participant: %w", err)
			}
		}

		jr.Status, jr.RespondedAt = domain.JoinApproved, &now
		a.MemberCount, a.Status = a.MemberCount+1, status
		result = domain.ApproveResult{JoinRequest: jr, Membership: m, Activity: a}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Transactional) RemoveMember(ctx context.Context, activityID, userID uuid.UUID) (*domain.RemoveResult, error) {
	var result domain.RemoveResult
	err := s.gw.WithinTx(ctx, func(r *repository.Repositories) error {
		a, err := r.Activities.GetByIDForUpdate(ctx, activityID)
		if err != nil {
			return fmt.Errorf("lock activity: %w", err)
		}
		if a == nil {
			return domain.ErrActivityNotFound
		}
		if a.IsHost(userID) {
			return domain.ErrCannotRemoveHost
		}

		m, err := r.Memberships.Delete(ctx, activityID, userID)
		if err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		if m == nil {
			return domain.ErrMembershipNotFound
		}

		conv, err := r.Conversations.GetByActivity(ctx, activityID)
		if err != nil {
			return fmt.Errorf("get conversation: %w", err)
		}
		if conv != nil {
			if _, err := r.Conversations.RemoveParticipant(ctx, conv.ID, userID); err != nil {
				return fmt.Errorf("remove participant: %w", err)
			}
		}

		count, err := r.Memberships.CountActive(ctx, activityID)
		if err != nil {
			return fmt.Errorf("count members: %w", err)
		}
		status := capacity.StatusAfterLeave(a, count)
		if err := r.Activities.UpdateCounts(ctx, a.ID, a.MemberCount, a.Status, count, status); err != nil {
			return fmt.Errorf("update activity counts: %w", err)
		}

		a.MemberCount, a.Status = count, status
		result = domain.RemoveResult{Activity: a, Removed: m}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Transactional) UpdateActivity(ctx context.Context, activityID uuid.UUID, apply func(a *domain.Activity) error) (*domain.Activity, error) {
	var updated *domain.Activity
	err := s.gw.WithinTx(ctx, func(r *repository.Repositories) error {
		a, err := r.Activities.GetByIDForUpdate(ctx, activityID)
		if err != nil {
			return fmt.Errorf("lock activity: %w", err)
		}
		if a == nil {
			return domain.ErrActivityNotFound
		}
		fromCount, fromStatus := a.MemberCount, a.Status
		if err := apply(a); err != nil {
			return err
		}
		if err := r.Activities.UpdateDetails(ctx, a, fromCount, fromStatus); err != nil {
			return fmt.Errorf("update activity: %w", err)
		}
		updated = a
		return nil
	})
	return updated, err
}

func (s *Transactional) DeleteActivity(ctx context.Context, activityID uuid.UUID, now time.Time) (*domain.DeleteResult, error) {
	var result domain.DeleteResult
	err := s.gw.WithinTx(ctx, func(r *repository.Repositories) error {
		a, err := r.Activities.GetByIDForUpdate(ctx, activityID)
		if err != nil {
			return fmt.Errorf("lock activity: %w", err)
		}
		if a == nil {
			return domain.ErrActivityNotFound
		}

		members, err := r.Memberships.DeleteByActivity(ctx, activityID)
		if err != nil {
			return fmt.Errorf("delete memberships: %w", err)
		}
		if _, err := r.JoinRequests.RejectPendingByActivity(ctx, activityID, now); err != nil {
			return fmt.Errorf("reject pending requests: %w", err)
		}

		conv, err := r.Conversations.GetByActivity(ctx, activityID)
		if err != nil {
			return fmt.Errorf("get conversation: %w", err)
		}
		if conv != nil {
			if _, err := r.Conversations.DeleteParticipants(ctx, conv.ID); err != nil {
				return fmt.Errorf("delete participants: %w", err)
			}
			if err := r.Conversations.Delete(ctx, conv.ID); err != nil {
				return fmt.Errorf("delete conversation: %w", err)
			}
		}

		if err := r.Activities.UpdateCounts(ctx, a.ID, a.MemberCount, a.Status, 0, a.Status); err != nil {
			return fmt.Errorf("reset member count: %w", err)
		}
		ok, err := r.Activities.SetStatus(ctx, activityID, deletableStatuses, domain.StatusDeleted)
		if err != nil {
			return fmt.Errorf("mark deleted: %w", err)
		}
		if !ok {
			return domain.ErrStaleActivity
		}

		a.Status, a.MemberCount = domain.StatusDeleted, 0
		result = domain.DeleteResult{Activity: a, RemovedMembers: members}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
