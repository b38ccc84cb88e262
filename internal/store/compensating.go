package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/metrics"
	"activity-hub/internal/repository"
	"activity-hub/internal/service/capacity"
)

// Compensating runs each mutation as a sequence of single-row writes. Every
// successful write pushes its inverse; if a later step fails the inverses run
// in reverse order before the error is returned.
type Compensating struct {
	base
	metrics *metrics.Metrics
}

var _ MembershipStore = (*Compensating)(nil)

func NewCompensating(gw repository.Gateway, m *metrics.Metrics, logger *slog.Logger) *Compensating {
	return &Compensating{base: base{gw: gw, logger: logger}, metrics: m}
}

func (s *Compensating) Mode() Mode { return ModeCompensating }

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

type saga struct {
	s    *Compensating
	op   string
	undo []undoStep
}

func (s *Compensating) begin(op string) *saga {
	return &saga{s: s, op: op}
}

func (g *saga) done(name string, fn func(ctx context.Context) error) {
	g.undo = append(g.undo, undoStep{name: name, fn: fn})
}

// fail undoes every completed step and returns cause. Undo runs detached
// from ctx cancellation so a timed-out request is still compensated.
func (g *saga) fail(ctx context.Context, cause error) error {
	if len(g.undo) == 0 {
		return cause
	}
	ctx = context.WithoutCancel(ctx)

	var undoErrs []error
	for i := len(g.undo) - 1; i >= 0; i-- {
		step := g.undo[i]
		if err := step.fn(ctx); err != nil {
			g.s.logger.Error("compensation step failed",
				"operation", g.op, "step", step.name, "error", err, "cause", cause)
			g.s.metrics.Compensation(g.op, false)
			undoErrs = append(undoErrs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		g.s.metrics.Compensation(g.op, true)
	}

	if len(undoErrs) > 0 {
		return domain.Internal(errors.Join(append([]error{cause}, undoErrs...)...))
	}
	g.s.logger.Warn("operation rolled back", "operation", g.op, "steps", len(g.undo), "cause", cause)
	return cause
}

func (s *Compensating) CreateActivity(ctx context.Context, b *domain.ActivityBundle) error {
	r := s.gw.Privileged()
	g := s.begin("create_activity")

	if err := r.Activities.Create(ctx, b.Activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	g.done("delete activity", func(ctx context.Context) error {
		return r.Activities.Delete(ctx, b.Activity.ID)
	})

	if err := r.Conversations.Create(ctx, b.Conversation); err != nil {
		return g.fail(ctx, fmt.Errorf("create conversation: %w", err))
	}
	g.done("delete conversation", func(ctx context.Context) error {
		return r.Conversations.Delete(ctx, b.Conversation.ID)
	})

	if _, err := r.Conversations.AddParticipant(ctx, b.Host); err != nil {
		return g.fail(ctx, fmt.Errorf("add host participant: %w", err))
	}
	g.done("remove host participant", func(ctx context.Context) error {
		_, err := r.Conversations.RemoveParticipant(ctx, b.Host.ConversationID, b.Host.UserID)
		return err
	})

	tagIDs, err := resolveTags(ctx, r, b.TagSlugs)
	if err != nil {
		return g.fail(ctx, err)
	}
	if err := r.Tags.LinkActivity(ctx, b.Activity.ID, tagIDs); err != nil {
		return g.fail(ctx, fmt.Errorf("link tags: %w", err))
	}
	return nil
}

func (s *Compensating) SubmitJoinRequest(ctx context.Context, jr *domain.JoinRequest, now time.Time) (*domain.JoinRequest, bool, error) {
	r := s.gw.Privileged()

	a, err := r.Activities.GetByID(ctx, jr.ActivityID)
	if err != nil {
		return nil, false, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return nil, false, domain.ErrActivityNotFound
	}
	if err := checkJoinable(ctx, r, a, jr.RequesterID, now); err != nil {
		return nil, false, err
	}

	existing, err := r.JoinRequests.GetPending(ctx, jr.ActivityID, jr.RequesterID)
	if err != nil {
		return nil, false, fmt.Errorf("get pending request: %w", err)
	}
	if existing != nil {
		return existing, true, nil
	}

	jr.Status = domain.JoinPending
	err = r.JoinRequests.Create(ctx, jr)
	if errors.Is(err, domain.ErrDuplicatePending) {
		// Lost a race with a concurrent request from the same user.
		existing, getErr := r.JoinRequests.GetPending(ctx, jr.ActivityID, jr.RequesterID)
		if getErr != nil || existing == nil {
			return nil, false, err
		}
		return existing, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create join request: %w", err)
	}
	return nil, false, nil
}

func (s *Compensating) ApproveJoin(ctx context.Context, requestID uuid.UUID, now time.Time) (*domain.ApproveResult, error) {
	r := s.gw.Privileged()

	jr, err := r.JoinRequests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get join request: %w", err)
	}
	if jr == nil {
		return nil, domain.ErrJoinRequestNotFound
	}
	if jr.Status != domain.JoinPending {
		return nil, domain.ErrJoinRequestResolved
	}

	a, err := r.Activities.GetByID(ctx, jr.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return nil, domain.ErrActivityNotFound
	}
	if err := checkJoinable(ctx, r, a, jr.RequesterID, now); err != nil {
		return nil, err
	}

	g := s.begin("approve_join")

	ok, err := r.JoinRequests.Transition(ctx, jr.ID, domain.JoinPending, domain.JoinApproved, &now)
	if err != nil {
		return nil, fmt.Errorf("approve join request: %w", err)
	}
	if !ok {
		return nil, domain.ErrJoinRequestResolved
	}
	g.done("reopen join request", func(ctx context.Context) error {
		_, err := r.JoinRequests.Transition(ctx, jr.ID, domain.JoinApproved, domain.JoinPending, nil)
		return err
	})

	m := newMembership(a.ID, jr.RequesterID, now)
	if err := r.Memberships.Insert(ctx, m); err != nil {
		return nil, g.fail(ctx, fmt.Errorf("insert membership: %w", err))
	}
	g.done("delete membership", func(ctx context.Context) error {
		if _, err := r.Memberships.Delete(ctx, m.ActivityID, m.UserID); err != nil {
			return err
		}
		_, err := syncCounts(ctx, r, m.ActivityID, false)
		if errors.Is(err, domain.ErrActivityNotFound) {
			return nil
		}
		return err
	})

	a, err = syncCounts(ctx, r, a.ID, true)
	if err != nil {
		return nil, g.fail(ctx, err)
	}

	conv, err := r.Conversations.GetByActivity(ctx, a.ID)
	if err != nil {
		return nil, g.fail(ctx, fmt.Errorf("get conversation: %w", err))
	}
	if conv != nil {
		p := &domain.ConversationParticipant{ConversationID: conv.ID, UserID: jr.RequesterID, JoinedAt: now}
		if _, err := r.Conversations.AddParticipant(ctx, p); err != nil {
			return nil, g.fail(ctx, fmt.Errorf("add participant: %w", err))
		}
	}

	jr.Status, jr.RespondedAt = domain.JoinApproved, &now
	return &domain.ApproveResult{JoinRequest: jr, Membership: m, Activity: a}, nil
}

func (s *Compensating) RemoveMember(ctx context.Context, activityID, userID uuid.UUID) (*domain.RemoveResult, error) {
	r := s.gw.Privileged()

	a, err := r.Activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return nil, domain.ErrActivityNotFound
	}
	if a.IsHost(userID) {
		return nil, domain.ErrCannotRemoveHost
	}

	g := s.begin("remove_member")

	m, err := r.Memberships.Delete(ctx, activityID, userID)
	if err != nil {
		return nil, fmt.Errorf("delete membership: %w", err)
	}
	if m == nil {
		return nil, domain.ErrMembershipNotFound
	}
	g.done("restore membership", func(ctx context.Context) error {
		return r.Memberships.Insert(ctx, m)
	})

	conv, err := r.Conversations.GetByActivity(ctx, activityID)
	if err != nil {
		return nil, g.fail(ctx, fmt.Errorf("get conversation: %w", err))
	}
	if conv != nil {
		p, err := r.Conversations.RemoveParticipant(ctx, conv.ID, userID)
		if err != nil {
			return nil, g.fail(ctx, fmt.Errorf("remove participant: %w", err))
		}
		if p != nil {
			g.done("restore participant", func(ctx context.Context) error {
				_, err := r.Conversations.AddParticipant(ctx, p)
				return err
			})
		}
	}

	a, err = syncCounts(ctx, r, activityID, false)
	if err != nil {
		return nil, g.fail(ctx, err)
	}
	return &domain.RemoveResult{Activity: a, Removed: m}, nil
}

// countSyncAttempts bounds how often syncCounts retries after losing the
// compare-and-swap to a concurrent writer.
const countSyncAttempts = 16

// syncCounts recounts the activity's membership rows and writes the total
// and matching status, compare-and-swapping from a fresh read of the row.
// With admit set the caller has just inserted a membership and an
// over-capacity recount is ErrActivityFull. Without it an over-capacity
// recount belongs to an approval that will roll back and sync again, so
// nothing is written.
func syncCounts(ctx context.Context, r *repository.Repositories, activityID uuid.UUID, admit bool) (*domain.Activity, error) {
	for attempt := 0; attempt < countSyncAttempts; attempt++ {
		a, err := r.Activities.GetByID(ctx, activityID)
		if err != nil {
			return nil, fmt.Errorf("get activity: %w", err)
		}
		if a == nil {
			return nil, domain.ErrActivityNotFound
		}
		if admit && !a.Status.IsLive() {
			return nil, domain.ErrActivityEnded
		}

		count, err := r.Memberships.CountActive(ctx, activityID)
		if err != nil {
			return nil, fmt.Errorf("count members: %w", err)
		}
		if !capacity.ValidCount(count, a.MaxMembers) {
			if admit {
				return nil, domain.ErrActivityFull
			}
			return a, nil
		}

		status := capacity.StatusForCount(a, count)
		err = r.Activities.UpdateCounts(ctx, a.ID, a.MemberCount, a.Status, count, status)
		if errors.Is(err, domain.ErrStaleActivity) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update activity counts: %w", err)
		}
		a.MemberCount, a.Status = count, status
		return a, nil
	}
	return nil, domain.ErrStaleActivity
}

func (s *Compensating) UpdateActivity(ctx context.Context, activityID uuid.UUID, apply func(a *domain.Activity) error) (*domain.Activity, error) {
	r := s.gw.Privileged()

	a, err := r.Activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return nil, domain.ErrActivityNotFound
	}
	fromCount, fromStatus := a.MemberCount, a.Status
	if err := apply(a); err != nil {
		return nil, err
	}
	if err := r.Activities.UpdateDetails(ctx, a, fromCount, fromStatus); err != nil {
		return nil, fmt.Errorf("update activity: %w", err)
	}
	return a, nil
}

func (s *Compensating) DeleteActivity(ctx context.Context, activityID uuid.UUID, now time.Time) (*domain.DeleteResult, error) {
	r := s.gw.Privileged()

	a, err := r.Activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return nil, domain.ErrActivityNotFound
	}

	g := s.begin("delete_activity")

	members, err := r.Memberships.DeleteByActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("delete memberships: %w", err)
	}
	g.done("restore memberships", func(ctx context.Context) error {
		var errs []error
		for i := range members {
			errs = append(errs, r.Memberships.Insert(ctx, &members[i]))
		}
		return errors.Join(errs...)
	})

	rejected, err := r.JoinRequests.RejectPendingByActivity(ctx, activityID, now)
	if err != nil {
		return nil, g.fail(ctx, fmt.Errorf("reject pending requests: %w", err))
	}
	g.done("reopen join requests", func(ctx context.Context) error {
		var errs []error
		for _, jr := range rejected {
			_, err := r.JoinRequests.Transition(ctx, jr.ID, domain.JoinRejected, domain.JoinPending, nil)
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	conv, err := r.Conversations.GetByActivity(ctx, activityID)
	if err != nil {
		return nil, g.fail(ctx, fmt.Errorf("get conversation: %w", err))
	}
	if conv != nil {
		participants, err := r.Conversations.DeleteParticipants(ctx, conv.ID)
		if err != nil {
			return nil, g.fail(ctx, fmt.Errorf("delete participants: %w", err))
		}
		convDeleted := false
		g.done("restore conversation", func(ctx context.Context) error {
			if convDeleted {
				if err := r.Conversations.Restore(ctx, conv); err != nil {
					return err
				}
			}
			var errs []error
			for i := range participants {
				_, err := r.Conversations.AddParticipant(ctx, &participants[i])
				errs = append(errs, err)
			}
			return errors.Join(errs...)
		})

		if err := r.Conversations.Delete(ctx, conv.ID); err != nil {
			return nil, g.fail(ctx, fmt.Errorf("delete conversation: %w", err))
		}
		convDeleted = true
	}

	if err := r.Activities.UpdateCounts(ctx, a.ID, a.MemberCount, a.Status, 0, a.Status); err != nil {
		return nil, g.fail(ctx, fmt.Errorf("reset member count: %w", err))
	}
	g.done("restore member count", func(ctx context.Context) error {
		return r.Activities.UpdateCounts(ctx, a.ID, 0, a.Status, a.MemberCount, a.Status)
	})

	ok, err := r.Activities.SetStatus(ctx, activityID, deletableStatuses, domain.StatusDeleted)
	if err != nil {
		return nil, g.fail(ctx, fmt.Errorf("mark deleted: %w", err))
	}
	if !ok {
		return nil, g.fail(ctx, domain.ErrStaleActivity)
	}

	a.Status, a.MemberCount = domain.StatusDeleted, 0
	return &domain.DeleteResult{Activity: a, RemovedMembers: members}, nil
}
