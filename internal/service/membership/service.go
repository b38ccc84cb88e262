package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/metrics"
	"activity-hub/internal/repository"
	"activity-hub/internal/service/notification"
	"activity-hub/internal/store"
)

type Service interface {
	// RemoveMember removes the target from the activity. The host may remove
	// anyone but themselves; any other member may only remove themselves.
	RemoveMember(ctx context.Context, caller domain.Caller, cmd domain.RemoveMemberCommand) (*domain.RemoveResult, error)
	Leave(ctx context.Context, caller domain.Caller, activityID uuid.UUID) (*domain.RemoveResult, error)
	ListMembers(ctx context.Context, caller domain.Caller, activityID uuid.UUID) (*domain.MemberList, error)
	MarkSeen(ctx context.Context, caller domain.Caller, activityID uuid.UUID) error
	// NotifyChat fans a chat_activity notification out to every participant
	// except the sender and returns how many were targeted.
	NotifyChat(ctx context.Context, caller domain.Caller, activityID uuid.UUID) (int, error)
}

type service struct {
	store     store.MembershipStore
	gw        repository.Gateway
	publisher notification.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	st store.MembershipStore,
	gw repository.Gateway,
	publisher notification.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) Service {
	return &service{
		store:     st,
		gw:        gw,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With("component", "membership"),
		now:       time.Now,
	}
}

func (s *service) RemoveMember(ctx context.Context, caller domain.Caller, cmd domain.RemoveMemberCommand) (result *domain.RemoveResult, err error) {
	defer func() { s.metrics.ObserveOperation("remove_member", err) }()

	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	a, err := s.gw.Privileged().Activities.GetByID(ctx, cmd.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return nil, domain.ErrActivityNotFound
	}
	if a.IsHost(cmd.TargetUserID) {
		return nil, domain.ErrCannotRemoveHost
	}
	selfLeave := caller.Is(cmd.TargetUserID)
	if !caller.IsInternal() && !selfLeave && !a.IsHost(caller.UserID) {
		return nil, domain.ErrCannotRemoveMember
	}

	result, err = s.store.RemoveMember(ctx, a.ID, cmd.TargetUserID)
	if err != nil {
		return nil, err
	}
	result.SelfLeave = selfLeave

	outbox := notification.NewOutbox()
	if selfLeave {
		outbox.Notify(notification.Intent{
			Type:          domain.NotifMemberLeft,
			Recipients:    []uuid.UUID{a.HostID},
			ActorID:       &cmd.TargetUserID,
			ActivityID:    a.ID,
			ActivityTitle: a.Title,
		})
		outbox.Audit(domain.CreateAuditLogInput{
			Actor:      caller,
			ActivityID: a.ID,
			Action:     domain.AuditMemberLeft,
			SubjectID:  &cmd.TargetUserID,
		})
	} else {
		var actor *uuid.UUID
		if !caller.IsInternal() {
			actor = &caller.UserID
		}
		outbox.Notify(notification.Intent{
			Type:          domain.NotifMemberRemoved,
			Recipients:    []uuid.UUID{cmd.TargetUserID},
			ActorID:       actor,
			ActivityID:    a.ID,
			ActivityTitle: a.Title,
		})
		outbox.Audit(domain.CreateAuditLogInput{
			Actor:      caller,
			ActivityID: a.ID,
			Action:     domain.AuditMemberRemoved,
			SubjectID:  &cmd.TargetUserID,
		})
	}
	outbox.Reindex(a.ID)
	s.publisher.Publish(outbox)

	return result, nil
}

func (s *service) Leave(ctx context.Context, caller domain.Caller, activityID uuid.UUID) (*domain.RemoveResult, error) {
	if caller.UserID == uuid.Nil {
		return nil, domain.ErrUnauthenticated
	}
	return s.RemoveMember(ctx, caller, domain.RemoveMemberCommand{ActivityID: activityID, TargetUserID: caller.UserID})
}

func (s *service) ListMembers(ctx context.Context, caller domain.Caller, activityID uuid.UUID) (*domain.MemberList, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	r := s.gw.Privileged()
	a, err := r.Activities.GetByID(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return nil, domain.ErrActivityNotFound
	}

	members, err := r.Memberships.ListByActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if members == nil {
		members = []domain.Membership{}
	}

	if !caller.IsInternal() && !a.IsHost(caller.UserID) && !contains(members, caller.UserID) {
		return nil, domain.ErrNotParticipant
	}
	return &domain.MemberList{HostID: a.HostID, Members: members}, nil
}

func (s *service) MarkSeen(ctx context.Context, caller domain.Caller, activityID uuid.UUID) error {
	if caller.UserID == uuid.Nil {
		return domain.ErrUnauthenticated
	}
	conv, err := s.gw.Privileged().Conversations.GetByActivity(ctx, activityID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return domain.ErrActivityNotFound
	}

	return s.gw.AsCaller(ctx, caller.UserID, func(r *repository.Repositories) error {
		ok, err := r.Conversations.MarkSeen(ctx, conv.ID, caller.UserID, s.now())
		if err != nil {
			return fmt.Errorf("mark seen: %w", err)
		}
		if !ok {
			return domain.ErrNotParticipant
		}
		return nil
	})
}

func (s *service) NotifyChat(ctx context.Context, caller domain.Caller, activityID uuid.UUID) (int, error) {
	if !caller.Authenticated() {
		return 0, domain.ErrUnauthenticated
	}
	r := s.gw.Privileged()
	a, err := r.Activities.GetByID(ctx, activityID)
	if err != nil {
		return 0, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return 0, domain.ErrActivityNotFound
	}
	conv, err := r.Conversations.GetByActivity(ctx, activityID)
	if err != nil {
		return 0, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return 0, domain.ErrActivityNotFound
	}
	participants, err := r.Conversations.ListParticipants(ctx, conv.ID)
	if err != nil {
		return 0, fmt.Errorf("list participants: %w", err)
	}

	var (
		recipients []uuid.UUID
		isSender   bool
	)
	for _, p := range participants {
		if caller.Is(p.UserID) {
			isSender = true
			continue
		}
		recipients = append(recipients, p.UserID)
	}
	if !caller.IsInternal() && !isSender {
		return 0, domain.ErrNotParticipant
	}

	var actor *uuid.UUID
	if !caller.IsInternal() {
		actor = &caller.UserID
	}
	outbox := notification.NewOutbox()
	outbox.Notify(notification.Intent{
		Type:          domain.NotifChatActivity,
		Recipients:    recipients,
		ActorID:       actor,
		ActivityID:    a.ID,
		ActivityTitle: a.Title,
		DedupeKey:     "chat:" + a.ID.String(),
	})
	s.publisher.Publish(outbox)

	return len(recipients), nil
}

func contains(members []domain.Membership, userID uuid.UUID) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
