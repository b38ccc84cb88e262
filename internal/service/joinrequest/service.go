package joinrequest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/metrics"
	"activity-hub/internal/repository"
	"activity-hub/internal/service/notification"
	"activity-hub/internal/store"
)

const (
	maxMessageLength = 500
	maxAnswerLength  = 500
)

type Service interface {
	RequestJoin(ctx context.Context, caller domain.Caller, cmd domain.RequestJoinCommand) (*domain.RequestJoinResult, error)
	Approve(ctx context.Context, caller domain.Caller, cmd domain.ResolveJoinCommand) (*domain.ApproveResult, error)
	Reject(ctx context.Context, caller domain.Caller, cmd domain.ResolveJoinCommand) (*domain.JoinRequest, error)
	ListForActivity(ctx context.Context, caller domain.Caller, activityID uuid.UUID, status *domain.JoinRequestStatus, params domain.PaginationParams) (domain.PaginatedResponse[domain.JoinRequest], error)
}

type service struct {
	store     store.MembershipStore
	repo      *repository.Repositories
	publisher notification.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	st store.MembershipStore,
	repo *repository.Repositories,
	publisher notification.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) Service {
	return &service{
		store:     st,
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With("component", "joinrequest"),
		now:       time.Now,
	}
}

func (s *service) RequestJoin(ctx context.Context, caller domain.Caller, cmd domain.RequestJoinCommand) (result *domain.RequestJoinResult, err error) {
	defer func() { s.metrics.ObserveOperation("request_join", err) }()

	if caller.UserID == uuid.Nil {
		return nil, domain.ErrUnauthenticated
	}
	message, err := normalizeMessage(cmd.Message)
	if err != nil {
		return nil, err
	}

	a, err := s.repo.Activities.GetByID(ctx, cmd.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return nil, domain.ErrActivityNotFound
	}
	if a.IsHost(caller.UserID) {
		return nil, domain.ErrHostCannotJoin
	}
	answers, err := pairAnswers(a.JoinQuestions, cmd.Answers)
	if err != nil {
		return nil, err
	}

	now := s.now()
	jr := &domain.JoinRequest{
		ID:          uuid.New(),
		ActivityID:  a.ID,
		RequesterID: caller.UserID,
		Message:     message,
	}
	existing, duplicate, err := s.store.SubmitJoinRequest(ctx, jr, now)
	if err != nil {
		s.completeIfEnded(ctx, a.ID, now, err)
		return nil, err
	}
	if duplicate {
		return &domain.RequestJoinResult{JoinRequest: existing, DuplicatePending: true}, nil
	}

	if len(answers) > 0 {
		for i := range answers {
			answers[i].JoinRequestID = jr.ID
		}
		if err := s.repo.JoinRequests.SaveAnswers(ctx, answers); err != nil {
			s.logger.Warn("failed to save join answers",
				"join_request_id", jr.ID, "activity_id", a.ID, "error", err)
		} else {
			jr.Answers = answers
		}
	}

	outbox := notification.NewOutbox()
	outbox.Notify(notification.Intent{
		Type:          domain.NotifJoinRequested,
		Recipients:    []uuid.UUID{a.HostID},
		ActorID:       &caller.UserID,
		ActivityID:    a.ID,
		ActivityTitle: a.Title,
		Data:          map[string]string{"join_request_id": jr.ID.String()},
	})
	s.publisher.Publish(outbox)

	return &domain.RequestJoinResult{JoinRequest: jr}, nil
}

func (s *service) Approve(ctx context.Context, caller domain.Caller, cmd domain.ResolveJoinCommand) (result *domain.ApproveResult, err error) {
	defer func() { s.metrics.ObserveOperation("approve_join", err) }()

	jr, a, err := s.resolve(ctx, caller, cmd)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result, err = s.store.ApproveJoin(ctx, jr.ID, now)
	if err != nil {
		s.completeIfEnded(ctx, a.ID, now, err)
		return nil, noPendingIfResolved(err)
	}

	outbox := notification.NewOutbox()
	outbox.Notify(notification.Intent{
		Type:          domain.NotifJoinApproved,
		Recipients:    []uuid.UUID{jr.RequesterID},
		ActorID:       actorOf(caller),
		ActivityID:    a.ID,
		ActivityTitle: a.Title,
		Email:         true,
		Data:          map[string]string{"join_request_id": jr.ID.String()},
	})
	outbox.Audit(domain.CreateAuditLogInput{
		Actor:      caller,
		ActivityID: a.ID,
		Action:     domain.AuditJoinApproved,
		SubjectID:  &jr.RequesterID,
		Details:    map[string]interface{}{"join_request_id": jr.ID, "member_count": result.Activity.MemberCount},
	})
	outbox.Reindex(a.ID)
	s.publisher.Publish(outbox)

	return result, nil
}

func (s *service) Reject(ctx context.Context, caller domain.Caller, cmd domain.ResolveJoinCommand) (result *domain.JoinRequest, err error) {
	defer func() { s.metrics.ObserveOperation("reject_join", err) }()

	jr, a, err := s.resolve(ctx, caller, cmd)
	if err != nil {
		return nil, err
	}

	result, err = s.store.RejectJoin(ctx, jr.ID, s.now())
	if err != nil {
		return nil, noPendingIfResolved(err)
	}

	outbox := notification.NewOutbox()
	outbox.Notify(notification.Intent{
		Type:          domain.NotifJoinRejected,
		Recipients:    []uuid.UUID{jr.RequesterID},
		ActorID:       actorOf(caller),
		ActivityID:    a.ID,
		ActivityTitle: a.Title,
		Data:          map[string]string{"join_request_id": jr.ID.String()},
	})
	outbox.Audit(domain.CreateAuditLogInput{
		Actor:      caller,
		ActivityID: a.ID,
		Action:     domain.AuditJoinRejected,
		SubjectID:  &jr.RequesterID,
		Details:    map[string]interface{}{"join_request_id": jr.ID},
	})
	s.publisher.Publish(outbox)

	return result, nil
}

func (s *service) ListForActivity(ctx context.Context, caller domain.Caller, activityID uuid.UUID, status *domain.JoinRequestStatus, params domain.PaginationParams) (domain.PaginatedResponse[domain.JoinRequest], error) {
	if status != nil && !status.IsValid() {
		return domain.PaginatedResponse[domain.JoinRequest]{}, domain.BadRequest("invalid status")
	}
	a, err := s.repo.Activities.GetByID(ctx, activityID)
	if err != nil {
		return domain.PaginatedResponse[domain.JoinRequest]{}, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return domain.PaginatedResponse[domain.JoinRequest]{}, domain.ErrActivityNotFound
	}
	if !caller.IsInternal() && !a.IsHost(caller.UserID) {
		return domain.PaginatedResponse[domain.JoinRequest]{}, domain.ErrNotHost
	}

	params.Validate()
	requests, total, err := s.repo.JoinRequests.ListByActivity(ctx, activityID, status, params)
	if err != nil {
		return domain.PaginatedResponse[domain.JoinRequest]{}, fmt.Errorf("list join requests: %w", err)
	}
	if requests == nil {
		requests = []domain.JoinRequest{}
	}

	for i := range requests {
		if answers, err := s.repo.JoinRequests.ListAnswers(ctx, requests[i].ID); err == nil {
			requests[i].Answers = answers
		}
	}

	return domain.NewPaginatedResponse(requests, params.Page, params.PageSize, total), nil
}

// resolve finds the pending request cmd points at and checks that the caller
// may act on it.
func (s *service) resolve(ctx context.Context, caller domain.Caller, cmd domain.ResolveJoinCommand) (*domain.JoinRequest, *domain.Activity, error) {
	if !caller.Authenticated() {
		return nil, nil, domain.ErrUnauthenticated
	}
	if !cmd.IsValid() {
		return nil, nil, domain.BadRequest("join_request_id or activity_id and requester_id are required")
	}

	var (
		jr  *domain.JoinRequest
		err error
	)
	if cmd.JoinRequestID != nil {
		jr, err = s.repo.JoinRequests.GetByID(ctx, *cmd.JoinRequestID)
	} else {
		jr, err = s.repo.JoinRequests.GetPending(ctx, *cmd.ActivityID, *cmd.RequesterID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get join request: %w", err)
	}
	if jr == nil || jr.Status != domain.JoinPending {
		return nil, nil, domain.ErrJoinRequestNotFound
	}

	a, err := s.repo.Activities.GetByID(ctx, jr.ActivityID)
	if err != nil {
		return nil, nil, fmt.Errorf("get activity: %w", err)
	}
	if a == nil {
		return nil, nil, domain.ErrActivityNotFound
	}
	if !caller.IsInternal() && !a.IsHost(caller.UserID) {
		return nil, nil, domain.ErrNotHost
	}
	return jr, a, nil
}

// completeIfEnded flips an expired activity to completed after a join was
// refused for that reason. The refusal stands even if the flip fails.
func (s *service) completeIfEnded(ctx context.Context, activityID uuid.UUID, now time.Time, cause error) {
	if !errors.Is(cause, domain.ErrActivityEnded) {
		return
	}
	ok, err := s.store.CompleteIfExpired(context.WithoutCancel(ctx), activityID, now)
	if err != nil {
		s.logger.Error("lazy completion failed", "activity_id", activityID, "error", err)
		return
	}
	if ok {
		s.metrics.AutoCompleted(1)
		s.logger.Info("activity completed on join attempt", "activity_id", activityID)
		outbox := notification.NewOutbox()
		outbox.Reindex(activityID)
		s.publisher.Publish(outbox)
	}
}

func noPendingIfResolved(err error) error {
	if errors.Is(err, domain.ErrJoinRequestResolved) {
		return domain.ErrJoinRequestNotFound
	}
	return err
}

func actorOf(caller domain.Caller) *uuid.UUID {
	if caller.IsInternal() {
		return nil
	}
	id := caller.UserID
	return &id
}

func normalizeMessage(message *string) (*string, error) {
	if message == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*message)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxMessageLength {
		return nil, domain.BadRequest(fmt.Sprintf("message must be at most %d characters", maxMessageLength))
	}
	return &trimmed, nil
}

// pairAnswers matches answers to the activity's questions by position. Blank
// answers are skipped.
func pairAnswers(questions []string, answers []string) ([]domain.JoinAnswer, error) {
	if len(answers) > len(questions) {
		return nil, domain.BadRequest("more answers than join questions")
	}
	var out []domain.JoinAnswer
	for i, answer := range answers {
		answer = strings.TrimSpace(answer)
		if answer == "" {
			continue
		}
		if utf8.RuneCountInString(answer) > maxAnswerLength {
			return nil, domain.BadRequest(fmt.Sprintf("answer %d must be at most %d characters", i+1, maxAnswerLength))
		}
		out = append(out, domain.JoinAnswer{Position: i, Question: questions[i], Answer: answer})
	}
	return out, nil
}
