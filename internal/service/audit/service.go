package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/repository"
)

type Service interface {
	Record(ctx context.Context, input domain.CreateAuditLogInput) error
	ListForActivity(ctx context.Context, caller domain.Caller, activityID uuid.UUID, params domain.PaginationParams) (domain.PaginatedResponse[domain.AuditLog], error)
}

type service struct {
	repo *repository.Repositories
}

func NewService(repo *repository.Repositories) Service {
	return &service{repo: repo}
}

func (s *service) Record(ctx context.Context, input domain.CreateAuditLogInput) error {
	return repository.CreateAuditLog(ctx, s.repo.AuditLogs, input)
}

// ListForActivity is restricted to the host and internal callers.
func (s *service) ListForActivity(ctx context.Context, caller domain.Caller, activityID uuid.UUID, params domain.PaginationParams) (domain.PaginatedResponse[domain.AuditLog], error) {
	a, err := s.repo.Activities.GetByID(ctx, activityID)
	if err != nil {
		return domain.PaginatedResponse[domain.AuditLog]{}, fmt.Errorf("load activity: %w", err)
	}
	if a == nil {
		return domain.PaginatedResponse[domain.AuditLog]{}, domain.ErrActivityNotFound
	}
	if !caller.IsInternal() && !a.IsHost(caller.UserID) {
		return domain.PaginatedResponse[domain.AuditLog]{}, domain.ErrNotHost
	}

	params.Validate()
	logs, total, err := s.repo.AuditLogs.ListByActivity(ctx, activityID, params)
	if err != nil {
		return domain.PaginatedResponse[domain.AuditLog]{}, fmt.Errorf("list audit logs: %w", err)
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}
	return domain.NewPaginatedResponse(logs, params.Page, params.PageSize, total), nil
}
