package notification

import (
	"context"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/repository"
)

// Service is the caller-facing side of notifications. Every query runs as
// the caller so row-level security limits it to their own rows.
type Service interface {
	List(ctx context.Context, caller domain.Caller, unreadOnly bool, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error)
	GetUnreadCount(ctx context.Context, caller domain.Caller) (int64, error)
	MarkAsRead(ctx context.Context, caller domain.Caller, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, caller domain.Caller) (int64, error)
}

type service struct {
	gw repository.Gateway
}

func NewService(gw repository.Gateway) Service {
	return &service{gw: gw}
}

func (s *service) List(ctx context.Context, caller domain.Caller, unreadOnly bool, params domain.PaginationParams) (domain.PaginatedResponse[domain.Notification], error) {
	if caller.UserID == uuid.Nil {
		return domain.PaginatedResponse[domain.Notification]{}, domain.ErrUnauthenticated
	}
	params.Validate()

	var (
		notifications []domain.Notification
		total         int64
	)
	err := s.gw.AsCaller(ctx, caller.UserID, func(r *repository.Repositories) error {
		var err error
		notifications, total, err = r.Notifications.ListByUser(ctx, caller.UserID, unreadOnly, params)
		return err
	})
	if err != nil {
		return domain.PaginatedResponse[domain.Notification]{}, err
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}

	return domain.NewPaginatedResponse(notifications, params.Page, params.PageSize, total), nil
}

func (s *service) GetUnreadCount(ctx context.Context, caller domain.Caller) (int64, error) {
	if caller.UserID == uuid.Nil {
		return 0, domain.ErrUnauthenticated
	}
	var count int64
	err := s.gw.AsCaller(ctx, caller.UserID, func(r *repository.Repositories) error {
		var err error
		count, err = r.Notifications.CountUnread(ctx, caller.UserID)
		return err
	})
	return count, err
}

func (s *service) MarkAsRead(ctx context.Context, caller domain.Caller, id uuid.UUID) error {
	if caller.UserID == uuid.Nil {
		return domain.ErrUnauthenticated
	}
	return s.gw.AsCaller(ctx, caller.UserID, func(r *repository.Repositories) error {
		ok, err := r.Notifications.MarkAsRead(ctx, id, caller.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotificationNotFound
		}
		return nil
	})
}

func (s *service) MarkAllAsRead(ctx context.Context, caller domain.Caller) (int64, error) {
	if caller.UserID == uuid.Nil {
		return 0, domain.ErrUnauthenticated
	}
	var n int64
	err := s.gw.AsCaller(ctx, caller.UserID, func(r *repository.Repositories) error {
		var err error
		n, err = r.Notifications.MarkAllAsRead(ctx, caller.UserID)
		return err
	})
	return n, err
}
