package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/repository"
)

// Service answers activity searches from Meilisearch when it is healthy and
// from the database otherwise. meili may be nil.
type Service struct {
	meili  *Meili
	repo   *repository.Repositories
	logger *slog.Logger
}

func NewService(m *Meili, repo *repository.Repositories, logger *slog.Logger) *Service {
	return &Service{meili: m, repo: repo, logger: logger.With("component", "search")}
}

// Search returns live upcoming activities matching text.
func (s *Service) Search(ctx context.Context, text string, filter domain.ActivityFilter, now time.Time, params domain.PaginationParams) ([]domain.Activity, int64, error) {
	params.Validate()

	if s.meili.Healthy() && text != "" {
		ids, total, err := s.meili.Search(text, filter, now, params.PageSize, params.Offset())
		if err == nil {
			activities, err := s.loadInOrder(ctx, ids)
			if err != nil {
				return nil, 0, err
			}
			return activities, total, nil
		}
		s.logger.Warn("meilisearch error, falling back to database", "error", err)
	}

	filter.Query = text
	activities, total, err := s.repo.Activities.ListOpen(ctx, filter, now, params)
	if err != nil {
		return nil, 0, fmt.Errorf("search activities: %w", err)
	}
	return activities, total, nil
}

// loadInOrder fetches ids from the database and keeps the ranking order.
// Rows that are gone or no longer live are dropped.
func (s *Service) loadInOrder(ctx context.Context, ids []uuid.UUID) ([]domain.Activity, error) {
	if len(ids) == 0 {
		return []domain.Activity{}, nil
	}
	rows, err := s.repo.Activities.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load search hits: %w", err)
	}
	byID := make(map[uuid.UUID]domain.Activity, len(rows))
	for _, a := range rows {
		byID[a.ID] = a
	}
	out := make([]domain.Activity, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok && a.Status.IsLive() {
			out = append(out, a)
		}
	}
	return out, nil
}

// Sync brings the index entry for activityID in line with the database. Gone
// or finished activities are removed from the index.
func (s *Service) Sync(ctx context.Context, activityID uuid.UUID) error {
	if s.meili == nil {
		return nil
	}
	a, err := s.repo.Activities.GetByID(ctx, activityID)
	if err != nil {
		return fmt.Errorf("load activity: %w", err)
	}
	if a == nil || !a.Status.IsLive() {
		return s.meili.DeleteActivity(activityID)
	}
	tags, err := s.repo.Tags.ListByActivity(ctx, activityID)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	return s.meili.IndexActivity(NewDocument(a, tags))
}

func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}
