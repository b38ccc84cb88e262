package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"activity-hub/internal/domain"
)

type TagRepository interface {
	GetBySlugs(ctx context.Context, slugs []string) ([]domain.Tag, error)
	LinkActivity(ctx context.Context, activityID uuid.UUID, tagIDs []uuid.UUID) error
	UnlinkActivity(ctx context.Context, activityID uuid.UUID) error
	ListByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Tag, error)
}

type tagRepository struct {
	db Querier
}

func NewTagRepository(db Querier) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) GetBySlugs(ctx context.Context, slugs []string) ([]domain.Tag, error) {
	var tags []domain.Tag
	query := `SELECT * FROM tags WHERE slug = ANY($1) ORDER BY name ASC`
	err := sqlx.SelectContext(ctx, r.db, &tags, query, pq.Array(slugs))
	return tags, err
}

func (r *tagRepository) LinkActivity(ctx context.Context, activityID uuid.UUID, tagIDs []uuid.UUID) error {
	links := make([]domain.ActivityTag, len(tagIDs))
	for i, id := range tagIDs {
		links[i] = domain.ActivityTag{ActivityID: activityID, TagID: id}
	}
	if len(links) == 0 {
		return nil
	}

	query := `INSERT INTO activity_tags (activity_id, tag_id) VALUES (:activity_id, :tag_id) ON CONFLICT DO NOTHING`
	_, err := sqlx.NamedExecContext(ctx, r.db, query, links)
	return err
}

func (r *tagRepository) UnlinkActivity(ctx context.Context, activityID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM activity_tags WHERE activity_id = $1`, activityID)
	return err
}

func (r *tagRepository) ListByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Tag, error) {
	var tags []domain.Tag
	query := `
		SELECT t.* FROM tags t
		JOIN activity_tags at ON at.tag_id = t.id
		WHERE at.activity_id = $1
		ORDER BY t.name ASC`
	err := sqlx.SelectContext(ctx, r.db, &tags, query, activityID)
	return tags, err
}
