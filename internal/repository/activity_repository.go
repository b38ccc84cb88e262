package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"activity-hub/internal/domain"
)

type ActivityRepository interface {
	Create(ctx context.Context, a *domain.Activity) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Activity, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Activity, error)
	ListOpen(ctx context.Context, filter domain.ActivityFilter, now time.Time, params domain.PaginationParams) ([]domain.Activity, int64, error)
	// UpdateCounts writes member_count and status only if both still hold
	// the values the caller read. A lost race returns ErrStaleActivity.
	UpdateCounts(ctx context.Context, id uuid.UUID, fromCount int, fromStatus domain.ActivityStatus, toCount int, toStatus domain.ActivityStatus) error
	UpdateDetails(ctx context.Context, a *domain.Activity, fromCount int, fromStatus domain.ActivityStatus) error
	SetStatus(ctx context.Context, id uuid.UUID, from []domain.ActivityStatus, to domain.ActivityStatus) (bool, error)
	CompleteExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	CompleteIfExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// Delete removes the row outright. Only used to undo a failed creation.
	Delete(ctx context.Context, id uuid.UUID) error
}

type activityRepository struct {
	db Querier
}

func NewActivityRepository(db Querier) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, a *domain.Activity) error {
	if a.JoinQuestions == nil {
		a.JoinQuestions = pq.StringArray{}
	}
	query := `
		INSERT INTO activities (id, host_id, title, description, kind, status, starts_at,
			location_name, latitude, longitude, public_latitude, public_longitude,
			cost_rule, member_count, max_members, join_questions, cover_image_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at`

	return r.db.QueryRowxContext(ctx, query,
		a.ID, a.HostID, a.Title, a.Description, a.Kind, a.Status, a.StartsAt,
		a.LocationName, a.Latitude, a.Longitude, a.PublicLatitude, a.PublicLongitude,
		a.CostRule, a.MemberCount, a.MaxMembers, a.JoinQuestions, a.CoverImageKey,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *activityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	var a domain.Activity
	query := `SELECT * FROM activities WHERE id = $1 AND status <> 'deleted'`
	err := sqlx.GetContext(ctx, r.db, &a, query, id)
	return notFoundAsNil(&a, err)
}

func (r *activityRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	var a domain.Activity
	query := `SELECT * FROM activities WHERE id = $1 AND status <> 'deleted' FOR UPDATE`
	err := sqlx.GetContext(ctx, r.db, &a, query, id)
	return notFoundAsNil(&a, err)
}

func (r *activityRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Activity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	var activities []domain.Activity
	query := `SELECT * FROM activities WHERE id = ANY($1::uuid[]) AND status <> 'deleted'`
	err := sqlx.SelectContext(ctx, r.db, &activities, query, pq.Array(strIDs))
	return activities, err
}

func (r *activityRepository) ListOpen(ctx context.Context, filter domain.ActivityFilter, now time.Time, params domain.PaginationParams) ([]domain.Activity, int64, error) {
	params.Validate()

	where := `WHERE status IN ('open', 'full') AND starts_at > $1
		AND ($2::text IS NULL OR kind = $2)
		AND ($3::uuid IS NULL OR host_id = $3)
		AND ($4::text IS NULL OR title ILIKE '%' || $4 || '%' OR description ILIKE '%' || $4 || '%')`
	var kind, text *string
	if filter.Kind != nil {
		k := string(*filter.Kind)
		kind = &k
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		text = &q
	}
	args := []interface{}{now, kind, filter.HostID, text}

	var total int64
	if err := sqlx.GetContext(ctx, r.db, &total, `SELECT COUNT(*) FROM activities `+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT * FROM activities ` + where + `
		ORDER BY starts_at ASC
		LIMIT $5 OFFSET $6`

	var activities []domain.Activity
	err := sqlx.SelectContext(ctx, r.db, &activities, query, append(args, params.PageSize, params.Offset())...)
	return activities, total, err
}

func (r *activityRepository) UpdateCounts(ctx context.Context, id uuid.UUID, fromCount int, fromStatus domain.ActivityStatus, toCount int, toStatus domain.ActivityStatus) error {
	query := `
		UPDATE activities
		SET member_count = $4, status = $5, updated_at = NOW()
		WHERE id = $1 AND member_count = $2 AND status = $3`

	res, err := r.db.ExecContext(ctx, query, id, fromCount, fromStatus, toCount, toStatus)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *activityRepository) UpdateDetails(ctx context.Context, a *domain.Activity, fromCount int, fromStatus domain.ActivityStatus) error {
	query := `
		UPDATE activities
		SET title = $4, description = $5, starts_at = $6, location_name = $7,
			cost_rule = $8, max_members = $9, join_questions = $10, status = $11,
			updated_at = NOW()
		WHERE id = $1 AND member_count = $2 AND status = $3
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		a.ID, fromCount, fromStatus,
		a.Title, a.Description, a.StartsAt, a.LocationName,
		a.CostRule, a.MaxMembers, a.JoinQuestions, a.Status,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrStaleActivity
	}
	return err
}

func (r *activityRepository) SetStatus(ctx context.Context, id uuid.UUID, from []domain.ActivityStatus, to domain.ActivityStatus) (bool, error) {
	fromStr := make([]string, len(from))
	for i, s := range from {
		fromStr[i] = string(s)
	}

	query := `UPDATE activities SET status = $3, updated_at = NOW() WHERE id = $1 AND status = ANY($2)`
	res, err := r.db.ExecContext(ctx, query, id, pq.Array(fromStr), to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *activityRepository) CompleteExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE activities
		SET status = 'completed', updated_at = NOW()
		WHERE status IN ('open', 'full') AND starts_at < $1
		RETURNING id`

	var ids []uuid.UUID
	err := sqlx.SelectContext(ctx, r.db, &ids, query, now)
	return ids, err
}

func (r *activityRepository) CompleteIfExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `
		UPDATE activities
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND status IN ('open', 'full') AND starts_at < $2`

	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *activityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
	return err
}
