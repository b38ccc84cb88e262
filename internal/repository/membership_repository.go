package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"activity-hub/internal/domain"
)

type MembershipRepository interface {
	// Insert writes m with all fields as given so a deleted row can be
	// restored byte-for-byte.
	Insert(ctx context.Context, m *domain.Membership) error
	Get(ctx context.Context, activityID, userID uuid.UUID) (*domain.Membership, error)
	Delete(ctx context.Context, activityID, userID uuid.UUID) (*domain.Membership, error)
	CountActive(ctx context.Context, activityID uuid.UUID) (int, error)
	ListByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Membership, error)
	DeleteByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Membership, error)
}

type membershipRepository struct {
	db Querier
}

func NewMembershipRepository(db Querier) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Insert(ctx context.Context, m *domain.Membership) error {
	query := `
		INSERT INTO memberships (id, activity_id, user_id, status, joined_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, m.ID, m.ActivityID, m.UserID, m.Status, m.JoinedAt)
	if isUniqueViolation(err, "memberships_activity_user_key") {
		return domain.ErrAlreadyMember
	}
	return err
}

func (r *membershipRepository) Get(ctx context.Context, activityID, userID uuid.UUID) (*domain.Membership, error) {
	var m domain.Membership
	query := `SELECT * FROM memberships WHERE activity_id = $1 AND user_id = $2`
	err := sqlx.GetContext(ctx, r.db, &m, query, activityID, userID)
	return notFoundAsNil(&m, err)
}

func (r *membershipRepository) Delete(ctx context.Context, activityID, userID uuid.UUID) (*domain.Membership, error) {
	var m domain.Membership
	query := `DELETE FROM memberships WHERE activity_id = $1 AND user_id = $2 RETURNING *`
	err := sqlx.GetContext(ctx, r.db, &m, query, activityID, userID)
	return notFoundAsNil(&m, err)
}

func (r *membershipRepository) CountActive(ctx context.Context, activityID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM memberships WHERE activity_id = $1 AND status = 'active'`
	err := sqlx.GetContext(ctx, r.db, &count, query, activityID)
	return count, err
}

func (r *membershipRepository) ListByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Membership, error) {
	var members []domain.Membership
	query := `SELECT * FROM memberships WHERE activity_id = $1 ORDER BY joined_at ASC`
	err := sqlx.SelectContext(ctx, r.db, &members, query, activityID)
	return members, err
}

func (r *membershipRepository) DeleteByActivity(ctx context.Context, activityID uuid.UUID) ([]domain.Membership, error) {
	var members []domain.Membership
	query := `DELETE FROM memberships WHERE activity_id = $1 RETURNING *`
	err := sqlx.SelectContext(ctx, r.db, &members, query, activityID)
	return members, err
}
