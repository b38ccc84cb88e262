package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"activity-hub/internal/domain"
)

type JoinRequestRepository interface {
	Create(ctx context.Context, jr *domain.JoinRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.JoinRequest, error)
	GetPending(ctx context.Context, activityID, requesterID uuid.UUID) (*domain.JoinRequest, error)
	ListByActivity(ctx context.Context, activityID uuid.UUID, status *domain.JoinRequestStatus, params domain.PaginationParams) ([]domain.JoinRequest, int64, error)
	// Transition moves a request from one status to another and reports
	// whether the row was still in the expected status.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.JoinRequestStatus, respondedAt *time.Time) (bool, error)
	RejectPendingByActivity(ctx context.Context, activityID uuid.UUID, at time.Time) ([]domain.JoinRequest, error)
	SaveAnswers(ctx context.Context, answers []domain.JoinAnswer) error
	ListAnswers(ctx context.Context, joinRequestID uuid.UUID) ([]domain.JoinAnswer, error)
}

type joinRequestRepository struct {
	db Querier
}

func NewJoinRequestRepository(db Querier) JoinRequestRepository {
	return &joinRequestRepository{db: db}
}

func (r *joinRequestRepository) Create(ctx context.Context, jr *domain.JoinRequest) error {
	query := `
		INSERT INTO join_requests (id, activity_id, requester_id, status, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		jr.ID, jr.ActivityID, jr.RequesterID, jr.Status, jr.Message,
	).Scan(&jr.CreatedAt)
	if isUniqueViolation(err, "join_requests_one_pending_idx") {
		return domain.ErrDuplicatePending
	}
	return err
}

func (r *joinRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.JoinRequest, error) {
	var jr domain.JoinRequest
	query := `SELECT * FROM join_requests WHERE id = $1`
	err := sqlx.GetContext(ctx, r.db, &jr, query, id)
	return notFoundAsNil(&jr, err)
}

func (r *joinRequestRepository) GetPending(ctx context.Context, activityID, requesterID uuid.UUID) (*domain.JoinRequest, error) {
	var jr domain.JoinRequest
	query := `SELECT * FROM join_requests WHERE activity_id = $1 AND requester_id = $2 AND status = 'pending'`
	err := sqlx.GetContext(ctx, r.db, &jr, query, activityID, requesterID)
	return notFoundAsNil(&jr, err)
}

func (r *joinRequestRepository) ListByActivity(ctx context.Context, activityID uuid.UUID, status *domain.JoinRequestStatus, params domain.PaginationParams) ([]domain.JoinRequest, int64, error) {
	params.Validate()

	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM join_requests WHERE activity_id = $1 AND ($2::text IS NULL OR status = $2)`
	if err := sqlx.GetContext(ctx, r.db, &total, countQuery, activityID, statusArg); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT * FROM join_requests
		WHERE activity_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	var requests []domain.JoinRequest
	err := sqlx.SelectContext(ctx, r.db, &requests, query, activityID, statusArg, params.PageSize, params.Offset())
	return requests, total, err
}

func (r *joinRequestRepository) Transition(ctx context.Context, id uuid.UUID, from, to domain.JoinRequestStatus, respondedAt *time.Time) (bool, error) {
	query := `UPDATE join_requests SET status = $3, responded_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, respondedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *joinRequestRepository) RejectPendingByActivity(ctx context.Context, activityID uuid.UUID, at time.Time) ([]domain.JoinRequest, error) {
	query := `
		UPDATE join_requests SET status = 'rejected', responded_at = $2
		WHERE activity_id = $1 AND status = 'pending'
		RETURNING *`

	var requests []domain.JoinRequest
	err := sqlx.SelectContext(ctx, r.db, &requests, query, activityID, at)
	return requests, err
}

func (r *joinRequestRepository) SaveAnswers(ctx context.Context, answers []domain.JoinAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	query := `
		INSERT INTO join_request_answers (join_request_id, position, question, answer)
		VALUES (:join_request_id, :position, :question, :answer)`
	_, err := sqlx.NamedExecContext(ctx, r.db, query, answers)
	return err
}

func (r *joinRequestRepository) ListAnswers(ctx context.Context, joinRequestID uuid.UUID) ([]domain.JoinAnswer, error) {
	var answers []domain.JoinAnswer
	query := `SELECT * FROM join_request_answers WHERE join_request_id = $1 ORDER BY position ASC`
	err := sqlx.SelectContext(ctx, r.db, &answers, query, joinRequestID)
	return answers, err
}
