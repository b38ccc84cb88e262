package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"activity-hub/internal/domain"
)

type AuditLogRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	ListByActivity(ctx context.Context, activityID uuid.UUID, params domain.PaginationParams) ([]domain.AuditLog, int64, error)
}

type auditLogRepository struct {
	db Querier
}

func NewAuditLogRepository(db Querier) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, actor_id, activity_id, action, subject_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	return r.db.QueryRowxContext(ctx, query,
		log.ID, log.ActorID, log.ActivityID, log.Action, log.SubjectID, log.Details,
	).Scan(&log.CreatedAt)
}

func (r *auditLogRepository) ListByActivity(ctx context.Context, activityID uuid.UUID, params domain.PaginationParams) ([]domain.AuditLog, int64, error) {
	params.Validate()

	var total int64
	countQuery := `SELECT COUNT(*) FROM audit_logs WHERE activity_id = $1`
	if err := sqlx.GetContext(ctx, r.db, &total, countQuery, activityID); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT * FROM audit_logs
		WHERE activity_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var logs []domain.AuditLog
	err := sqlx.SelectContext(ctx, r.db, &logs, query, activityID, params.PageSize, params.Offset())
	return logs, total, err
}

// CreateAuditLog builds an AuditLog from input and persists it.
func CreateAuditLog(ctx context.Context, repo AuditLogRepository, input domain.CreateAuditLogInput) error {
	details, err := json.Marshal(input.Details)
	if err != nil {
		return err
	}

	log := &domain.AuditLog{
		ID:         uuid.New(),
		ActivityID: input.ActivityID,
		Action:     input.Action,
		SubjectID:  input.SubjectID,
		Details:    details,
	}
	if !input.Actor.IsInternal() {
		actor := input.Actor.UserID
		log.ActorID = &actor
	}
	return repo.Create(ctx, log)
}
