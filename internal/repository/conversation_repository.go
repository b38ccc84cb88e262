package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"activity-hub/internal/domain"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *domain.Conversation) error
	// Restore re-inserts a previously deleted conversation with its original
	// timestamps.
	Restore(ctx context.Context, c *domain.Conversation) error
	GetByActivity(ctx context.Context, activityID uuid.UUID) (*domain.Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// AddParticipant is idempotent and reports whether a row was inserted.
	AddParticipant(ctx context.Context, p *domain.ConversationParticipant) (bool, error)
	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationParticipant, error)
	RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationParticipant, error)
	ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationParticipant, error)
	DeleteParticipants(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationParticipant, error)
	MarkSeen(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (bool, error)
}

type conversationRepository struct {
	db Querier
}

func NewConversationRepository(db Querier) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, activity_id)
		VALUES ($1, $2)
		RETURNING created_at`

	return r.db.QueryRowxContext(ctx, query, c.ID, c.ActivityID).Scan(&c.CreatedAt)
}

func (r *conversationRepository) Restore(ctx context.Context, c *domain.Conversation) error {
	query := `INSERT INTO conversations (id, activity_id, created_at) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.ActivityID, c.CreatedAt)
	return err
}

func (r *conversationRepository) GetByActivity(ctx context.Context, activityID uuid.UUID) (*domain.Conversation, error) {
	var c domain.Conversation
	query := `SELECT * FROM conversations WHERE activity_id = $1`
	err := sqlx.GetContext(ctx, r.db, &c, query, activityID)
	return notFoundAsNil(&c, err)
}

func (r *conversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	return err
}

func (r *conversationRepository) AddParticipant(ctx context.Context, p *domain.ConversationParticipant) (bool, error) {
	query := `
		INSERT INTO conversation_participants (conversation_id, user_id, joined_at, last_seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conversation_id, user_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, p.ConversationID, p.UserID, p.JoinedAt, p.LastSeenAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *conversationRepository) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationParticipant, error) {
	var p domain.ConversationParticipant
	query := `SELECT * FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`
	err := sqlx.GetContext(ctx, r.db, &p, query, conversationID, userID)
	return notFoundAsNil(&p, err)
}

func (r *conversationRepository) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationParticipant, error) {
	var p domain.ConversationParticipant
	query := `DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2 RETURNING *`
	err := sqlx.GetContext(ctx, r.db, &p, query, conversationID, userID)
	return notFoundAsNil(&p, err)
}

func (r *conversationRepository) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationParticipant, error) {
	var participants []domain.ConversationParticipant
	query := `SELECT * FROM conversation_participants WHERE conversation_id = $1 ORDER BY joined_at ASC`
	err := sqlx.SelectContext(ctx, r.db, &participants, query, conversationID)
	return participants, err
}

func (r *conversationRepository) DeleteParticipants(ctx context.Context, conversationID uuid.UUID) ([]domain.ConversationParticipant, error) {
	var participants []domain.ConversationParticipant
	query := `DELETE FROM conversation_participants WHERE conversation_id = $1 RETURNING *`
	err := sqlx.SelectContext(ctx, r.db, &participants, query, conversationID)
	return participants, err
}

func (r *conversationRepository) MarkSeen(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE conversation_participants SET last_seen_at = $3 WHERE conversation_id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, conversationID, userID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
