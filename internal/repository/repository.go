package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"activity-hub/internal/domain"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx so every repository can
// run inside or outside a transaction.
type Querier interface {
	sqlx.ExtContext
}

type Repositories struct {
	Activities    ActivityRepository
	Memberships   MembershipRepository
	JoinRequests  JoinRequestRepository
	Conversations ConversationRepository
	Tags          TagRepository
	Notifications NotificationRepository
	Users         UserRepository
	AuditLogs     AuditLogRepository
}

func NewRepositories(q Querier) *Repositories {
	return &Repositories{
		Activities:    NewActivityRepository(q),
		Memberships:   NewMembershipRepository(q),
		JoinRequests:  NewJoinRequestRepository(q),
		Conversations: NewConversationRepository(q),
		Tags:          NewTagRepository(q),
		Notifications: NewNotificationRepository(q),
		Users:         NewUserRepository(q),
		AuditLogs:     NewAuditLogRepository(q),
	}
}

// Gateway hands out repositories at one of two trust levels. Privileged and
// WithinTx run as the service role; AsCaller binds the session to a user so
// row-level security policies apply.
type Gateway interface {
	Privileged() *Repositories
	WithinTx(ctx context.Context, fn func(r *Repositories) error) error
	AsCaller(ctx context.Context, userID uuid.UUID, fn func(r *Repositories) error) error
}

type sqlGateway struct {
	db   *sqlx.DB
	repo *Repositories
}

func NewGateway(db *sqlx.DB) Gateway {
	return &sqlGateway{db: db, repo: NewRepositories(db)}
}

func (g *sqlGateway) Privileged() *Repositories {
	return g.repo
}

func (g *sqlGateway) WithinTx(ctx context.Context, fn func(r *Repositories) error) error {
	return g.inTx(ctx, nil, fn)
}

func (g *sqlGateway) AsCaller(ctx context.Context, userID uuid.UUID, fn func(r *Repositories) error) error {
	return g.inTx(ctx, &userID, fn)
}

func (g *sqlGateway) inTx(ctx context.Context, caller *uuid.UUID, fn func(r *Repositories) error) (err error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if caller != nil {
		if _, err = tx.ExecContext(ctx, `SELECT set_config('app.current_user_id', $1, true)`, caller.String()); err != nil {
			return fmt.Errorf("bind caller: %w", err)
		}
	}

	if err = fn(NewRepositories(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const codeUniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeUniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

func notFoundAsNil[T any](v *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrStaleActivity
	}
	return nil
}
