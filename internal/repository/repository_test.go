package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	pending := &pq.Error{Code: "23505", Constraint: "join_requests_one_pending_idx"}

	assert.True(t, isUniqueViolation(pending, "join_requests_one_pending_idx"))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", pending), ""))
	assert.False(t, isUniqueViolation(pending, "memberships_activity_user_key"))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, isUniqueViolation(errors.New("boom"), ""))
	assert.False(t, isUniqueViolation(nil, ""))
}

func TestNotFoundAsNil(t *testing.T) {
	v := 1

	got, err := notFoundAsNil(&v, sql.ErrNoRows)
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = notFoundAsNil(&v, nil)
	assert.NoError(t, err)
	assert.Equal(t, &v, got)

	boom := errors.New("boom")
	got, err = notFoundAsNil(&v, boom)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}
