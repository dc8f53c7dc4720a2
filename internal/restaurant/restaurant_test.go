package restaurant_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/foodhub/internal/restaurant"
)

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type stubQuerier struct {
	row     pgx.Row
	lastSQL string
	args    []any
}

func (q *stubQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL = sql
	q.args = args
	return q.row
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	q := &stubQuerier{row: errRow{err: pgx.ErrNoRows}}
	repo := restaurant.NewRepository(q)
	id := uuid.Must(uuid.NewV4())

	got, err := repo.GetByID(context.Background(), id)

	require.ErrorIs(t, err, restaurant.ErrNotFound)
	assert.Nil(t, got)
	assert.Contains(t, q.lastSQL, "WHERE id = $1")
	assert.Equal(t, []any{id}, q.args)
}

func TestRepository_GetBySlug_NotFound(t *testing.T) {
	q := &stubQuerier{row: errRow{err: pgx.ErrNoRows}}
	repo := restaurant.NewRepository(q)

	_, err := repo.GetBySlug(context.Background(), "warung-bu-sri")

	require.ErrorIs(t, err, restaurant.ErrNotFound)
	assert.Contains(t, q.lastSQL, "WHERE slug = $1")
}
