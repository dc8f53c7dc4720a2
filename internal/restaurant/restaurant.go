package restaurant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("restaurant not found")

type Restaurant struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"-"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsOpen    bool      `json:"is_open"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository is the read side of restaurant settings. Editing settings is
// handled elsewhere.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Restaurant, error)
	GetBySlug(ctx context.Context, slug string) (*Restaurant, error)
}

type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db Querier
}

func NewRepository(db Querier) Repository {
	return &postgresRepository{db: db}
}

const selectRestaurant = `
	SELECT id, owner_id, name, slug, is_open, created_at
	FROM restaurants
`

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Restaurant, error) {
	rest, err := scanRestaurant(r.db.QueryRow(ctx, selectRestaurant+"WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select restaurant %s: %w", id, err)
	}
	return rest, nil
}

func (r *postgresRepository) GetBySlug(ctx context.Context, slug string) (*Restaurant, error) {
	rest, err := scanRestaurant(r.db.QueryRow(ctx, selectRestaurant+"WHERE slug = $1", slug))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select restaurant %q: %w", slug, err)
	}
	return rest, nil
}

func scanRestaurant(row pgx.Row) (*Restaurant, error) {
	var rest Restaurant
	err := row.Scan(&rest.ID, &rest.OwnerID, &rest.Name, &rest.Slug, &rest.IsOpen, &rest.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rest, nil
}
