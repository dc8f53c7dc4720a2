package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository interface {
	Create(ctx context.Context, r *Review) error
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, limit int) ([]Review, error)
}

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, rv *Review) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO reviews (id, restaurant_id, order_id, customer_name, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rv.ID, rv.RestaurantID, rv.OrderID, rv.CustomerName, rv.Rating, rv.Comment, rv.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrReviewExists
		}
		return fmt.Errorf("repository: failed to insert review for order %s: %w", rv.OrderID, err)
	}
	return nil
}

func (r *postgresRepository) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, limit int) ([]Review, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, restaurant_id, order_id, customer_name, rating, comment, created_at
		FROM reviews
		WHERE restaurant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, restaurantID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []Review{}
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.RestaurantID, &rv.OrderID, &rv.CustomerName, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate reviews: %w", err)
	}
	return reviews, nil
}
