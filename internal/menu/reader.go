package menu

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
)

type SnapshotReader interface {
	GetAvailableItems(ctx context.Context, restaurantID uuid.UUID) ([]Item, error)
}

type Reader interface {
	SnapshotReader
	ListCategories(ctx context.Context, restaurantID uuid.UUID) ([]Category, error)
}

type sqlxReader struct {
	db *sqlx.DB
}

func NewReader(db *sqlx.DB) Reader {
	return &sqlxReader{db: db}
}

func (r *sqlxReader) GetAvailableItems(ctx context.Context, restaurantID uuid.UUID) ([]Item, error) {
	query := `
		SELECT id, restaurant_id, category_id, name, description, price, original_price, is_available
		FROM menu_items
		WHERE restaurant_id = $1 AND is_available
		ORDER BY name
	`

	items := make([]Item, 0)
	if err := r.db.SelectContext(ctx, &items, query, restaurantID); err != nil {
		return nil, fmt.Errorf("menu: failed to select available items for restaurant %s: %w", restaurantID, err)
	}

	return items, nil
}

func (r *sqlxReader) ListCategories(ctx context.Context, restaurantID uuid.UUID) ([]Category, error) {
	query := `
		SELECT id, restaurant_id, name, position
		FROM categories
		WHERE restaurant_id = $1
		ORDER BY position, name
	`

	categories := make([]Category, 0)
	if err := r.db.SelectContext(ctx, &categories, query, restaurantID); err != nil {
		return nil, fmt.Errorf("menu: failed to select categories for restaurant %s: %w", restaurantID, err)
	}

	return categories, nil
}
