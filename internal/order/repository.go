package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Repository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, restaurantID uuid.UUID, filter ListFilter) ([]Order, error)
	ListOrdersCreatedBetween(ctx context.Context, restaurantID uuid.UUID, from, to time.Time) ([]Order, error)
	// UpdateStatus moves the order to next only if it is still in expected.
	// It returns ErrConflict when the stored status differs.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next Status) (*Order, error)
	// MarkPaymentReported sets the payment flag on a pending, unflagged order.
	// It returns ErrConflict when the order is no longer in that state.
	MarkPaymentReported(ctx context.Context, id uuid.UUID) (*Order, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const orderColumns = `id, restaurant_id, customer_name, table_number, total_amount, status, version,
	payment_reported, payment_reported_at, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID,
		&o.RestaurantID,
		&o.CustomerName,
		&o.TableNumber,
		&o.TotalAmount,
		&o.Status,
		&o.Version,
		&o.PaymentReported,
		&o.PaymentReportedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
}

// CreateOrder inserts the header and every line in one transaction.
func (r *postgresRepository) CreateOrder(ctx context.Context, o *Order) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("repository: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit order %s: %w", o.ID, commitErr)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, restaurant_id, customer_name, table_number, total_amount, status, version,
			payment_reported, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9)
	`,
		o.ID,
		o.RestaurantID,
		o.CustomerName,
		o.TableNumber,
		o.TotalAmount,
		string(o.Status),
		o.Version,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order %s: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for i := range o.Lines {
		line := &o.Lines[i]
		if line.ID == uuid.Nil {
			line.ID, err = uuid.NewV4()
			if err != nil {
				return fmt.Errorf("repository: failed to generate order line id: %w", err)
			}
		}
		line.OrderID = o.ID
		batch.Queue(`
			INSERT INTO order_items (id, order_id, menu_item_id, name, unit_price, quantity, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, line.ID, line.OrderID, line.MenuItemID, line.Name, line.UnitPrice, line.Quantity, i)
	}

	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("repository: failed to insert lines for order %s: %w", o.ID, err)
	}

	return nil
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	orders := []Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *postgresRepository) ListOrders(ctx context.Context, restaurantID uuid.UUID, filter ListFilter) ([]Order, error) {
	var status *string
	if filter.Status != "" {
		s := string(filter.Status)
		status = &s
	}
	includeCancelled := filter.IncludeCancelled || filter.Status == StatusCancelled

	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE restaurant_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3 OR status <> 'cancelled')
		ORDER BY created_at DESC
		LIMIT $4
	`, restaurantID, status, includeCancelled, filter.limit())
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for restaurant %s: %w", restaurantID, err)
	}

	return r.collect(ctx, rows, restaurantID)
}

func (r *postgresRepository) ListOrdersCreatedBetween(ctx context.Context, restaurantID uuid.UUID, from, to time.Time) ([]Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE restaurant_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at
	`, restaurantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for restaurant %s: %w", restaurantID, err)
	}

	return r.collect(ctx, rows, restaurantID)
}

func (r *postgresRepository) collect(ctx context.Context, rows pgx.Rows, restaurantID uuid.UUID) ([]Order, error) {
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for restaurant %s: %w", restaurantID, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for restaurant %s: %w", restaurantID, err)
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachLines loads the lines of all given orders with one query.
func (r *postgresRepository) attachLines(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[uuid.UUID]int, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for i := range orders {
		orders[i].Lines = make([]Line, 0)
		index[orders[i].ID] = i
		ids = append(ids, orders[i].ID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, name, unit_price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.MenuItemID, &l.Name, &l.UnitPrice, &l.Quantity); err != nil {
			return fmt.Errorf("repository: failed to scan order line: %w", err)
		}
		if i, ok := index[l.OrderID]; ok {
			orders[i].Lines = append(orders[i].Lines, l)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: failed iterating order lines: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next Status) (*Order, error) {
	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+orderColumns,
		id, string(expected), string(next),
	), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.guardFailure(ctx, id)
		}
		return nil, fmt.Errorf("repository: failed to update status of order %s: %w", id, err)
	}

	orders := []Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *postgresRepository) MarkPaymentReported(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `
		UPDATE orders
		SET payment_reported = true, payment_reported_at = now(), version = version + 1, updated_at = now()
		WHERE id = $1 AND status = 'pending' AND NOT payment_reported
		RETURNING `+orderColumns,
		id,
	), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.guardFailure(ctx, id)
		}
		return nil, fmt.Errorf("repository: failed to mark payment of order %s: %w", id, err)
	}

	orders := []Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// guardFailure tells a missing order apart from a lost race.
func (r *postgresRepository) guardFailure(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("repository: failed to check order %s: %w", id, err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrConflict
}
