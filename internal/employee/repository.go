package employee

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vasiliy-maslov/foodhub/internal/access"
)

type Repository interface {
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]Employee, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Employee, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status access.EmploymentStatus) (*Employee, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

const employeeColumns = `id, user_id, restaurant_id, name, email, role, status, created_at`

func scanEmployee(row pgx.Row, e *Employee) error {
	return row.Scan(&e.ID, &e.UserID, &e.RestaurantID, &e.Name, &e.Email, &e.Role, &e.Status, &e.CreatedAt)
}

func (r *postgresRepository) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]Employee, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE restaurant_id = $1
		ORDER BY created_at, name`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list employees of restaurant %s: %w", restaurantID, err)
	}
	defer rows.Close()

	employees := []Employee{}
	for rows.Next() {
		var e Employee
		if err := scanEmployee(rows, &e); err != nil {
			return nil, fmt.Errorf("repository: failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to iterate employees: %w", err)
	}
	return employees, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Employee, error) {
	var e Employee
	err := scanEmployee(r.db.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id), &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get employee %s: %w", id, err)
	}
	return &e, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status access.EmploymentStatus) (*Employee, error) {
	var e Employee
	err := scanEmployee(r.db.QueryRow(ctx, `
		UPDATE employees SET status = $2
		WHERE id = $1
		RETURNING `+employeeColumns, id, status), &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: failed to update employee %s: %w", id, err)
	}
	return &e, nil
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete employee %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
