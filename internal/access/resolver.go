package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrUnknownPrincipal = errors.New("unknown principal")

// Resolver maps an authenticated user id to the principal acting for a restaurant.
// Authentication itself happens upstream.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (Principal, error)
}

type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresResolver struct {
	db Querier
}

func NewPostgresResolver(db Querier) *PostgresResolver {
	return &PostgresResolver{db: db}
}

// Resolve prefers the owner row, then the most recent employee row.
func (r *PostgresResolver) Resolve(ctx context.Context, userID uuid.UUID) (Principal, error) {
	p := Principal{UserID: userID}

	err := r.db.QueryRow(ctx, `
		SELECT id FROM restaurants WHERE owner_id = $1 ORDER BY created_at LIMIT 1
	`, userID).Scan(&p.RestaurantID)
	if err == nil {
		p.Role = RoleOwner
		p.EmploymentStatus = EmploymentApproved
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Principal{}, fmt.Errorf("resolver: failed to look up owner %s: %w", userID, err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT restaurant_id, role, status
		FROM employees
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&p.RestaurantID, &p.Role, &p.EmploymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, ErrUnknownPrincipal
		}
		return Principal{}, fmt.Errorf("resolver: failed to look up employee %s: %w", userID, err)
	}

	return p, nil
}
