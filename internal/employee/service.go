package employee

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/foodhub/internal/access"
)

type Service interface {
	List(ctx context.Context, actor access.Principal) (Roster, error)
	Approve(ctx context.Context, actor access.Principal, employeeID uuid.UUID) (*Employee, error)
	Reject(ctx context.Context, actor access.Principal, employeeID uuid.UUID) (*Employee, error)
	// Revoke removes the employment record; the user has to apply again.
	Revoke(ctx context.Context, actor access.Principal, employeeID uuid.UUID) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, actor access.Principal) (Roster, error) {
	if err := access.Require(actor, access.CapManageEmployees); err != nil {
		return Roster{}, fmt.Errorf("service: %w", err)
	}

	employees, err := s.repo.ListByRestaurant(ctx, actor.RestaurantID)
	if err != nil {
		return Roster{}, fmt.Errorf("service: failed to list employees: %w", err)
	}
	return NewRoster(employees), nil
}

func (s *service) Approve(ctx context.Context, actor access.Principal, employeeID uuid.UUID) (*Employee, error) {
	return s.setStatus(ctx, actor, employeeID, access.EmploymentApproved)
}

func (s *service) Reject(ctx context.Context, actor access.Principal, employeeID uuid.UUID) (*Employee, error) {
	return s.setStatus(ctx, actor, employeeID, access.EmploymentRejected)
}

func (s *service) setStatus(ctx context.Context, actor access.Principal, employeeID uuid.UUID, status access.EmploymentStatus) (*Employee, error) {
	current, err := s.loadManaged(ctx, actor, employeeID)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return nil, fmt.Errorf("service: employee %s is already %s: %w", employeeID, status, ErrStatusUnchanged)
	}

	updated, err := s.repo.UpdateStatus(ctx, employeeID, status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to update employee %s: %w", employeeID, err)
	}

	log.Info().
		Stringer("employee_id", employeeID).
		Stringer("restaurant_id", updated.RestaurantID).
		Stringer("status", status).
		Msg("Employee status changed")
	return updated, nil
}

func (s *service) Revoke(ctx context.Context, actor access.Principal, employeeID uuid.UUID) error {
	if _, err := s.loadManaged(ctx, actor, employeeID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, employeeID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("service: failed to revoke employee %s: %w", employeeID, err)
	}

	log.Info().Stringer("employee_id", employeeID).Stringer("restaurant_id", actor.RestaurantID).Msg("Employee revoked")
	return nil
}

// loadManaged returns the employee if the actor may manage them. Staff of
// another restaurant are reported as not found.
func (s *service) loadManaged(ctx context.Context, actor access.Principal, employeeID uuid.UUID) (*Employee, error) {
	if err := access.Require(actor, access.CapManageEmployees); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	e, err := s.repo.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("service: failed to get employee %s: %w", employeeID, err)
	}
	if !actor.Owns(e.RestaurantID) {
		return nil, ErrNotFound
	}
	return e, nil
}
