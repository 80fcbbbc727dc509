package storage

import (
	"context"

	"github.com/example/ride-hail/internal/models"
)

// RideStore defines persistence operations for rides.
type RideStore interface {
	SaveRide(ctx context.Context, r *models.Ride) error
	GetRide(ctx context.Context, id string) (*models.Ride, error)
	UpdateRide(ctx context.Context, r *models.Ride) error
}

// AccountStore defines persistence operations for rider and captain accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, a *models.Account) error
	AccountByEmail(ctx context.Context, email string, role models.Role) (*models.Account, error)
	AccountByID(ctx context.Context, id string) (*models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) error
}
