// Package vehicles declares the repository contract for vehicle listings.
package vehicles

import (
	"context"

	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
)

// Repository reads and writes vehicles. Lookups return the vehicle with its
// store owner flattened into OwnerID.
type Repository interface {
	// Create inserts a vehicle and returns it with its assigned ID.
	Create(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error)

	// Find returns the vehicle or common.ErrorNotFound.
	Find(ctx context.Context, id string) (*models.Vehicle, error)

	// FindForUpdate is Find plus a row lock held until the surrounding
	// transaction ends. Bookings for one vehicle serialize on this lock.
	FindForUpdate(ctx context.Context, id string) (*models.Vehicle, error)

	// SetAvailability flips the owner's listing toggle.
	SetAvailability(ctx context.Context, id string, available bool) error
}
