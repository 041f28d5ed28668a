// Package rentals declares the repository contract for rental requests.
//
// Status changes are compare-and-swap: every mutating method names the state
// it expects and reports whether a row actually moved, so callers can detect
// a lost race without holding a lock.
package rentals

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/shopspring/decimal"
)

// Repository reads and writes rental requests.
type Repository interface {
	// Create inserts a rental and fills in ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, r *models.RentalRequest) (*models.RentalRequest, error)

	// Find returns the rental or common.ErrorNotFound.
	Find(ctx context.Context, id string) (*models.RentalRequest, error)

	// FindForUpdate is Find plus a row lock held until the transaction ends.
	FindForUpdate(ctx context.Context, id string) (*models.RentalRequest, error)

	// FindDetails returns the flattened read model.
	FindDetails(ctx context.Context, id string) (*models.RentalDetails, error)

	// ListByCustomer returns one page of the customer's rentals, newest
	// first, and the total count.
	ListByCustomer(ctx context.Context, customerID string, page models.Page) ([]models.RentalDetails, int, error)

	// ListByOwner returns one page of rentals on vehicles in the owner's
	// stores, newest first, and the total count.
	ListByOwner(ctx context.Context, ownerID string, page models.Page) ([]models.RentalDetails, int, error)

	// FindOverlapping returns rentals on the vehicle whose status is one of
	// statuses and whose closed interval may intersect [start, end].
	FindOverlapping(ctx context.Context, vehicleID string, start, end time.Time, statuses ...models.RentalStatus) ([]models.RentalRequest, error)

	// UpdateStatus moves the rental from one status to another.
	UpdateStatus(ctx context.Context, id string, from, to models.RentalStatus) (bool, error)

	// Extend moves the end of an APPROVED rental from oldEnd to newEnd and
	// stores the repriced total.
	Extend(ctx context.Context, id string, oldEnd, newEnd time.Time, total decimal.Decimal) (bool, error)

	// ListExpired returns APPROVED rentals whose end date is before now.
	ListExpired(ctx context.Context, now time.Time) ([]models.RentalRequest, error)

	// CompleteExpired moves one rental to COMPLETED if it is still APPROVED
	// and its end date is before now.
	CompleteExpired(ctx context.Context, id string, now time.Time) (bool, error)

	// ListReminderTargets returns APPROVED rentals ending within [from, to].
	ListReminderTargets(ctx context.Context, from, to time.Time) ([]models.ReminderTarget, error)
}
