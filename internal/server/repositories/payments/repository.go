// Package payments declares the repository contract for rental payments.
package payments

import (
	"context"

	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/shopspring/decimal"
)

// Repository reads and writes payments. There is at most one payment per
// rental request; rows are never deleted.
type Repository interface {
	// Create inserts a payment. A second payment for the same rental is
	// common.ErrConflict.
	Create(ctx context.Context, p *models.Payment) (*models.Payment, error)

	Find(ctx context.Context, id string) (*models.Payment, error)

	// FindByRental returns the rental's payment or common.ErrorNotFound.
	FindByRental(ctx context.Context, rentalID string) (*models.Payment, error)

	// FindForUpdate is Find plus a row lock held until the transaction ends.
	FindForUpdate(ctx context.Context, id string) (*models.Payment, error)

	// FindDetails returns the payment with the rental, vehicle and customer
	// fields used on receipts.
	FindDetails(ctx context.Context, id string) (*models.PaymentDetails, error)

	// Reset puts a payment that has not succeeded back to PENDING with a new
	// amount and method.
	Reset(ctx context.Context, id string, amount decimal.Decimal, method models.PaymentMethod) (bool, error)

	// UpdateStatus moves the payment from one status to another.
	UpdateStatus(ctx context.Context, id string, from, to models.PaymentStatus) (bool, error)

	// SetReceipt records the receipt reference unless one is already set.
	SetReceipt(ctx context.Context, id, ref string) (bool, error)
}
