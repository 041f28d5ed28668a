// Package models defines the flat read models exchanged between the rental
// core and its repositories. None of them carry storage relations; the
// repositories assemble them explicitly.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RentalStatus is the lifecycle state of a rental request.
type RentalStatus string

const (
	RentalPending   RentalStatus = "PENDING"
	RentalApproved  RentalStatus = "APPROVED"
	RentalCancelled RentalStatus = "CANCELLED"
	RentalCompleted RentalStatus = "COMPLETED"
)

// Terminal reports whether no further transitions leave s.
func (s RentalStatus) Terminal() bool {
	return s == RentalCancelled || s == RentalCompleted
}

// RentalRequest is a customer's time-bounded claim on a vehicle.
type RentalRequest struct {
	ID          string
	VehicleID   string
	CustomerID  string
	StartDate   time.Time
	EndDate     time.Time
	TotalAmount decimal.Decimal
	Status      RentalStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RentalDetails is the rental read model returned to callers: the rental plus
// the vehicle, store owner, customer and payment fields they need.
type RentalDetails struct {
	RentalRequest

	VehicleTitle  string
	StoreID       string
	OwnerID       string
	DayRate       decimal.Decimal
	MonthRate     decimal.Decimal
	CustomerName  string
	CustomerEmail string

	// Payment is nil until the rental is approved or paid.
	Payment *Payment
}
