package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	MethodCard PaymentMethod = "CARD"
	MethodUPI  PaymentMethod = "UPI"
	MethodCash PaymentMethod = "CASH"
	MethodMock PaymentMethod = "MOCK"
)

var ErrUnknownPaymentMethod = errors.New("unknown payment method")

// ParsePaymentMethod accepts any letter case ("mock", "Card").
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodCard, MethodUPI, MethodCash, MethodMock:
		return m, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownPaymentMethod, s)
}

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Payment is attached 1:1 to a rental request and never deleted.
type Payment struct {
	ID              string
	RentalRequestID string
	Amount          decimal.Decimal
	Method          PaymentMethod
	Status          PaymentStatus
	ReceiptURL      *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PaymentDetails is the payment read model used by receipts.
type PaymentDetails struct {
	Payment

	RentalStatus  RentalStatus
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	VehicleID     string
	VehicleTitle  string
	StartDate     time.Time
	EndDate       time.Time
}
