package models

import "github.com/shopspring/decimal"

// Vehicle is a listing. IsAvailable is the owner's listing toggle and says
// nothing about bookings on specific dates.
type Vehicle struct {
	ID          string
	StoreID     string
	OwnerID     string
	Title       string
	DayRate     decimal.Decimal
	MonthRate   decimal.Decimal
	IsAvailable bool
}
