package models

import "time"

// ReminderTarget is an approved rental about to end, with the contact data
// needed to notify its customer.
type ReminderTarget struct {
	RentalID      string
	CustomerEmail string
	CustomerName  string
	VehicleTitle  string
	EndDate       time.Time
}
