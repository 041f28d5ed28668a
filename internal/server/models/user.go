package models

// User is the identity data the rental core reads: contact details shown on
// rentals, receipts and reminders.
type User struct {
	ID    string
	Email string
	Name  string
}

// Store groups vehicles under one owner. Ownership checks compare the acting
// user to OwnerID.
type Store struct {
	ID      string
	OwnerID string
	Name    string
}
