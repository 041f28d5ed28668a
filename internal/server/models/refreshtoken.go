package models

import "time"

// RefreshToken is an issued session token. The rental core only reads
// Expires, to purge stale rows.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
