// Package refreshtokens declares the repository contract for persisted
// session tokens. The rental core only issues and purges them.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
)

// Repository stores refresh tokens.
type Repository interface {
	// Create stores a token for its user with the given expiry.
	Create(ctx context.Context, token *models.RefreshToken) error

	// DeleteExpired removes every token whose expiry is before now and
	// reports how many rows went away.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
