package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/refreshtokens"
	"github.com/google/uuid"
)

type RefreshTokenRepository struct {
	s *Store
}

var _ refreshtokens.Repository = (*RefreshTokenRepository)(nil)

func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	defer r.s.lock(ctx)()

	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = r.s.clock.Now()
	r.s.data.tokens[token.ID] = *token
	return nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.s.lock(ctx)()

	var n int64
	for id, t := range r.s.data.tokens {
		if t.Expires.Before(now) {
			delete(r.s.data.tokens, id)
			n++
		}
	}
	return n, nil
}
