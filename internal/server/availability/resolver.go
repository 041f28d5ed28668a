// Package availability decides whether a vehicle is free for a date range.
//
// Intervals are closed on both ends: a rental ending at the instant another
// one starts still conflicts with it.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/rentals"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/vehicles"
)

// Overlaps reports whether the requested range [start, end] intersects the
// existing closed interval [s, e].
func Overlaps(start, end, s, e time.Time) bool {
	within := func(t time.Time) bool { return !t.Before(start) && !t.After(end) }
	return within(s) || within(e) || (!s.After(start) && !e.Before(end))
}

// Resolver answers availability questions through the repositories it was
// built with. Build it over transaction-bound repositories to make the
// answer hold until commit.
type Resolver struct {
	vehicles vehicles.Repository
	rentals  rentals.Repository
}

func NewResolver(v vehicles.Repository, r rentals.Repository) *Resolver {
	return &Resolver{vehicles: v, rentals: r}
}

// HasConflict reports whether an APPROVED rental on the vehicle overlaps
// [start, end]. A missing vehicle is common.ErrorNotFound.
func (r *Resolver) HasConflict(ctx context.Context, vehicleID string, start, end time.Time) (bool, error) {
	if !start.Before(end) {
		return false, common.ErrInvalidRange
	}
	if _, err := r.vehicles.Find(ctx, vehicleID); err != nil {
		return false, fmt.Errorf("vehicle %s: %w", vehicleID, err)
	}
	found, err := r.Conflicting(ctx, vehicleID, start, end, "", models.RentalApproved)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// Conflicting returns the rentals on the vehicle in one of statuses that
// overlap [start, end], skipping excludeID.
func (r *Resolver) Conflicting(ctx context.Context, vehicleID string, start, end time.Time, excludeID string, statuses ...models.RentalStatus) ([]models.RentalRequest, error) {
	candidates, err := r.rentals.FindOverlapping(ctx, vehicleID, start, end, statuses...)
	if err != nil {
		return nil, err
	}
	var out []models.RentalRequest
	for _, c := range candidates {
		if c.ID == excludeID {
			continue
		}
		if Overlaps(start, end, c.StartDate, c.EndDate) {
			out = append(out, c)
		}
	}
	return out, nil
}
