package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/rentals"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RentalRepository struct {
	s *Store
}

var _ rentals.Repository = (*RentalRepository)(nil)

func (r *RentalRepository) Create(ctx context.Context, rental *models.RentalRequest) (*models.RentalRequest, error) {
	defer r.s.lock(ctx)()

	if _, ok := r.s.data.vehicles[rental.VehicleID]; !ok {
		return nil, common.ErrorNotFound
	}
	if err := r.checkApprovedOverlap(*rental); err != nil {
		return nil, err
	}
	if rental.ID == "" {
		rental.ID = uuid.NewString()
	}
	now := r.s.clock.Now()
	rental.CreatedAt, rental.UpdatedAt = now, now

	r.s.data.seq++
	r.s.data.rentalSeq[rental.ID] = r.s.data.seq
	r.s.data.rentals[rental.ID] = *rental
	return rental, nil
}

func (r *RentalRepository) Find(ctx context.Context, id string) (*models.RentalRequest, error) {
	defer r.s.lock(ctx)()

	rental, ok := r.s.data.rentals[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rental, nil
}

func (r *RentalRepository) FindForUpdate(ctx context.Context, id string) (*models.RentalRequest, error) {
	return r.Find(ctx, id)
}

func (r *RentalRepository) FindDetails(ctx context.Context, id string) (*models.RentalDetails, error) {
	defer r.s.lock(ctx)()

	rental, ok := r.s.data.rentals[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	d := r.details(rental)
	return &d, nil
}

// details must be called with r.s.mu held.
func (r *RentalRepository) details(rental models.RentalRequest) models.RentalDetails {
	d := models.RentalDetails{RentalRequest: rental}

	v := r.s.data.vehicles[rental.VehicleID]
	d.VehicleTitle = v.Title
	d.StoreID = v.StoreID
	d.OwnerID = v.OwnerID
	d.DayRate = v.DayRate
	d.MonthRate = v.MonthRate

	u := r.s.data.users[rental.CustomerID]
	d.CustomerName = u.Name
	d.CustomerEmail = u.Email

	for _, p := range r.s.data.payments {
		if p.RentalRequestID == rental.ID {
			d.Payment = &p
			break
		}
	}
	return d
}

func (r *RentalRepository) ListByCustomer(ctx context.Context, customerID string, page models.Page) ([]models.RentalDetails, int, error) {
	return r.list(ctx, page, func(rental models.RentalRequest) bool {
		return rental.CustomerID == customerID
	})
}

func (r *RentalRepository) ListByOwner(ctx context.Context, ownerID string, page models.Page) ([]models.RentalDetails, int, error) {
	return r.list(ctx, page, func(rental models.RentalRequest) bool {
		return r.s.data.vehicles[rental.VehicleID].OwnerID == ownerID
	})
}

func (r *RentalRepository) list(ctx context.Context, page models.Page, keep func(models.RentalRequest) bool) ([]models.RentalDetails, int, error) {
	defer r.s.lock(ctx)()

	var matched []models.RentalRequest
	for _, rental := range r.s.data.rentals {
		if keep(rental) {
			matched = append(matched, rental)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return r.s.data.rentalSeq[a.ID] > r.s.data.rentalSeq[b.ID]
	})

	total := len(matched)
	from := min(page.Offset(), total)
	to := min(from+page.Limit, total)

	out := make([]models.RentalDetails, 0, to-from)
	for _, rental := range matched[from:to] {
		out = append(out, r.details(rental))
	}
	return out, total, nil
}

func (r *RentalRepository) FindOverlapping(ctx context.Context, vehicleID string, start, end time.Time, statuses ...models.RentalStatus) ([]models.RentalRequest, error) {
	defer r.s.lock(ctx)()

	var out []models.RentalRequest
	for _, rental := range r.s.data.rentals {
		if rental.VehicleID != vehicleID || !slices.Contains(statuses, rental.Status) {
			continue
		}
		if rental.StartDate.After(end) || rental.EndDate.Before(start) {
			continue
		}
		out = append(out, rental)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r *RentalRepository) UpdateStatus(ctx context.Context, id string, from, to models.RentalStatus) (bool, error) {
	return r.update(ctx, id, func(rental *models.RentalRequest) bool {
		if rental.Status != from {
			return false
		}
		rental.Status = to
		return true
	})
}

func (r *RentalRepository) Extend(ctx context.Context, id string, oldEnd, newEnd time.Time, total decimal.Decimal) (bool, error) {
	return r.update(ctx, id, func(rental *models.RentalRequest) bool {
		if rental.Status != models.RentalApproved || !rental.EndDate.Equal(oldEnd) {
			return false
		}
		rental.EndDate = newEnd
		rental.TotalAmount = total
		return true
	})
}

func (r *RentalRepository) ListExpired(ctx context.Context, now time.Time) ([]models.RentalRequest, error) {
	defer r.s.lock(ctx)()

	var out []models.RentalRequest
	for _, rental := range r.s.data.rentals {
		if rental.Status == models.RentalApproved && rental.EndDate.Before(now) {
			out = append(out, rental)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *RentalRepository) CompleteExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.update(ctx, id, func(rental *models.RentalRequest) bool {
		if rental.Status != models.RentalApproved || !rental.EndDate.Before(now) {
			return false
		}
		rental.Status = models.RentalCompleted
		return true
	})
}

func (r *RentalRepository) ListReminderTargets(ctx context.Context, from, to time.Time) ([]models.ReminderTarget, error) {
	defer r.s.lock(ctx)()

	var out []models.ReminderTarget
	for _, rental := range r.s.data.rentals {
		if rental.Status != models.RentalApproved || rental.EndDate.Before(from) || rental.EndDate.After(to) {
			continue
		}
		u := r.s.data.users[rental.CustomerID]
		out = append(out, models.ReminderTarget{
			RentalID:      rental.ID,
			CustomerEmail: u.Email,
			CustomerName:  u.Name,
			VehicleTitle:  r.s.data.vehicles[rental.VehicleID].Title,
			EndDate:       rental.EndDate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *RentalRepository) update(ctx context.Context, id string, apply func(*models.RentalRequest) bool) (bool, error) {
	defer r.s.lock(ctx)()

	rental, ok := r.s.data.rentals[id]
	if !ok {
		return false, nil
	}
	if !apply(&rental) {
		return false, nil
	}
	if err := r.checkApprovedOverlap(rental); err != nil {
		return false, err
	}
	rental.UpdatedAt = r.s.clock.Now()
	r.s.data.rentals[id] = rental
	return true, nil
}

// checkApprovedOverlap mirrors the rental_requests_no_approved_overlap
// exclusion constraint. Must be called with r.s.mu held.
func (r *RentalRepository) checkApprovedOverlap(rental models.RentalRequest) error {
	if rental.Status != models.RentalApproved {
		return nil
	}
	for _, other := range r.s.data.rentals {
		if other.ID == rental.ID || other.VehicleID != rental.VehicleID || other.Status != models.RentalApproved {
			continue
		}
		if !other.StartDate.After(rental.EndDate) && !other.EndDate.Before(rental.StartDate) {
			return fmt.Errorf("%w: rental_requests_no_approved_overlap", common.ErrConflict)
		}
	}
	return nil
}
