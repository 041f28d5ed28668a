package memory

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/payments"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentRepository struct {
	s *Store
}

var _ payments.Repository = (*PaymentRepository)(nil)

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	defer r.s.lock(ctx)()

	if _, ok := r.s.data.rentals[p.RentalRequestID]; !ok {
		return nil, common.ErrorNotFound
	}
	for _, existing := range r.s.data.payments {
		if existing.RentalRequestID == p.RentalRequestID {
			return nil, fmt.Errorf("%w: payments_rental_request_id_key", common.ErrConflict)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := r.s.clock.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.data.payments[p.ID] = *p
	return p, nil
}

func (r *PaymentRepository) Find(ctx context.Context, id string) (*models.Payment, error) {
	defer r.s.lock(ctx)()

	p, ok := r.s.data.payments[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &p, nil
}

func (r *PaymentRepository) FindByRental(ctx context.Context, rentalID string) (*models.Payment, error) {
	defer r.s.lock(ctx)()

	for _, p := range r.s.data.payments {
		if p.RentalRequestID == rentalID {
			return &p, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *PaymentRepository) FindForUpdate(ctx context.Context, id string) (*models.Payment, error) {
	return r.Find(ctx, id)
}

func (r *PaymentRepository) FindDetails(ctx context.Context, id string) (*models.PaymentDetails, error) {
	defer r.s.lock(ctx)()

	p, ok := r.s.data.payments[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	rental := r.s.data.rentals[p.RentalRequestID]
	u := r.s.data.users[rental.CustomerID]

	return &models.PaymentDetails{
		Payment:       p,
		RentalStatus:  rental.Status,
		CustomerID:    rental.CustomerID,
		CustomerName:  u.Name,
		CustomerEmail: u.Email,
		VehicleID:     rental.VehicleID,
		VehicleTitle:  r.s.data.vehicles[rental.VehicleID].Title,
		StartDate:     rental.StartDate,
		EndDate:       rental.EndDate,
	}, nil
}

func (r *PaymentRepository) Reset(ctx context.Context, id string, amount decimal.Decimal, method models.PaymentMethod) (bool, error) {
	return r.update(ctx, id, func(p *models.Payment) bool {
		if p.Status == models.PaymentSuccess {
			return false
		}
		p.Amount = amount
		p.Method = method
		p.Status = models.PaymentPending
		return true
	})
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, from, to models.PaymentStatus) (bool, error) {
	return r.update(ctx, id, func(p *models.Payment) bool {
		if p.Status != from {
			return false
		}
		p.Status = to
		return true
	})
}

func (r *PaymentRepository) SetReceipt(ctx context.Context, id, ref string) (bool, error) {
	return r.update(ctx, id, func(p *models.Payment) bool {
		if p.ReceiptURL != nil {
			return false
		}
		p.ReceiptURL = &ref
		return true
	})
}

func (r *PaymentRepository) update(ctx context.Context, id string, apply func(*models.Payment) bool) (bool, error) {
	defer r.s.lock(ctx)()

	p, ok := r.s.data.payments[id]
	if !ok || !apply(&p) {
		return false, nil
	}
	p.UpdatedAt = r.s.clock.Now()
	r.s.data.payments[id] = p
	return true, nil
}
