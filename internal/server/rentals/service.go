// Package rentals owns the rental request state machine:
//
//	PENDING -> APPROVED -> COMPLETED
//	PENDING -> CANCELLED
//
// Every transition runs in a transaction that locks the rental row (and the
// vehicle row where availability matters) and then applies a conditional
// status update, so racing Approve, Renew and the expiry sweep never lose an
// update.
package rentals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/dbx"
	"github.com/dmitrijs2005/vehiclerent/internal/logging"
	"github.com/dmitrijs2005/vehiclerent/internal/server/availability"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/server/pricing"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vehiclerent/internal/timex"
)

// holds are the statuses that keep a vehicle booked for new requests.
var holds = []models.RentalStatus{models.RentalPending, models.RentalApproved}

type Service struct {
	db          dbx.DBTX
	runner      dbx.Runner
	repomanager repomanager.RepositoryManager
	clock       timex.Clock
	log         logging.Logger
}

// NewService builds the manager. db serves plain reads; runner wraps every
// state change.
func NewService(db dbx.DBTX, runner dbx.Runner, m repomanager.RepositoryManager, clock timex.Clock, log logging.Logger) *Service {
	return &Service{
		db:          db,
		runner:      runner,
		repomanager: m,
		clock:       clock,
		log:         log.With("module", "rentals"),
	}
}

// CreateRentalRequest books vehicleID for customerID over [start, end] as a
// PENDING request priced by the vehicle's rates.
func (s *Service) CreateRentalRequest(ctx context.Context, customerID, vehicleID string, start, end time.Time) (*models.RentalDetails, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start must be before end", common.ErrInvalidRange)
	}
	if start.Before(s.clock.Now()) {
		return nil, fmt.Errorf("%w: start is in the past", common.ErrInvalidRange)
	}

	var out *models.RentalDetails
	err := s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		vehicles := s.repomanager.Vehicles(tx)
		rentals := s.repomanager.Rentals(tx)

		v, err := vehicles.FindForUpdate(ctx, vehicleID)
		if err != nil {
			return fmt.Errorf("error finding vehicle: %w", err)
		}
		if !v.IsAvailable {
			return fmt.Errorf("%w: vehicle is not listed as available", common.ErrConflict)
		}

		taken, err := availability.NewResolver(vehicles, rentals).Conflicting(ctx, v.ID, start, end, "", holds...)
		if err != nil {
			return fmt.Errorf("error checking availability: %w", err)
		}
		if len(taken) > 0 {
			return fmt.Errorf("%w: vehicle is booked for the requested dates", common.ErrConflict)
		}

		r, err := rentals.Create(ctx, &models.RentalRequest{
			VehicleID:   v.ID,
			CustomerID:  customerID,
			StartDate:   start,
			EndDate:     end,
			TotalAmount: pricing.Price(v.DayRate, v.MonthRate, start, end),
			Status:      models.RentalPending,
		})
		if err != nil {
			return fmt.Errorf("error creating rental: %w", err)
		}

		out, err = rentals.FindDetails(ctx, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "rental requested", "rental_id", out.ID, "vehicle_id", vehicleID, "customer_id", customerID, "total", out.TotalAmount.StringFixed(2))
	return out, nil
}

// ApproveRental accepts a PENDING request on one of ownerID's vehicles and
// opens a PENDING MOCK payment for its total.
func (s *Service) ApproveRental(ctx context.Context, rentalID, ownerID string) (*models.RentalDetails, error) {
	var out *models.RentalDetails
	err := s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		r, v, err := s.lockForOwner(ctx, tx, rentalID, ownerID)
		if err != nil {
			return err
		}

		rentals := s.repomanager.Rentals(tx)
		taken, err := availability.NewResolver(s.repomanager.Vehicles(tx), rentals).
			Conflicting(ctx, v.ID, r.StartDate, r.EndDate, r.ID, models.RentalApproved)
		if err != nil {
			return fmt.Errorf("error checking availability: %w", err)
		}
		if len(taken) > 0 {
			return fmt.Errorf("%w: another approved rental overlaps", common.ErrConflict)
		}

		if err := s.transition(ctx, tx, r.ID, models.RentalPending, models.RentalApproved); err != nil {
			return err
		}
		if err := s.openPayment(ctx, tx, r); err != nil {
			return err
		}

		out, err = rentals.FindDetails(ctx, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "rental approved", "rental_id", rentalID, "owner_id", ownerID)
	return out, nil
}

// RejectRental cancels a PENDING request on one of ownerID's vehicles.
func (s *Service) RejectRental(ctx context.Context, rentalID, ownerID string) (*models.RentalDetails, error) {
	var out *models.RentalDetails
	err := s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		r, _, err := s.lockForOwner(ctx, tx, rentalID, ownerID)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, tx, r.ID, models.RentalPending, models.RentalCancelled); err != nil {
			return err
		}
		out, err = s.repomanager.Rentals(tx).FindDetails(ctx, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "rental rejected", "rental_id", rentalID, "owner_id", ownerID)
	return out, nil
}

// RenewRental moves the end of customerID's APPROVED rental to newEnd,
// bills the added days at the vehicle's rates and puts the payment back to
// PENDING for the new total.
func (s *Service) RenewRental(ctx context.Context, rentalID, customerID string, newEnd time.Time) (*models.RentalDetails, error) {
	var out *models.RentalDetails
	err := s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		vehicles := s.repomanager.Vehicles(tx)
		rentals := s.repomanager.Rentals(tx)
		payments := s.repomanager.Payments(tx)

		r, err := rentals.FindForUpdate(ctx, rentalID)
		if err != nil {
			return fmt.Errorf("error finding rental: %w", err)
		}
		if r.CustomerID != customerID {
			return fmt.Errorf("%w: rental belongs to another customer", common.ErrForbidden)
		}
		if r.Status != models.RentalApproved {
			return fmt.Errorf("%w: only approved rentals can be renewed, rental is %s", common.ErrInvalidState, r.Status)
		}
		if !newEnd.After(r.EndDate) {
			return fmt.Errorf("%w: new end must be after the current end", common.ErrInvalidRange)
		}

		v, err := vehicles.FindForUpdate(ctx, r.VehicleID)
		if err != nil {
			return fmt.Errorf("error finding vehicle: %w", err)
		}

		taken, err := availability.NewResolver(vehicles, rentals).Conflicting(ctx, v.ID, r.EndDate, newEnd, r.ID, holds...)
		if err != nil {
			return fmt.Errorf("error checking availability: %w", err)
		}
		if len(taken) > 0 {
			return fmt.Errorf("%w: vehicle is booked for the extension", common.ErrConflict)
		}

		extra := pricing.Price(v.DayRate, v.MonthRate, r.EndDate, newEnd)
		total := pricing.Round(r.TotalAmount.Add(extra))

		ok, err := rentals.Extend(ctx, r.ID, r.EndDate, newEnd, total)
		if err != nil {
			return fmt.Errorf("error extending rental: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: rental changed concurrently", common.ErrInvalidState)
		}

		p, err := payments.FindByRental(ctx, r.ID)
		switch {
		case errors.Is(err, common.ErrorNotFound):
		case err != nil:
			return fmt.Errorf("error finding payment: %w", err)
		default:
			if _, err := payments.Reset(ctx, p.ID, total, p.Method); err != nil {
				return fmt.Errorf("error resetting payment: %w", err)
			}
		}

		out, err = rentals.FindDetails(ctx, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "rental renewed", "rental_id", rentalID, "end_date", newEnd, "total", out.TotalAmount.StringFixed(2))
	return out, nil
}

// GetRentalRequest returns the rental if actorID is its customer or the
// owner of its vehicle.
func (s *Service) GetRentalRequest(ctx context.Context, rentalID, actorID string) (*models.RentalDetails, error) {
	d, err := s.repomanager.Rentals(s.db).FindDetails(ctx, rentalID)
	if err != nil {
		return nil, fmt.Errorf("error finding rental: %w", err)
	}
	if actorID != d.CustomerID && actorID != d.OwnerID {
		return nil, common.ErrForbidden
	}
	return d, nil
}

// ListCustomerRentals returns the customer's rentals, newest first.
func (s *Service) ListCustomerRentals(ctx context.Context, customerID string, page, limit int) (models.Paginated[models.RentalDetails], error) {
	p := models.NewPage(page, limit)
	items, total, err := s.repomanager.Rentals(s.db).ListByCustomer(ctx, customerID, p)
	if err != nil {
		return models.Paginated[models.RentalDetails]{}, fmt.Errorf("error listing rentals: %w", err)
	}
	return models.NewPaginated(items, total, p), nil
}

// ListOwnerRentals returns rentals on vehicles in the owner's stores, newest
// first.
func (s *Service) ListOwnerRentals(ctx context.Context, ownerID string, page, limit int) (models.Paginated[models.RentalDetails], error) {
	p := models.NewPage(page, limit)
	items, total, err := s.repomanager.Rentals(s.db).ListByOwner(ctx, ownerID, p)
	if err != nil {
		return models.Paginated[models.RentalDetails]{}, fmt.Errorf("error listing rentals: %w", err)
	}
	return models.NewPaginated(items, total, p), nil
}

// CompleteExpired moves every APPROVED rental whose end date has passed to
// COMPLETED and returns how many moved. Each rental is completed by a
// conditional update, so a rental renewed or paid meanwhile is skipped and a
// second run finds nothing to do.
func (s *Service) CompleteExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	rentals := s.repomanager.Rentals(s.db)

	expired, err := rentals.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("error listing expired rentals: %w", err)
	}

	var (
		done int
		errs []error
	)
	for _, r := range expired {
		ok, err := rentals.CompleteExpired(ctx, r.ID, now)
		if err != nil {
			s.log.Error(ctx, "error completing expired rental", "rental_id", r.ID, "error", err)
			errs = append(errs, fmt.Errorf("rental %s: %w", r.ID, err))
			continue
		}
		if ok {
			done++
			s.log.Info(ctx, "rental completed after end date", "rental_id", r.ID, "end_date", r.EndDate)
		}
	}
	return done, errors.Join(errs...)
}

// lockForOwner locks the rental and its vehicle and checks that ownerID owns
// the vehicle's store.
func (s *Service) lockForOwner(ctx context.Context, tx dbx.DBTX, rentalID, ownerID string) (*models.RentalRequest, *models.Vehicle, error) {
	r, err := s.repomanager.Rentals(tx).FindForUpdate(ctx, rentalID)
	if err != nil {
		return nil, nil, fmt.Errorf("error finding rental: %w", err)
	}
	v, err := s.repomanager.Vehicles(tx).FindForUpdate(ctx, r.VehicleID)
	if err != nil {
		return nil, nil, fmt.Errorf("error finding vehicle: %w", err)
	}
	if v.OwnerID != ownerID {
		return nil, nil, fmt.Errorf("%w: vehicle belongs to another owner", common.ErrForbidden)
	}
	if r.Status != models.RentalPending {
		return nil, nil, fmt.Errorf("%w: rental is %s", common.ErrInvalidState, r.Status)
	}
	return r, v, nil
}

func (s *Service) transition(ctx context.Context, tx dbx.DBTX, rentalID string, from, to models.RentalStatus) error {
	ok, err := s.repomanager.Rentals(tx).UpdateStatus(ctx, rentalID, from, to)
	if err != nil {
		return fmt.Errorf("error updating rental: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: rental is no longer %s", common.ErrInvalidState, from)
	}
	return nil
}

func (s *Service) openPayment(ctx context.Context, tx dbx.DBTX, r *models.RentalRequest) error {
	payments := s.repomanager.Payments(tx)

	p, err := payments.FindByRental(ctx, r.ID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		_, err = payments.Create(ctx, &models.Payment{
			RentalRequestID: r.ID,
			Amount:          r.TotalAmount,
			Method:          models.MethodMock,
			Status:          models.PaymentPending,
		})
	case err == nil:
		_, err = payments.Reset(ctx, p.ID, r.TotalAmount, models.MethodMock)
	}
	if err != nil {
		return fmt.Errorf("error creating payment: %w", err)
	}
	return nil
}
