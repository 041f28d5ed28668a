// Package payments drives the payment attached to an approved rental:
// PENDING -> SUCCESS | FAILED, with FAILED payable again and SUCCESS final.
//
// Settlement runs between two short transactions so no row lock is held
// while the gateway is waiting. The second transaction only applies the
// outcome if the payment is still PENDING for the amount that was settled.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/dbx"
	"github.com/dmitrijs2005/vehiclerent/internal/logging"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/server/pricing"
	"github.com/dmitrijs2005/vehiclerent/internal/server/receipts"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/repomanager"
	"github.com/shopspring/decimal"
)

// Settler settles one payment attempt.
type Settler interface {
	Settle(ctx context.Context, method models.PaymentMethod, amount decimal.Decimal) bool
}

// ReceiptIssuer renders and stores receipts. Generate must be idempotent per
// payment and format.
type ReceiptIssuer interface {
	Generate(ctx context.Context, d *models.PaymentDetails, f receipts.Format) (string, error)
	URL(ctx context.Context, key string) (string, error)
}

// Receipt is a downloadable receipt.
type Receipt struct {
	PaymentID string
	Format    receipts.Format
	Reference string
	URL       string
}

type Service struct {
	db          dbx.DBTX
	runner      dbx.Runner
	repomanager repomanager.RepositoryManager
	gateway     Settler
	receipts    ReceiptIssuer
	log         logging.Logger
}

func NewService(db dbx.DBTX, runner dbx.Runner, m repomanager.RepositoryManager, gateway Settler, issuer ReceiptIssuer, log logging.Logger) *Service {
	return &Service{
		db:          db,
		runner:      runner,
		repomanager: m,
		gateway:     gateway,
		receipts:    issuer,
		log:         log.With("module", "payments"),
	}
}

// ProcessPayment submits amount for an APPROVED rental using the named
// method, in any letter case. The returned payment is SUCCESS or FAILED; a
// FAILED payment can be submitted again. An amount other than the rental
// total is accepted and logged. On success the rental is COMPLETED
// and a PDF receipt is attached.
func (s *Service) ProcessPayment(ctx context.Context, rentalID, methodName string, amount decimal.Decimal) (*models.Payment, error) {
	method, err := models.ParsePaymentMethod(methodName)
	if err != nil {
		return nil, err
	}
	amount = pricing.Round(amount)

	p, err := s.prepare(ctx, rentalID, method, amount)
	if err != nil {
		return nil, err
	}

	settled := s.gateway.Settle(ctx, p.Method, p.Amount)

	// The outcome is recorded even if the caller went away meanwhile.
	ctx = context.WithoutCancel(ctx)

	applied, err := s.apply(ctx, p, settled)
	if err != nil {
		if !errors.Is(err, common.ErrInvalidState) {
			s.abandon(ctx, p, settled, err)
		}
		return nil, err
	}
	p = applied

	if p.Status == models.PaymentSuccess {
		s.log.Info(ctx, "payment settled", "payment_id", p.ID, "rental_id", rentalID, "amount", p.Amount.StringFixed(2), "method", p.Method)
		ref, err := s.issueReceipt(ctx, p.ID)
		if err != nil {
			s.log.Error(ctx, "error issuing receipt", "payment_id", p.ID, "error", err)
		} else {
			p.ReceiptURL = &ref
		}
	} else {
		s.log.Warn(ctx, "payment failed", "payment_id", p.ID, "rental_id", rentalID, "method", p.Method)
	}
	return p, nil
}

// prepare locks the rental and puts its payment into PENDING for this
// attempt, creating it if needed.
func (s *Service) prepare(ctx context.Context, rentalID string, method models.PaymentMethod, amount decimal.Decimal) (*models.Payment, error) {
	var out *models.Payment
	err := s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		payments := s.repomanager.Payments(tx)

		r, err := s.repomanager.Rentals(tx).FindForUpdate(ctx, rentalID)
		if err != nil {
			return fmt.Errorf("error finding rental: %w", err)
		}

		p, err := payments.FindByRental(ctx, r.ID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error finding payment: %w", err)
		}
		if p != nil && p.Status == models.PaymentSuccess {
			return common.ErrAlreadySettled
		}
		if r.Status != models.RentalApproved {
			return fmt.Errorf("%w: rental is %s", common.ErrInvalidState, r.Status)
		}
		if !amount.Equal(r.TotalAmount) {
			s.log.Warn(ctx, "payment amount differs from rental total", "rental_id", r.ID,
				"amount", amount.StringFixed(2), "total", r.TotalAmount.StringFixed(2))
		}

		if p == nil {
			out, err = payments.Create(ctx, &models.Payment{
				RentalRequestID: r.ID,
				Amount:          amount,
				Method:          method,
				Status:          models.PaymentPending,
			})
			if err != nil {
				return fmt.Errorf("error creating payment: %w", err)
			}
			return nil
		}

		ok, err := payments.Reset(ctx, p.ID, amount, method)
		if err != nil {
			return fmt.Errorf("error resetting payment: %w", err)
		}
		if !ok {
			return common.ErrAlreadySettled
		}
		p.Amount, p.Method, p.Status = amount, method, models.PaymentPending
		out = p
		return nil
	})
	return out, err
}

// apply records the settlement outcome and completes the rental on success.
func (s *Service) apply(ctx context.Context, attempt *models.Payment, settled bool) (*models.Payment, error) {
	var out *models.Payment
	err := s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		payments := s.repomanager.Payments(tx)
		rentals := s.repomanager.Rentals(tx)

		p, err := payments.FindForUpdate(ctx, attempt.ID)
		if err != nil {
			return fmt.Errorf("error finding payment: %w", err)
		}
		if p.Status != models.PaymentPending || !p.Amount.Equal(attempt.Amount) {
			return fmt.Errorf("%w: payment changed during settlement", common.ErrInvalidState)
		}

		to := models.PaymentFailed
		if settled {
			to = models.PaymentSuccess
		}
		ok, err := payments.UpdateStatus(ctx, p.ID, models.PaymentPending, to)
		if err != nil {
			return fmt.Errorf("error updating payment: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: payment changed during settlement", common.ErrInvalidState)
		}
		p.Status = to

		if settled {
			ok, err := rentals.UpdateStatus(ctx, p.RentalRequestID, models.RentalApproved, models.RentalCompleted)
			if err != nil {
				return fmt.Errorf("error completing rental: %w", err)
			}
			if !ok {
				// the expiry sweep may have completed it first
				r, err := rentals.Find(ctx, p.RentalRequestID)
				if err != nil {
					return fmt.Errorf("error finding rental: %w", err)
				}
				if r.Status != models.RentalCompleted {
					return fmt.Errorf("%w: rental is %s", common.ErrInvalidState, r.Status)
				}
			}
		}

		out = p
		return nil
	})
	return out, err
}

// abandon fails an attempt whose outcome could not be recorded so it does
// not stay PENDING. A later ProcessPayment may retry it.
func (s *Service) abandon(ctx context.Context, p *models.Payment, settled bool, cause error) {
	s.log.Error(ctx, "error recording settlement", "payment_id", p.ID, "settled", settled, "error", cause)
	if _, err := s.repomanager.Payments(s.db).UpdateStatus(ctx, p.ID, models.PaymentPending, models.PaymentFailed); err != nil {
		s.log.Error(ctx, "error failing payment", "payment_id", p.ID, "error", err)
	}
}

// GetPayment returns the payment with its rental, vehicle and customer data.
func (s *Service) GetPayment(ctx context.Context, paymentID string) (*models.PaymentDetails, error) {
	d, err := s.repomanager.Payments(s.db).FindDetails(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("error finding payment: %w", err)
	}
	return d, nil
}

// DownloadReceipt returns a link to the receipt of a SUCCESS payment,
// generating the receipt first if it does not exist yet. format is "pdf"
// (the default) or "json".
func (s *Service) DownloadReceipt(ctx context.Context, paymentID, format string) (*Receipt, error) {
	f, err := receipts.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	d, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if d.Status != models.PaymentSuccess {
		return nil, fmt.Errorf("%w: payment is %s", common.ErrInvalidState, d.Status)
	}

	var ref string
	switch {
	case f == receipts.FormatPDF && d.ReceiptURL != nil:
		ref = *d.ReceiptURL
	case f == receipts.FormatPDF:
		ref, err = s.issueReceipt(ctx, d.ID)
	default:
		ref, err = s.receipts.Generate(ctx, d, f)
	}
	if err != nil {
		return nil, fmt.Errorf("error generating receipt: %w", err)
	}

	url, err := s.receipts.URL(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("error signing receipt url: %w", err)
	}
	return &Receipt{PaymentID: d.ID, Format: f, Reference: ref, URL: url}, nil
}

// issueReceipt stores the PDF receipt and records its reference once.
func (s *Service) issueReceipt(ctx context.Context, paymentID string) (string, error) {
	payments := s.repomanager.Payments(s.db)

	d, err := payments.FindDetails(ctx, paymentID)
	if err != nil {
		return "", err
	}
	if d.ReceiptURL != nil {
		return *d.ReceiptURL, nil
	}

	ref, err := s.receipts.Generate(ctx, d, receipts.FormatPDF)
	if err != nil {
		return "", err
	}
	ok, err := payments.SetReceipt(ctx, paymentID, ref)
	if err != nil {
		return "", err
	}
	if !ok {
		p, err := payments.Find(ctx, paymentID)
		if err != nil {
			return "", err
		}
		if p.ReceiptURL != nil {
			return *p.ReceiptURL, nil
		}
	}
	return ref, nil
}
