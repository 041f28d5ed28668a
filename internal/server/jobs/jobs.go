// Package jobs holds the recurring maintenance tasks run by the scheduler.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/dbx"
	"github.com/dmitrijs2005/vehiclerent/internal/logging"
	"github.com/dmitrijs2005/vehiclerent/internal/server/notify"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vehiclerent/internal/server/scheduler"
	"github.com/dmitrijs2005/vehiclerent/internal/timex"
)

const (
	TypeCleanupTokens   = "cleanup-expired-tokens"
	TypeCompleteExpired = "complete-expired-rentals"
	TypeSendReminders   = "send-rental-reminders"
)

// DefaultReminderWindow is how far ahead reminders look for ending rentals.
const DefaultReminderWindow = 3 * 24 * time.Hour

// Expirer completes approved rentals whose end date has passed.
type Expirer interface {
	CompleteExpired(ctx context.Context) (int, error)
}

// Registrar is the part of the scheduler the tasks are registered with.
type Registrar interface {
	Register(jobType string, h scheduler.Handler)
	Every(jobType string, every time.Duration) error
}

type Intervals struct {
	TokenCleanup time.Duration
	ExpirySweep  time.Duration
	Reminders    time.Duration
}

type Jobs struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	expirer     Expirer
	notifier    notify.Notifier
	deduper     notify.Deduper
	clock       timex.Clock
	window      time.Duration
	log         logging.Logger
}

func New(db dbx.DBTX, m repomanager.RepositoryManager, expirer Expirer, n notify.Notifier, d notify.Deduper, clock timex.Clock, window time.Duration, log logging.Logger) *Jobs {
	if window <= 0 {
		window = DefaultReminderWindow
	}
	return &Jobs{
		db:          db,
		repomanager: m,
		expirer:     expirer,
		notifier:    n,
		deduper:     d,
		clock:       clock,
		window:      window,
		log:         log.With("module", "jobs"),
	}
}

// Register adds the three tasks to r with their own intervals.
func (j *Jobs) Register(r Registrar, iv Intervals) error {
	tasks := []struct {
		jobType string
		every   time.Duration
		h       scheduler.Handler
	}{
		{TypeCleanupTokens, iv.TokenCleanup, j.CleanupExpiredTokens},
		{TypeCompleteExpired, iv.ExpirySweep, j.CompleteExpiredRentals},
		{TypeSendReminders, iv.Reminders, j.SendReminders},
	}
	for _, t := range tasks {
		r.Register(t.jobType, t.h)
		if err := r.Every(t.jobType, t.every); err != nil {
			return err
		}
	}
	return nil
}

func (j *Jobs) CleanupExpiredTokens(ctx context.Context, job scheduler.Job) error {
	n, err := j.repomanager.RefreshTokens(j.db).DeleteExpired(ctx, j.clock.Now())
	if err != nil {
		return fmt.Errorf("error deleting expired tokens: %w", err)
	}
	j.log.Info(ctx, "expired tokens deleted", "job_id", job.ID, "count", n)
	return nil
}

func (j *Jobs) CompleteExpiredRentals(ctx context.Context, job scheduler.Job) error {
	n, err := j.expirer.CompleteExpired(ctx)
	if n > 0 {
		j.log.Info(ctx, "expired rentals completed", "job_id", job.ID, "count", n)
	}
	return err
}

// SendReminders notifies customers whose approved rental ends within the
// reminder window. Each rental is reminded at most once a day; a failed
// reminder is logged and released so a retry sends it again.
func (j *Jobs) SendReminders(ctx context.Context, job scheduler.Job) error {
	now := j.clock.Now()
	targets, err := j.repomanager.Rentals(j.db).ListReminderTargets(ctx, now, now.Add(j.window))
	if err != nil {
		return fmt.Errorf("error listing reminder targets: %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, t := range targets {
		first, err := j.deduper.Claim(ctx, t.RentalID, now)
		if err != nil {
			j.log.Error(ctx, "error claiming reminder", "rental_id", t.RentalID, "error", err)
			errs = append(errs, fmt.Errorf("rental %s: %w", t.RentalID, err))
			continue
		}
		if !first {
			continue
		}

		if err := j.notifier.SendReminder(ctx, t); err != nil {
			j.log.Error(ctx, "error sending reminder", "rental_id", t.RentalID, "error", err)
			errs = append(errs, fmt.Errorf("rental %s: %w", t.RentalID, err))
			if err := j.deduper.Release(ctx, t.RentalID, now); err != nil {
				j.log.Warn(ctx, "error releasing reminder claim", "rental_id", t.RentalID, "error", err)
			}
			continue
		}
		sent++
	}

	j.log.Info(ctx, "reminders sent", "job_id", job.ID, "count", sent, "failed", len(errs))
	return errors.Join(errs...)
}
