package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/dbx"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/timex"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T) (*Store, *timex.FixedClock, models.Vehicle, models.User) {
	t.Helper()
	clock := timex.NewFixedClock(t0)
	s := NewStore(clock)

	owner := s.AddUser(models.User{Email: "owner@example.com", Name: "Olga"})
	customer := s.AddUser(models.User{Email: "ann@example.com", Name: "Ann"})
	st := s.AddStore(models.Store{OwnerID: owner.ID, Name: "Downtown"})

	v, err := s.Vehicles().Create(context.Background(), &models.Vehicle{
		StoreID: st.ID, Title: "Civic", DayRate: decimal.NewFromInt(50), MonthRate: decimal.NewFromInt(1200), IsAvailable: true,
	})
	require.NoError(t, err)
	return s, clock, *v, customer
}

func newRental(v models.Vehicle, c models.User, start time.Time, days int, status models.RentalStatus) *models.RentalRequest {
	return &models.RentalRequest{
		VehicleID: v.ID, CustomerID: c.ID,
		StartDate: start, EndDate: start.Add(time.Duration(days) * 24 * time.Hour),
		TotalAmount: decimal.NewFromInt(int64(days) * 50), Status: status,
	}
}

func TestVehicleCreate_FlattensOwner(t *testing.T) {
	s, _, v, _ := seed(t)

	got, err := s.Vehicles().Find(context.Background(), v.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.OwnerID)

	_, err = s.Vehicles().Create(context.Background(), &models.Vehicle{StoreID: "missing"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, s.Vehicles().SetAvailability(context.Background(), v.ID, false))
	got, _ = s.Vehicles().Find(context.Background(), v.ID)
	assert.False(t, got.IsAvailable)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()

	var createdID string
	err := s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
		r, err := s.Rentals().Create(ctx, newRental(v, c, t0, 4, models.RentalPending))
		require.NoError(t, err)
		createdID = r.ID
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	_, err = s.Rentals().Find(ctx, createdID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()

	var createdID string
	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
			r, _ := s.Rentals().Create(ctx, newRental(v, c, t0, 4, models.RentalPending))
			createdID = r.ID
			panic("boom")
		})
	})

	_, err := s.Rentals().Find(ctx, createdID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()

	var createdID string
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
		r, err := s.Rentals().Create(ctx, newRental(v, c, t0, 4, models.RentalPending))
		createdID = r.ID
		return err
	}))

	got, err := s.Rentals().Find(ctx, createdID)
	require.NoError(t, err)
	assert.Equal(t, t0, got.CreatedAt)
}

func TestWithTx_CancelledContext(t *testing.T) {
	s, _, _, _ := seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(context.Context, dbx.DBTX) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestWithTx_RollbackKeepsWritesMadeOutside(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()

	expired, err := s.Rentals().Create(ctx, newRental(v, c, t0.Add(-10*24*time.Hour), 4, models.RentalApproved))
	require.NoError(t, err)

	type result struct {
		ok  bool
		err error
	}
	swept := make(chan result, 1)

	err = s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
		_, err := s.Rentals().Create(ctx, newRental(v, c, t0, 2, models.RentalPending))
		require.NoError(t, err)

		go func() {
			ok, err := s.Rentals().CompleteExpired(context.Background(), expired.ID, t0)
			swept <- result{ok, err}
		}()

		select {
		case <-swept:
			t.Fatal("write outside the transaction ran while it was open")
		case <-time.After(50 * time.Millisecond):
		}
		return common.ErrConflict
	})
	require.ErrorIs(t, err, common.ErrConflict)

	res := <-swept
	require.NoError(t, res.err)
	assert.True(t, res.ok)

	got, err := s.Rentals().Find(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalCompleted, got.Status)
}

func TestWithTx_UncommittedRowsAreInvisibleOutside(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()

	found := make(chan error, 1)
	err := s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
		r, err := s.Rentals().Create(ctx, newRental(v, c, t0, 2, models.RentalPending))
		require.NoError(t, err)

		go func() {
			_, err := s.Rentals().Find(context.Background(), r.ID)
			found <- err
		}()
		time.Sleep(20 * time.Millisecond)
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	assert.ErrorIs(t, <-found, common.ErrorNotFound)
}

func TestWithTx_NestedCallJoinsOuter(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()

	var innerID string
	err := s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
		require.NoError(t, s.WithTx(ctx, func(ctx context.Context, _ dbx.DBTX) error {
			r, err := s.Rentals().Create(ctx, newRental(v, c, t0, 2, models.RentalPending))
			innerID = r.ID
			return err
		}))
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	_, err = s.Rentals().Find(ctx, innerID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRentals_ApprovedOverlapIsRejected(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()
	repo := s.Rentals()

	first, err := repo.Create(ctx, newRental(v, c, t0, 4, models.RentalApproved))
	require.NoError(t, err)

	// Starts the day the first one ends: boundaries are inclusive.
	second, err := repo.Create(ctx, newRental(v, c, first.EndDate, 2, models.RentalPending))
	require.NoError(t, err)

	ok, err := repo.UpdateStatus(ctx, second.ID, models.RentalPending, models.RentalApproved)
	assert.False(t, ok)
	assert.ErrorIs(t, err, common.ErrConflict)

	got, _ := repo.Find(ctx, second.ID)
	assert.Equal(t, models.RentalPending, got.Status)
}

func TestRentals_FindOverlapping(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()
	repo := s.Rentals()

	_, err := repo.Create(ctx, newRental(v, c, t0, 4, models.RentalApproved))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newRental(v, c, t0.Add(10*24*time.Hour), 2, models.RentalPending))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newRental(v, c, t0, 2, models.RentalCancelled))
	require.NoError(t, err)

	got, err := repo.FindOverlapping(ctx, v.ID, t0.Add(24*time.Hour), t0.Add(11*24*time.Hour),
		models.RentalApproved, models.RentalPending)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.RentalApproved, got[0].Status)

	got, err = repo.FindOverlapping(ctx, v.ID, t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRentals_ListByCustomerAndOwner(t *testing.T) {
	s, clock, v, c := seed(t)
	ctx := context.Background()
	repo := s.Rentals()

	var ids []string
	for i := 0; i < 3; i++ {
		r, err := repo.Create(ctx, newRental(v, c, t0.Add(time.Duration(i*10)*24*time.Hour), 2, models.RentalPending))
		require.NoError(t, err)
		ids = append(ids, r.ID)
		clock.Advance(time.Minute)
	}

	items, total, err := repo.ListByCustomer(ctx, c.ID, models.NewPage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, ids[2], items[0].ID)
	assert.Equal(t, ids[1], items[1].ID)
	assert.Equal(t, "Ann", items[0].CustomerName)
	assert.Equal(t, "Civic", items[0].VehicleTitle)

	items, total, err = repo.ListByOwner(ctx, v.OwnerID, models.NewPage(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, ids[0], items[0].ID)

	items, _, err = repo.ListByOwner(ctx, v.OwnerID, models.NewPage(5, 2))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRentals_ExtendRequiresExpectedEnd(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()
	repo := s.Rentals()

	r, err := repo.Create(ctx, newRental(v, c, t0, 4, models.RentalApproved))
	require.NoError(t, err)
	newEnd := r.EndDate.Add(48 * time.Hour)

	ok, err := repo.Extend(ctx, r.ID, t0, newEnd, decimal.NewFromInt(300))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Extend(ctx, r.ID, r.EndDate, newEnd, decimal.NewFromInt(300))
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ := repo.Find(ctx, r.ID)
	assert.Equal(t, newEnd, got.EndDate)
	assert.True(t, decimal.NewFromInt(300).Equal(got.TotalAmount))
}

func TestRentals_ExpiredAndReminders(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()
	repo := s.Rentals()
	now := t0.Add(10 * 24 * time.Hour)

	past, err := repo.Create(ctx, newRental(v, c, t0, 4, models.RentalApproved))
	require.NoError(t, err)
	soon, err := repo.Create(ctx, newRental(v, c, now.Add(-24*time.Hour), 2, models.RentalApproved))
	require.NoError(t, err)

	expired, err := repo.ListExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, past.ID, expired[0].ID)

	ok, err := repo.CompleteExpired(ctx, past.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.CompleteExpired(ctx, past.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.CompleteExpired(ctx, soon.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	targets, err := repo.ListReminderTargets(ctx, now, now.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, soon.ID, targets[0].RentalID)
	assert.Equal(t, "ann@example.com", targets[0].CustomerEmail)
}

func TestPayments_OnePerRental(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()

	r, err := s.Rentals().Create(ctx, newRental(v, c, t0, 4, models.RentalApproved))
	require.NoError(t, err)

	repo := s.Payments()
	p, err := repo.Create(ctx, &models.Payment{RentalRequestID: r.ID, Amount: r.TotalAmount, Method: models.MethodMock, Status: models.PaymentPending})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.Payment{RentalRequestID: r.ID})
	assert.ErrorIs(t, err, common.ErrConflict)

	byRental, err := repo.FindByRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byRental.ID)

	details, err := s.Rentals().FindDetails(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, details.Payment)
	assert.Equal(t, p.ID, details.Payment.ID)
}

func TestPayments_StatusAndReceipt(t *testing.T) {
	s, _, v, c := seed(t)
	ctx := context.Background()

	r, _ := s.Rentals().Create(ctx, newRental(v, c, t0, 4, models.RentalApproved))
	repo := s.Payments()
	p, err := repo.Create(ctx, &models.Payment{RentalRequestID: r.ID, Amount: r.TotalAmount, Method: models.MethodMock, Status: models.PaymentPending})
	require.NoError(t, err)

	ok, err := repo.UpdateStatus(ctx, p.ID, models.PaymentPending, models.PaymentSuccess)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Reset(ctx, p.ID, decimal.NewFromInt(1), models.MethodCard)
	require.NoError(t, err)
	assert.False(t, ok, "settled payments are immutable")

	ok, _ = repo.SetReceipt(ctx, p.ID, "receipts/a.pdf")
	assert.True(t, ok)
	ok, _ = repo.SetReceipt(ctx, p.ID, "receipts/b.pdf")
	assert.False(t, ok)

	d, err := repo.FindDetails(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "receipts/a.pdf", *d.ReceiptURL)
	assert.Equal(t, "Civic", d.VehicleTitle)
	assert.Equal(t, "Ann", d.CustomerName)
}

func TestRefreshTokens_DeleteExpired(t *testing.T) {
	s, _, _, c := seed(t)
	ctx := context.Background()
	repo := s.RefreshTokens()

	require.NoError(t, repo.Create(ctx, &models.RefreshToken{UserID: c.ID, Token: "old", Expires: t0.Add(-time.Hour)}))
	require.NoError(t, repo.Create(ctx, &models.RefreshToken{UserID: c.ID, Token: "new", Expires: t0.Add(time.Hour)}))

	n, err := repo.DeleteExpired(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteExpired(ctx, t0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
