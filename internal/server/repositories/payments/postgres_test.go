package payments

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var (
	paymentCols = []string{"id", "rental_request_id", "amount", "method", "status", "receipt_url", "created_at", "updated_at"}
	t0          = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
)

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+payments\s+\(rental_request_id,\s*amount,\s*method,\s*status\).*RETURNING`).
		WithArgs("r1", "200", "MOCK", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("p1", t0, t0))

	p, err := repo.Create(context.Background(), &models.Payment{
		RentalRequestID: "r1", Amount: decimal.NewFromInt(200), Method: models.MethodMock, Status: models.PaymentPending,
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestCreate_SecondPaymentIsConflict(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+payments`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "payments_rental_request_id_key"})

	_, err := repo.Create(context.Background(), &models.Payment{RentalRequestID: "r1"})
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.Contains(t, err.Error(), "payments_rental_request_id_key")
}

func TestFindByRental(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`WHERE\s+p\.rental_request_id\s*=\s*\$1`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow("p1", "r1", "200.00", "CARD", "FAILED", nil, t0, t0))

	p, err := repo.FindByRental(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, p.Status)
	assert.Equal(t, models.MethodCard, p.Method)
	assert.Nil(t, p.ReceiptURL)

	mock.ExpectQuery(`WHERE\s+p\.rental_request_id`).WithArgs("r2").WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByRental(context.Background(), "r2")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindForUpdate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+payments\s+p\s+WHERE\s+p\.id\s*=\s*\$1\s+FOR\s+UPDATE`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow("p1", "r1", "200", "MOCK", "PENDING", nil, t0, t0))

	p, err := repo.FindForUpdate(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, p.Status)
}

func TestFindDetails(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	cols := append(append([]string{}, paymentCols...),
		"rental_status", "customer_id", "name", "email", "vehicle_id", "title", "start_date", "end_date")
	end := t0.Add(96 * time.Hour)

	mock.ExpectQuery(`(?s)FROM\s+payments\s+p\s+JOIN\s+rental_requests\s+r.*WHERE\s+p\.id\s*=\s*\$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"p1", "r1", "200", "MOCK", "SUCCESS", "receipts/p1.pdf", t0, t0,
			"COMPLETED", "c1", "Ann", "ann@example.com", "v1", "Civic", t0, end))

	d, err := repo.FindDetails(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.RentalCompleted, d.RentalStatus)
	assert.Equal(t, "Civic", d.VehicleTitle)
	assert.Equal(t, end, d.EndDate)
	require.NotNil(t, d.ReceiptURL)
	assert.Equal(t, "receipts/p1.pdf", *d.ReceiptURL)
}

func TestReset_SkipsSettledPayments(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE\s+payments\s+SET\s+amount\s*=\s*\$2,\s*method\s*=\s*\$3,\s*status\s*=\s*'PENDING'.*status\s*<>\s*'SUCCESS'`).
		WithArgs("p1", "300", "CARD").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Reset(context.Background(), "p1", decimal.NewFromInt(300), models.MethodCard)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateStatus(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE\s+payments\s+SET\s+status\s*=\s*\$3.*WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*\$2`).
		WithArgs("p1", "PENDING", "SUCCESS").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStatus(context.Background(), "p1", models.PaymentPending, models.PaymentSuccess)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetReceipt_OnlyOnce(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `(?s)UPDATE\s+payments\s+SET\s+receipt_url\s*=\s*\$2.*receipt_url\s+IS\s+NULL`
	mock.ExpectExec(q).WithArgs("p1", "receipts/p1.pdf").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("p1", "receipts/p1.pdf").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SetReceipt(context.Background(), "p1", "receipts/p1.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetReceipt(context.Background(), "p1", "receipts/p1.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}
