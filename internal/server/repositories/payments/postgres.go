package payments

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vehiclerent/internal/dbx"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/shopspring/decimal"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const paymentColumns = `p.id, p.rental_request_id, p.amount, p.method, p.status, p.receipt_url, p.created_at, p.updated_at`

func scanPayment(row *sql.Row, extra ...any) (*models.Payment, error) {
	p := &models.Payment{}
	var receipt sql.NullString
	dest := append([]any{&p.ID, &p.RentalRequestID, &p.Amount, &p.Method, &p.Status, &receipt, &p.CreatedAt, &p.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, dbx.TranslateError(err)
	}
	if receipt.Valid {
		p.ReceiptURL = &receipt.String
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	query := `
		INSERT INTO payments (rental_request_id, amount, method, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, p.RentalRequestID, p.Amount, string(p.Method), string(p.Status)).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, dbx.TranslateError(err)
	}
	return p, nil
}

func (r *PostgresRepository) Find(ctx context.Context, id string) (*models.Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+`
		FROM payments p
		WHERE p.id = $1`, id))
}

func (r *PostgresRepository) FindByRental(ctx context.Context, rentalID string) (*models.Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+`
		FROM payments p
		WHERE p.rental_request_id = $1`, rentalID))
}

func (r *PostgresRepository) FindForUpdate(ctx context.Context, id string) (*models.Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+`
		FROM payments p
		WHERE p.id = $1
		FOR UPDATE`, id))
}

func (r *PostgresRepository) FindDetails(ctx context.Context, id string) (*models.PaymentDetails, error) {
	query := `SELECT ` + paymentColumns + `,
			r.status, r.customer_id, u.name, u.email, r.vehicle_id, v.title, r.start_date, r.end_date
		FROM payments p
		JOIN rental_requests r ON r.id = p.rental_request_id
		JOIN vehicles v ON v.id = r.vehicle_id
		JOIN users u ON u.id = r.customer_id
		WHERE p.id = $1`

	d := &models.PaymentDetails{}
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id),
		&d.RentalStatus, &d.CustomerID, &d.CustomerName, &d.CustomerEmail,
		&d.VehicleID, &d.VehicleTitle, &d.StartDate, &d.EndDate)
	if err != nil {
		return nil, err
	}
	d.Payment = *p
	return d, nil
}

func (r *PostgresRepository) Reset(ctx context.Context, id string, amount decimal.Decimal, method models.PaymentMethod) (bool, error) {
	query := `
		UPDATE payments SET amount = $2, method = $3, status = 'PENDING', updated_at = now()
		WHERE id = $1 AND status <> 'SUCCESS'
	`
	return r.execAffected(ctx, query, id, amount, string(method))
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.PaymentStatus) (bool, error) {
	query := `
		UPDATE payments SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`
	return r.execAffected(ctx, query, id, string(from), string(to))
}

func (r *PostgresRepository) SetReceipt(ctx context.Context, id, ref string) (bool, error) {
	query := `
		UPDATE payments SET receipt_url = $2, updated_at = now()
		WHERE id = $1 AND receipt_url IS NULL
	`
	return r.execAffected(ctx, query, id, ref)
}

func (r *PostgresRepository) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, dbx.TranslateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbx.TranslateError(err)
	}
	return n > 0, nil
}
