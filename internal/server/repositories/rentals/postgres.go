package rentals

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

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

const rentalColumns = `r.id, r.vehicle_id, r.customer_id, r.start_date, r.end_date, r.total_amount, r.status, r.created_at, r.updated_at`

const detailsFrom = `
		SELECT ` + rentalColumns + `,
			v.title, v.store_id, s.owner_id, v.rent_per_day, v.rent_per_month, u.name, u.email,
			p.id, p.amount, p.method, p.status, p.receipt_url, p.created_at, p.updated_at
		FROM rental_requests r
		JOIN vehicles v ON v.id = r.vehicle_id
		JOIN stores s ON s.id = v.store_id
		JOIN users u ON u.id = r.customer_id
		LEFT JOIN payments p ON p.rental_request_id = r.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanRental(row scanner) (*models.RentalRequest, error) {
	r := &models.RentalRequest{}
	err := row.Scan(&r.ID, &r.VehicleID, &r.CustomerID, &r.StartDate, &r.EndDate,
		&r.TotalAmount, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func scanDetails(row scanner) (*models.RentalDetails, error) {
	d := &models.RentalDetails{}
	var (
		payID, payMethod, payStatus, receipt sql.NullString
		payAmount                            decimal.NullDecimal
		payCreated, payUpdated               sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.VehicleID, &d.CustomerID, &d.StartDate, &d.EndDate,
		&d.TotalAmount, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.VehicleTitle, &d.StoreID, &d.OwnerID, &d.DayRate, &d.MonthRate, &d.CustomerName, &d.CustomerEmail,
		&payID, &payAmount, &payMethod, &payStatus, &receipt, &payCreated, &payUpdated,
	)
	if err != nil {
		return nil, err
	}
	if payID.Valid {
		p := &models.Payment{
			ID:              payID.String,
			RentalRequestID: d.ID,
			Amount:          payAmount.Decimal,
			Method:          models.PaymentMethod(payMethod.String),
			Status:          models.PaymentStatus(payStatus.String),
			CreatedAt:       payCreated.Time,
			UpdatedAt:       payUpdated.Time,
		}
		if receipt.Valid {
			ref := receipt.String
			p.ReceiptURL = &ref
		}
		d.Payment = p
	}
	return d, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rental *models.RentalRequest) (*models.RentalRequest, error) {
	query := `
		INSERT INTO rental_requests (vehicle_id, customer_id, start_date, end_date, total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		rental.VehicleID, rental.CustomerID, rental.StartDate, rental.EndDate, rental.TotalAmount, rental.Status,
	).Scan(&rental.ID, &rental.CreatedAt, &rental.UpdatedAt)
	if err != nil {
		return nil, dbx.TranslateError(err)
	}
	return rental, nil
}

func (r *PostgresRepository) Find(ctx context.Context, id string) (*models.RentalRequest, error) {
	query := `SELECT ` + rentalColumns + `
		FROM rental_requests r
		WHERE r.id = $1`
	rental, err := scanRental(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, dbx.TranslateError(err)
	}
	return rental, nil
}

func (r *PostgresRepository) FindForUpdate(ctx context.Context, id string) (*models.RentalRequest, error) {
	query := `SELECT ` + rentalColumns + `
		FROM rental_requests r
		WHERE r.id = $1
		FOR UPDATE`
	rental, err := scanRental(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, dbx.TranslateError(err)
	}
	return rental, nil
}

func (r *PostgresRepository) FindDetails(ctx context.Context, id string) (*models.RentalDetails, error) {
	d, err := scanDetails(r.db.QueryRowContext(ctx, detailsFrom+`
		WHERE r.id = $1`, id))
	if err != nil {
		return nil, dbx.TranslateError(err)
	}
	return d, nil
}

func (r *PostgresRepository) ListByCustomer(ctx context.Context, customerID string, page models.Page) ([]models.RentalDetails, int, error) {
	return r.listDetails(ctx,
		`SELECT count(*) FROM rental_requests r WHERE r.customer_id = $1`,
		`WHERE r.customer_id = $1`,
		customerID, page)
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string, page models.Page) ([]models.RentalDetails, int, error) {
	return r.listDetails(ctx,
		`SELECT count(*) FROM rental_requests r
		JOIN vehicles v ON v.id = r.vehicle_id
		JOIN stores s ON s.id = v.store_id
		WHERE s.owner_id = $1`,
		`WHERE s.owner_id = $1`,
		ownerID, page)
}

func (r *PostgresRepository) listDetails(ctx context.Context, countQuery, where, id string, page models.Page) ([]models.RentalDetails, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, id).Scan(&total); err != nil {
		return nil, 0, dbx.TranslateError(err)
	}

	query := detailsFrom + `
		` + where + `
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, id, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, dbx.TranslateError(err)
	}
	defer rows.Close()

	out := make([]models.RentalDetails, 0, page.Limit)
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, 0, dbx.TranslateError(err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbx.TranslateError(err)
	}
	return out, total, nil
}

func (r *PostgresRepository) FindOverlapping(ctx context.Context, vehicleID string, start, end time.Time, statuses ...models.RentalStatus) ([]models.RentalRequest, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	args := []any{vehicleID, start, end}
	placeholders := make([]string, len(statuses))
	for i, s := range statuses {
		args = append(args, string(s))
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT ` + rentalColumns + `
		FROM rental_requests r
		WHERE r.vehicle_id = $1
		AND r.start_date <= $3
		AND r.end_date >= $2
		AND r.status IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY r.start_date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.TranslateError(err)
	}
	return collectRentals(rows)
}

func collectRentals(rows *sql.Rows) ([]models.RentalRequest, error) {
	defer rows.Close()

	var out []models.RentalRequest
	for rows.Next() {
		rental, err := scanRental(rows)
		if err != nil {
			return nil, dbx.TranslateError(err)
		}
		out = append(out, *rental)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.TranslateError(err)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.RentalStatus) (bool, error) {
	query := `
		UPDATE rental_requests SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`
	return r.execAffected(ctx, query, id, string(from), string(to))
}

func (r *PostgresRepository) Extend(ctx context.Context, id string, oldEnd, newEnd time.Time, total decimal.Decimal) (bool, error) {
	query := `
		UPDATE rental_requests SET end_date = $3, total_amount = $4, updated_at = now()
		WHERE id = $1 AND status = 'APPROVED' AND end_date = $2
	`
	return r.execAffected(ctx, query, id, oldEnd, newEnd, total)
}

func (r *PostgresRepository) ListExpired(ctx context.Context, now time.Time) ([]models.RentalRequest, error) {
	query := `SELECT ` + rentalColumns + `
		FROM rental_requests r
		WHERE r.status = 'APPROVED' AND r.end_date < $1
		ORDER BY r.end_date`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, dbx.TranslateError(err)
	}
	return collectRentals(rows)
}

func (r *PostgresRepository) CompleteExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE rental_requests SET status = 'COMPLETED', updated_at = now()
		WHERE id = $1 AND status = 'APPROVED' AND end_date < $2
	`
	return r.execAffected(ctx, query, id, now)
}

func (r *PostgresRepository) ListReminderTargets(ctx context.Context, from, to time.Time) ([]models.ReminderTarget, error) {
	query := `
		SELECT r.id, u.email, u.name, v.title, r.end_date
		FROM rental_requests r
		JOIN vehicles v ON v.id = r.vehicle_id
		JOIN users u ON u.id = r.customer_id
		WHERE r.status = 'APPROVED' AND r.end_date >= $1 AND r.end_date <= $2
		ORDER BY r.end_date`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, dbx.TranslateError(err)
	}
	defer rows.Close()

	var out []models.ReminderTarget
	for rows.Next() {
		var t models.ReminderTarget
		if err := rows.Scan(&t.RentalID, &t.CustomerEmail, &t.CustomerName, &t.VehicleTitle, &t.EndDate); err != nil {
			return nil, dbx.TranslateError(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.TranslateError(err)
	}
	return out, nil
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
