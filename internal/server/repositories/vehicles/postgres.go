package vehicles

import (
	"context"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/dbx"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
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

const selectVehicle = `
		SELECT v.id, v.store_id, s.owner_id, v.title, v.rent_per_day, v.rent_per_month, v.is_available
		FROM vehicles v
		JOIN stores s ON s.id = v.store_id
		WHERE v.id = $1`

func (r *PostgresRepository) Create(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	query := `
		INSERT INTO vehicles (store_id, title, rent_per_day, rent_per_month, is_available)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, v.StoreID, v.Title, v.DayRate, v.MonthRate, v.IsAvailable).Scan(&v.ID); err != nil {
		return nil, dbx.TranslateError(err)
	}
	return v, nil
}

func (r *PostgresRepository) Find(ctx context.Context, id string) (*models.Vehicle, error) {
	return r.find(ctx, selectVehicle, id)
}

func (r *PostgresRepository) FindForUpdate(ctx context.Context, id string) (*models.Vehicle, error) {
	return r.find(ctx, selectVehicle+`
		FOR UPDATE OF v`, id)
}

func (r *PostgresRepository) find(ctx context.Context, query, id string) (*models.Vehicle, error) {
	v := &models.Vehicle{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.StoreID, &v.OwnerID, &v.Title, &v.DayRate, &v.MonthRate, &v.IsAvailable)
	if err != nil {
		return nil, dbx.TranslateError(err)
	}
	return v, nil
}

func (r *PostgresRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	query := `
		UPDATE vehicles SET is_available = $2
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, available)
	if err != nil {
		return dbx.TranslateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.TranslateError(err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
