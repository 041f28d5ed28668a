package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vehiclerent/internal/dbx"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/payments"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/rentals"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/vehicles"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code runs against a *sql.DB or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Vehicles(db dbx.DBTX) vehicles.Repository
	Rentals(db dbx.DBTX) rentals.Repository
	Payments(db dbx.DBTX) payments.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
