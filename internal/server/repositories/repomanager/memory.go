package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vehiclerent/internal/dbx"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/memory"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/payments"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/rentals"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/vehicles"
)

// MemoryRepositoryManager serves every repository from one memory.Store. The
// DBTX arguments are ignored; pair it with the store itself as dbx.Runner.
type MemoryRepositoryManager struct {
	store *memory.Store
}

// NewMemoryRepositoryManager wraps store.
func NewMemoryRepositoryManager(store *memory.Store) *MemoryRepositoryManager {
	return &MemoryRepositoryManager{store: store}
}

// RunMigrations is a no-op: the store has no schema.
func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Vehicles(dbx.DBTX) vehicles.Repository {
	return m.store.Vehicles()
}

func (m *MemoryRepositoryManager) Rentals(dbx.DBTX) rentals.Repository {
	return m.store.Rentals()
}

func (m *MemoryRepositoryManager) Payments(dbx.DBTX) payments.Repository {
	return m.store.Payments()
}

func (m *MemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.store.RefreshTokens()
}
