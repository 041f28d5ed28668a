package memory

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/vehiclerent/internal/common"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/vehicles"
	"github.com/google/uuid"
)

type VehicleRepository struct {
	s *Store
}

var _ vehicles.Repository = (*VehicleRepository)(nil)

func (r *VehicleRepository) Create(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	defer r.s.lock(ctx)()

	st, ok := r.s.data.stores[v.StoreID]
	if !ok {
		return nil, fmt.Errorf("store %s: %w", v.StoreID, common.ErrorNotFound)
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.OwnerID = st.OwnerID
	r.s.data.vehicles[v.ID] = *v
	return v, nil
}

func (r *VehicleRepository) Find(ctx context.Context, id string) (*models.Vehicle, error) {
	defer r.s.lock(ctx)()

	v, ok := r.s.data.vehicles[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &v, nil
}

func (r *VehicleRepository) FindForUpdate(ctx context.Context, id string) (*models.Vehicle, error) {
	return r.Find(ctx, id)
}

func (r *VehicleRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	defer r.s.lock(ctx)()

	v, ok := r.s.data.vehicles[id]
	if !ok {
		return common.ErrorNotFound
	}
	v.IsAvailable = available
	r.s.data.vehicles[id] = v
	return nil
}
