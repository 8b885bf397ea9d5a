package farms

import (
	"context"
	"fmt"

	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

// FarmRepository reads farms owned by the farm service.
type FarmRepository struct {
	store *repository.Store
}

func NewRepository(store *repository.Store) *FarmRepository {
	return &FarmRepository{store: store}
}

func (r *FarmRepository) GetFarm(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.Farm, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	var farm models.Farm
	found, err := repo.GoquDBWrapper.
		From("farms").
		Select("id", "name", "status").
		Where(goqu.Ex{"id": id}).
		Executor().
		ScanStructContext(ctx, &farm)
	if err != nil {
		return nil, fmt.Errorf("unable to select farm from database: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &farm, nil
}

// RequireActive loads the farm and fails unless it exists and is active.
func RequireActive(ctx context.Context, farms Reader, dbc repository.DatabaseContext, id int64) (*models.Farm, error) {
	farm, err := farms.GetFarm(ctx, dbc, id)
	if err != nil {
		return nil, custom_error.As(err)
	}
	if farm == nil {
		return nil, custom_error.NotFound(custom_error.CodeFarmNotFound, fmt.Sprintf("farm %d not found", id))
	}
	if !farm.IsActive() {
		return nil, custom_error.Conflict(custom_error.CodeFarmInactive, fmt.Sprintf("farm %d is not active", id))
	}
	return farm, nil
}

type Reader interface {
	GetFarm(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.Farm, error)
}
