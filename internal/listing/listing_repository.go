package listing

import (
	"context"
	"fmt"

	"farmfleet/internal/repository"
	"farmfleet/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

type ListingRepository struct {
	store *repository.Store
}

func NewRepository(store *repository.Store) *ListingRepository {
	return &ListingRepository{store: store}
}

// BatchRecords returns every code of the batch joined with its farm and
// print-run allocation, unpaginated.
func (r *ListingRepository) BatchRecords(ctx context.Context, dbc repository.DatabaseContext, batchID int64) ([]models.BatchQRCodeRecord, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	var records []models.BatchQRCodeRecord
	if err := batchRecordsQuery(repo.GoquDBWrapper, batchID).ScanStructsContext(ctx, &records); err != nil {
		return nil, fmt.Errorf("unable to select batch codes: %w", err)
	}
	return records, nil
}

func batchRecordsQuery(q repository.Querier, batchID int64) *goqu.SelectDataset {
	return q.From(goqu.T("qr_codes").As("q")).
		Select(
			goqu.I("q.id").As("id"),
			goqu.I("q.uuid").As("uuid"),
			goqu.I("q.short_code").As("short_code"),
			goqu.I("q.status").As("status"),
			goqu.I("q.print_position").As("print_position"),
			goqu.I("q.farm_id").As("farm_id"),
			goqu.I("f.name").As("farm_name"),
			goqu.I("q.asset_type").As("asset_type"),
			goqu.I("q.asset_id").As("asset_id"),
			goqu.I("q.bound_at").As("bound_at"),
			goqu.I("a.allocated_at").As("allocated_at"),
			goqu.I("a.notes").As("allocation_notes"),
			goqu.I("q.metadata").As("metadata"),
			goqu.I("q.created_at").As("created_at"),
		).
		LeftJoin(goqu.T("farms").As("f"), goqu.On(goqu.I("f.id").Eq(goqu.I("q.farm_id")))).
		LeftJoin(goqu.T("qr_allocations").As("a"), goqu.On(goqu.I("a.qr_code_id").Eq(goqu.I("q.id")))).
		Where(goqu.I("q.batch_id").Eq(batchID)).
		Order(goqu.I("q.print_position").Asc())
}
