package listing

import (
	"context"
	"fmt"
	"strings"

	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/models"

	"go.uber.org/zap"
)

type Store interface {
	BatchRecords(ctx context.Context, dbc repository.DatabaseContext, batchID int64) ([]models.BatchQRCodeRecord, error)
}

type BatchReader interface {
	GetBatch(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.ProductionBatch, error)
}

// Lister serves batch-scoped code listings. Sorting crosses the farm and
// allocation joins, so the whole batch is loaded and sorted in memory before
// a page is cut. Print runs are small enough for this to hold.
type Lister struct {
	store   Store
	batches BatchReader
	log     *zap.Logger
}

func NewLister(store Store, batches BatchReader, log *zap.Logger) *Lister {
	return &Lister{store: store, batches: batches, log: log}
}

func (l *Lister) ListBatchCodes(ctx context.Context, dbc repository.DatabaseContext, batchID int64, query models.BatchListingQuery) (*models.BatchQRCodeListing, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	batch, records, err := l.load(ctx, dbc, batchID)
	if err != nil {
		return nil, err
	}

	sortRecords(records, query.Sort, query.Order)

	pagination := models.NewPagination(query.Page, query.Limit, len(records))
	start := min(pagination.Offset(), len(records))
	end := start + min(query.Limit, len(records)-start)

	return &models.BatchQRCodeListing{
		Batch:      batch,
		Data:       records[start:end],
		Pagination: pagination,
		Sort:       query.Sort,
		Order:      query.Order,
	}, nil
}

// AllBatchCodes returns the whole batch in print order.
func (l *Lister) AllBatchCodes(ctx context.Context, dbc repository.DatabaseContext, batchID int64) (*models.ProductionBatch, []models.BatchQRCodeRecord, error) {
	batch, records, err := l.load(ctx, dbc, batchID)
	if err != nil {
		return nil, nil, err
	}

	sortRecords(records, SortPrintPosition, OrderAsc)
	return batch, records, nil
}

func (l *Lister) load(ctx context.Context, dbc repository.DatabaseContext, batchID int64) (*models.ProductionBatch, []models.BatchQRCodeRecord, error) {
	batch, err := l.batches.GetBatch(ctx, dbc, batchID)
	if err != nil {
		return nil, nil, custom_error.As(err)
	}
	if batch == nil {
		return nil, nil, custom_error.NotFound(custom_error.CodeBatchNotFound, fmt.Sprintf("production batch %d not found", batchID))
	}

	records, err := l.store.BatchRecords(ctx, dbc, batchID)
	if err != nil {
		l.log.Error("Unable to load batch codes", zap.Int64("batch_id", batchID), zap.Error(err))
		return nil, nil, custom_error.As(err)
	}
	if records == nil {
		records = []models.BatchQRCodeRecord{}
	}
	return batch, records, nil
}

func normalizeQuery(query models.BatchListingQuery) (models.BatchListingQuery, error) {
	if query.Page < 0 || query.Page > models.MaxPage {
		return query, custom_error.Validation(fmt.Sprintf("page must be between 1 and %d", models.MaxPage))
	}
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = models.DefaultPageLimit
	}
	if query.Limit < 1 || query.Limit > models.MaxPageLimit {
		return query, custom_error.Validation(fmt.Sprintf("limit must be between 1 and %d", models.MaxPageLimit))
	}

	query.Sort = strings.ToLower(strings.TrimSpace(query.Sort))
	if query.Sort == "" {
		query.Sort = SortPrintPosition
	}
	if _, ok := comparatorFor(query.Sort); !ok {
		return query, custom_error.Validation(fmt.Sprintf("unsupported sort field %q", query.Sort))
	}

	query.Order = strings.ToLower(strings.TrimSpace(query.Order))
	switch query.Order {
	case "":
		query.Order = OrderAsc
	case OrderAsc, OrderDesc:
	default:
		return query, custom_error.Validation(fmt.Sprintf("order must be %s or %s", OrderAsc, OrderDesc))
	}
	return query, nil
}
