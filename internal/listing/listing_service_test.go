package listing

import (
	"context"
	"testing"
	"time"

	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var dbc = repository.DatabaseContext{Environment: "test"}

type staticStore map[int64][]models.BatchQRCodeRecord

func (s staticStore) BatchRecords(_ context.Context, _ repository.DatabaseContext, batchID int64) ([]models.BatchQRCodeRecord, error) {
	out := make([]models.BatchQRCodeRecord, len(s[batchID]))
	copy(out, s[batchID])
	return out, nil
}

type staticBatches map[int64]models.ProductionBatch

func (b staticBatches) GetBatch(_ context.Context, _ repository.DatabaseContext, id int64) (*models.ProductionBatch, error) {
	batch, ok := b[id]
	if !ok {
		return nil, nil
	}
	return &batch, nil
}

func ptr[T any](v T) *T {
	return &v
}

func record(position int, farm *string, status metadata.QRStatus) models.BatchQRCodeRecord {
	return models.BatchQRCodeRecord{
		ID:            int64(100 + position),
		ShortCode:     "FF-" + string(rune('Z'-position)),
		Status:        status,
		PrintPosition: ptr(position),
		FarmName:      farm,
		CreatedAt:     time.Date(2023, 11, 14, 9, 0, 0, 0, time.UTC),
	}
}

// Stored out of print order on purpose.
func fixtureLister() *Lister {
	bound := time.Date(2023, 11, 20, 0, 0, 0, 0, time.UTC)
	records := []models.BatchQRCodeRecord{
		record(4, ptr("beta"), metadata.QRStatusAllocated),
		record(2, nil, metadata.QRStatusAvailable),
		record(6, ptr("Alpha"), metadata.QRStatusBound),
		record(1, ptr("Alpha"), metadata.QRStatusAllocated),
		record(5, ptr(""), metadata.QRStatusAvailable),
		record(3, ptr("Éclair Farm"), metadata.QRStatusAllocated),
		record(7, ptr("zeta"), metadata.QRStatusDelivered),
	}
	records[2].BoundAt = &bound

	return NewLister(
		staticStore{1: records},
		staticBatches{1: {ID: 1, BatchCode: "PB-20231114-0001", Quantity: 7}},
		zap.NewNop(),
	)
}

func positions(records []models.BatchQRCodeRecord) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = *r.PrintPosition
	}
	return out
}

func TestPrintPositionStrictlyIncreasesAcrossPages(t *testing.T) {
	lister := fixtureLister()

	var all []int
	for page := 1; page <= 3; page++ {
		listing, err := lister.ListBatchCodes(context.Background(), dbc, 1, models.BatchListingQuery{Page: page, Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, 7, listing.Pagination.Total)
		assert.Equal(t, 3, listing.Pagination.TotalPages)
		all = append(all, positions(listing.Data)...)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, all)
}

func TestFarmSortPutsMissingNamesFirst(t *testing.T) {
	lister := fixtureLister()

	listing, err := lister.ListBatchCodes(context.Background(), dbc, 1, models.BatchListingQuery{Sort: "farm"})
	require.NoError(t, err)

	// Missing names tie on print position, then locale order ignores case.
	assert.Equal(t, []int{2, 5, 1, 6, 4, 3, 7}, positions(listing.Data))
	assert.Equal(t, "farm", listing.Sort)
	assert.Equal(t, "asc", listing.Order)
}

func TestDescendingKeepsPrintOrderOnTies(t *testing.T) {
	lister := fixtureLister()

	listing, err := lister.ListBatchCodes(context.Background(), dbc, 1, models.BatchListingQuery{Sort: "status", Order: "DESC"})
	require.NoError(t, err)

	// delivered > bound > available > allocated
	assert.Equal(t, []int{7, 6, 2, 5, 1, 3, 4}, positions(listing.Data))
}

func TestBoundAtSortTreatsNullAsMinimal(t *testing.T) {
	lister := fixtureLister()

	listing, err := lister.ListBatchCodes(context.Background(), dbc, 1, models.BatchListingQuery{Sort: "bound_at", Order: "desc", Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, []int{6, 1}, positions(listing.Data))
}

func TestPageBeyondEndIsEmpty(t *testing.T) {
	lister := fixtureLister()

	listing, err := lister.ListBatchCodes(context.Background(), dbc, 1, models.BatchListingQuery{Page: 9, Limit: 5})
	require.NoError(t, err)

	assert.Empty(t, listing.Data)
	assert.Equal(t, 7, listing.Pagination.Total)
}

func TestHugePageIsRejectedWithoutOverflow(t *testing.T) {
	lister := fixtureLister()

	var err error
	assert.NotPanics(t, func() {
		_, err = lister.ListBatchCodes(context.Background(), dbc, 1, models.BatchListingQuery{Page: 1<<62 + 1, Limit: 3})
	})
	assert.True(t, custom_error.IsCode(err, custom_error.CodeValidation))

	listing, err := lister.ListBatchCodes(context.Background(), dbc, 1, models.BatchListingQuery{Page: models.MaxPage, Limit: models.MaxPageLimit})
	require.NoError(t, err)
	assert.Empty(t, listing.Data)
}

func TestListBatchCodesValidation(t *testing.T) {
	lister := fixtureLister()

	cases := []models.BatchListingQuery{
		{Page: -1},
		{Page: models.MaxPage + 1},
		{Limit: 501},
		{Limit: -3},
		{Sort: "uuid"},
		{Order: "sideways"},
	}
	for _, query := range cases {
		_, err := lister.ListBatchCodes(context.Background(), dbc, 1, query)
		assert.True(t, custom_error.IsCode(err, custom_error.CodeValidation), "%+v", query)
	}

	_, err := lister.ListBatchCodes(context.Background(), dbc, 2, models.BatchListingQuery{})
	assert.True(t, custom_error.IsCode(err, custom_error.CodeBatchNotFound))
}

func TestAllBatchCodesInPrintOrder(t *testing.T) {
	lister := fixtureLister()

	batch, records, err := lister.AllBatchCodes(context.Background(), dbc, 1)
	require.NoError(t, err)

	assert.Equal(t, "PB-20231114-0001", batch.BatchCode)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, positions(records))
}
