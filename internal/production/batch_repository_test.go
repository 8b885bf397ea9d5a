package production

import (
	"database/sql"
	"testing"
	"time"

	"farmfleet/internal/repository"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqlBuilder(t *testing.T) repository.Querier {
	t.Helper()

	db, err := sql.Open("postgres", "postgres://localhost/farmfleet?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return repository.NewRepository(db).GoquDBWrapper
}

func TestStatusUpdateQueryIsConditional(t *testing.T) {
	query, err := statusUpdateQuery(sqlBuilder(t), BatchTransition{
		BatchID: 3,
		From:    metadata.BatchStatusOrdered,
		To:      metadata.BatchStatusPrinting,
	})
	require.NoError(t, err)

	rendered, _, err := query.ToSQL()
	require.NoError(t, err)

	assert.Contains(t, rendered, `UPDATE "production_batches" SET`)
	assert.Contains(t, rendered, `"status"='printing'`)
	assert.Contains(t, rendered, `"id" = 3`)
	assert.Contains(t, rendered, `"status" = 'ordered'`)
	assert.NotContains(t, rendered, `"metadata"=`)
}

func TestStatusUpdateQueryMergesDefectLedger(t *testing.T) {
	query, err := statusUpdateQuery(sqlBuilder(t), BatchTransition{
		BatchID: 3,
		From:    metadata.BatchStatusPrinting,
		To:      metadata.BatchStatusReceived,
		Ledger: &models.DefectLedger{
			Count:      1,
			Positions:  []int{2},
			ShortCodes: []string{},
			QRIDs:      []int64{12},
			RecordedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	rendered, _, err := query.ToSQL()
	require.NoError(t, err)

	assert.Contains(t, rendered, `"metadata"=metadata || jsonb_build_object('defects'::text,`)
	assert.Contains(t, rendered, `"qr_ids":[12]`)
}

func TestFlagDefectiveQueryIsScopedToBatch(t *testing.T) {
	rendered, _, err := flagDefectiveQuery(sqlBuilder(t), 3, []int64{12, 14}).ToSQL()
	require.NoError(t, err)

	assert.Contains(t, rendered, `UPDATE "qr_codes" SET`)
	assert.Contains(t, rendered, `"batch_id" = 3`)
	assert.Contains(t, rendered, `"id" IN (12, 14)`)
	assert.Contains(t, rendered, `"defective":true`)
	assert.Contains(t, rendered, `"defect_batch_id":3`)
}
