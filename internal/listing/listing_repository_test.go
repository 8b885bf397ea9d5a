package listing

import (
	"database/sql"
	"testing"

	"farmfleet/internal/repository"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchRecordsQueryJoinsFarmAndAllocation(t *testing.T) {
	db, err := sql.Open("postgres", "postgres://localhost/farmfleet?sslmode=disable")
	require.NoError(t, err)
	defer db.Close()

	rendered, _, err := batchRecordsQuery(repository.NewRepository(db).GoquDBWrapper, 12).ToSQL()
	require.NoError(t, err)

	assert.Contains(t, rendered, `FROM "qr_codes" AS "q"`)
	assert.Contains(t, rendered, `LEFT JOIN "farms" AS "f" ON ("f"."id" = "q"."farm_id")`)
	assert.Contains(t, rendered, `LEFT JOIN "qr_allocations" AS "a" ON ("a"."qr_code_id" = "q"."id")`)
	assert.Contains(t, rendered, `"f"."name" AS "farm_name"`)
	assert.Contains(t, rendered, `("q"."batch_id" = 12)`)
	assert.NotContains(t, rendered, "LIMIT")
}
