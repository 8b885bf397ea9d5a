package repository

import (
	"database/sql"
	"testing"

	custom_error "farmfleet/pkg/errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLazy(t *testing.T) *sql.DB {
	t.Helper()
	// lib/pq connects on first use, so no server is needed here.
	db, err := sql.Open("postgres", "postgres://localhost:1/farmfleet?sslmode=disable")
	require.NoError(t, err)
	return db
}

func TestStore_ResolveDefaultAndExplicit(t *testing.T) {
	store := NewStore("Production")
	store.Register("production", openLazy(t))
	store.Register("staging", openLazy(t))
	defer store.Close()

	assert.Equal(t, DatabaseContext{Environment: "production"}, store.Context(""))
	assert.Equal(t, DatabaseContext{Environment: "staging"}, store.Context(" Staging "))

	prod, err := store.Resolve(DatabaseContext{})
	require.NoError(t, err)
	staging, err := store.Resolve(store.Context("staging"))
	require.NoError(t, err)
	assert.NotSame(t, prod, staging)

	assert.Equal(t, []string{"production", "staging"}, store.Environments())
}

func TestStore_ResolveUnknownEnvironment(t *testing.T) {
	store := NewStore("production")

	_, err := store.Resolve(DatabaseContext{Environment: "sandbox"})
	require.Error(t, err)
	assert.True(t, custom_error.IsCode(err, custom_error.CodeUnknownEnvironment))
}

func TestConditionBuilder_Aliases(t *testing.T) {
	conditions := NewQueryBuilder().
		AddCondition("farm_id", int64(3)).
		AddCondition("status", "allocated").
		BuildConditions(map[string]string{"farm_id": "q.farm_id"})

	assert.Equal(t, goqu.Ex{"q.farm_id": int64(3), "status": "allocated"}, conditions)
}

func TestConditionBuilder_OptionalFilters(t *testing.T) {
	type status string
	farmID := int64(4)
	allocated := status("allocated")

	conditions := NewQueryBuilder()
	Optional(conditions, "farm_id", &farmID)
	Optional[int64](conditions, "batch_id", nil)
	OptionalEnum(conditions, "status", &allocated)

	assert.Equal(t, goqu.Ex{"q.farm_id": int64(4), "status": "allocated"}, conditions.BuildConditions(map[string]string{"farm_id": "q.farm_id"}))
}
