package middleware

import (
	"farmfleet/internal/repository"

	"github.com/gin-gonic/gin"
)

const (
	DatabaseEnvironmentHeader = "X-Database-Environment"

	databaseContextKey = "databaseContext"
)

// DatabaseEnvironment resolves the database environment of the request once
// and stores it on the context.
func DatabaseEnvironment(store *repository.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(databaseContextKey, store.Context(c.GetHeader(DatabaseEnvironmentHeader)))
		c.Next()
	}
}

// DatabaseContext returns the environment chosen for this request. An empty
// context resolves to the store default.
func DatabaseContext(c *gin.Context) repository.DatabaseContext {
	if value, ok := c.Get(databaseContextKey); ok {
		if dbc, ok := value.(repository.DatabaseContext); ok {
			return dbc
		}
	}
	return repository.DatabaseContext{}
}
