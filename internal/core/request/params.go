// Package request parses path and query parameters the same way for every
// handler.
package request

import (
	"fmt"
	"strconv"

	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/models"

	"github.com/gin-gonic/gin"
)

// PathID parses a positive int64 path parameter, aborting with 400 otherwise.
func PathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid "+name))
		return 0, false
	}
	return id, true
}

func OptionalQueryID(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid "+name))
		return nil, false
	}
	return &id, true
}

// PageParams reads page and limit. Absent values are 0 and get defaults
// downstream; present values must be in range.
func PageParams(c *gin.Context) (int, int, bool) {
	page, limit := 0, 0
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > models.MaxPage {
			custom_error.AbortWithError(c, custom_error.Validation(fmt.Sprintf("page must be between 1 and %d", models.MaxPage)))
			return 0, 0, false
		}
		page = parsed
	}
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > models.MaxPageLimit {
			custom_error.AbortWithError(c, custom_error.Validation("limit must be between 1 and 500"))
			return 0, 0, false
		}
		limit = parsed
	}
	return page, limit, true
}
