package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationOffset(t *testing.T) {
	tests := []struct {
		name   string
		page   int
		limit  int
		offset int
	}{
		{"first page", 1, 50, 0},
		{"third page", 3, 20, 40},
		{"zero page", 0, 50, 0},
		{"huge page saturates", 1<<62 + 1, 3, math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.offset, NewPagination(tt.page, tt.limit, 10).Offset())
		})
	}
}

func TestNormalizePage(t *testing.T) {
	page, limit := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageLimit, limit)

	page, limit = NormalizePage(1<<62, 900)
	assert.Equal(t, MaxPage, page)
	assert.Equal(t, MaxPageLimit, limit)
}
