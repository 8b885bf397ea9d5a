package listing

import (
	"slices"
	"strings"
	"time"

	"farmfleet/pkg/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	SortPrintPosition = "print_position"
	SortShortCode     = "short_code"
	SortStatus        = "status"
	SortFarm          = "farm"
	SortBoundAt       = "bound_at"
	SortCreatedAt     = "created_at"
	SortAllocatedAt   = "allocated_at"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// comparator orders two records on one field. Missing values compare as
// the minimum.
type comparator func(a, b *models.BatchQRCodeRecord) int

func comparatorFor(field string) (comparator, bool) {
	switch field {
	case SortPrintPosition:
		return byPrintPosition, true
	case SortShortCode:
		return func(a, b *models.BatchQRCodeRecord) int { return strings.Compare(a.ShortCode, b.ShortCode) }, true
	case SortStatus:
		return func(a, b *models.BatchQRCodeRecord) int { return strings.Compare(string(a.Status), string(b.Status)) }, true
	case SortFarm:
		return byFarmName(collate.New(language.Und)), true
	case SortBoundAt:
		return func(a, b *models.BatchQRCodeRecord) int { return compareTimes(a.BoundAt, b.BoundAt) }, true
	case SortAllocatedAt:
		return func(a, b *models.BatchQRCodeRecord) int { return compareTimes(a.AllocatedAt, b.AllocatedAt) }, true
	case SortCreatedAt:
		return func(a, b *models.BatchQRCodeRecord) int { return a.CreatedAt.Compare(b.CreatedAt) }, true
	}
	return nil, false
}

// sortRecords orders the whole batch in memory. Ties keep print order, so
// pages never overlap or skip.
func sortRecords(records []models.BatchQRCodeRecord, field, order string) {
	compare, ok := comparatorFor(field)
	if !ok {
		compare = byPrintPosition
	}
	descending := order == OrderDesc

	slices.SortStableFunc(records, func(a, b models.BatchQRCodeRecord) int {
		result := compare(&a, &b)
		if descending {
			result = -result
		}
		if result != 0 {
			return result
		}
		if tie := byPrintPosition(&a, &b); tie != 0 {
			return tie
		}
		return compareInts(a.ID, b.ID)
	})
}

func byPrintPosition(a, b *models.BatchQRCodeRecord) int {
	switch {
	case a.PrintPosition == nil && b.PrintPosition == nil:
		return 0
	case a.PrintPosition == nil:
		return -1
	case b.PrintPosition == nil:
		return 1
	}
	return compareInts(int64(*a.PrintPosition), int64(*b.PrintPosition))
}

// byFarmName compares farm names in locale order; unallocated codes and
// blank names come first. A collator is not safe for concurrent use, so
// each sort gets its own.
func byFarmName(collator *collate.Collator) comparator {
	return func(a, b *models.BatchQRCodeRecord) int {
		nameA, nameB := farmName(a), farmName(b)
		switch {
		case nameA == "" && nameB == "":
			return 0
		case nameA == "":
			return -1
		case nameB == "":
			return 1
		}
		return collator.CompareString(nameA, nameB)
	}
}

func farmName(record *models.BatchQRCodeRecord) string {
	if record.FarmName == nil {
		return ""
	}
	return strings.TrimSpace(*record.FarmName)
}

func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
