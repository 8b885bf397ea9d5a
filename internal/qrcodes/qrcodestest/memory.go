// Package qrcodestest provides an in-memory QR code store that reproduces
// the conditional update semantics of the SQL repository.
package qrcodestest

import (
	"context"
	"sort"
	"sync"
	"time"

	"farmfleet/internal/repository"
	"farmfleet/pkg/auditlog"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"go.uber.org/zap"
)

type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	codes  map[int64]*models.QRCode
	// cancelled batches keep their codes out of stock.
	cancelled map[int64]bool

	// InsertErr, when set, fails every insert.
	InsertErr error
	// TakenShortCodes are reported as existing by ShortCodeExists.
	TakenShortCodes map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codes:           map[int64]*models.QRCode{},
		cancelled:       map[int64]bool{},
		TakenShortCodes: map[string]bool{},
	}
}

// Put seeds a code and returns the stored copy with its assigned id.
func (s *MemoryStore) Put(code models.QRCode) models.QRCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code.ID == 0 {
		s.nextID++
		code.ID = s.nextID
	} else if code.ID > s.nextID {
		s.nextID = code.ID
	}
	if code.Metadata == nil {
		code.Metadata = models.Metadata{}
	}
	stored := clone(code)
	s.codes[code.ID] = &stored
	return clone(stored)
}

func (s *MemoryStore) Snapshot(id int64) (models.QRCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[id]
	if !ok {
		return models.QRCode{}, false
	}
	return clone(*code), true
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

func (s *MemoryStore) Querier(repository.DatabaseContext) (repository.Querier, error) {
	return nil, nil
}

func (s *MemoryStore) ShortCodeExists(_ context.Context, _ repository.Querier, shortCode string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TakenShortCodes[shortCode] {
		return true, nil
	}
	for _, code := range s.codes {
		if code.ShortCode == shortCode {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) InsertIfAbsent(_ context.Context, _ repository.Querier, code models.QRCode) (*models.QRCode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertErr != nil {
		return nil, false, s.InsertErr
	}
	for _, existing := range s.codes {
		if existing.ShortCode == code.ShortCode || existing.UUID == code.UUID {
			return nil, false, nil
		}
		if samePosition(existing, &code) {
			return nil, false, nil
		}
	}

	s.nextID++
	code.ID = s.nextID
	now := time.Now()
	code.CreatedAt, code.UpdatedAt = now, now
	if code.Metadata == nil {
		code.Metadata = models.Metadata{}
	}
	stored := clone(code)
	s.codes[code.ID] = &stored
	out := clone(stored)
	return &out, true, nil
}

func (s *MemoryStore) GetByID(_ context.Context, _ repository.DatabaseContext, id int64) (*models.QRCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[id]
	if !ok {
		return nil, nil
	}
	out := clone(*code)
	return &out, nil
}

func (s *MemoryStore) GetByShortCode(_ context.Context, _ repository.DatabaseContext, shortCode string) (*models.QRCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, code := range s.codes {
		if code.ShortCode == shortCode {
			out := clone(*code)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindByAsset(_ context.Context, _ repository.DatabaseContext, assetType metadata.AssetType, assetID int64) ([]models.QRCode, error) {
	return s.filter(func(code *models.QRCode) bool {
		return code.AssetType != nil && *code.AssetType == assetType && code.AssetID != nil && *code.AssetID == assetID
	}), nil
}

func (s *MemoryStore) List(_ context.Context, _ repository.DatabaseContext, filter models.QRCodeFilter) ([]models.QRCode, int, error) {
	matched := s.filter(func(code *models.QRCode) bool {
		if filter.FarmID != nil && (code.FarmID == nil || *code.FarmID != *filter.FarmID) {
			return false
		}
		if filter.Status != nil && code.Status != *filter.Status {
			return false
		}
		if filter.BatchID != nil && (code.BatchID == nil || *code.BatchID != *filter.BatchID) {
			return false
		}
		return true
	})

	page := models.NewPagination(filter.Page, filter.Limit, len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + min(page.Limit, len(matched)-start)
	return matched[start:end], len(matched), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, _ repository.DatabaseContext, id int64, from []metadata.QRStatus, to metadata.QRStatus) (*models.QRCode, bool, error) {
	return s.update(id, func(code *models.QRCode) bool {
		if !statusIn(code.Status, from) {
			return false
		}
		code.Status = to
		return true
	})
}

// CancelBatch marks a production batch cancelled.
func (s *MemoryStore) CancelBatch(batchID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled[batchID] = true
}

func (s *MemoryStore) Allocate(_ context.Context, _ repository.DatabaseContext, id int64, farmID int64) (*models.QRCode, bool, error) {
	return s.update(id, func(code *models.QRCode) bool {
		if !s.allocatable(code) {
			return false
		}
		code.Status = metadata.QRStatusAllocated
		code.FarmID = &farmID
		return true
	})
}

func (s *MemoryStore) Release(_ context.Context, _ repository.DatabaseContext, id int64, farmID int64) (*models.QRCode, bool, error) {
	return s.update(id, func(code *models.QRCode) bool {
		if code.Status != metadata.QRStatusAllocated || code.FarmID == nil || *code.FarmID != farmID {
			return false
		}
		code.Status = metadata.QRStatusAvailable
		code.FarmID = nil
		return true
	})
}

func (s *MemoryStore) Bind(_ context.Context, _ repository.DatabaseContext, id int64, farmID int64, assetType metadata.AssetType, assetID int64, boundAt time.Time) (*models.QRCode, bool, error) {
	return s.update(id, func(code *models.QRCode) bool {
		if !statusIn(code.Status, metadata.QRSourcesFor(metadata.QREventBind)) {
			return false
		}
		if code.FarmID == nil || *code.FarmID != farmID {
			return false
		}
		code.Status = metadata.QRStatusBound
		code.AssetType = &assetType
		code.AssetID = &assetID
		code.BoundAt = &boundAt
		return true
	})
}

func (s *MemoryStore) Unbind(_ context.Context, _ repository.DatabaseContext, id int64) (*models.QRCode, bool, error) {
	return s.update(id, func(code *models.QRCode) bool {
		if !statusIn(code.Status, metadata.QRSourcesFor(metadata.QREventUnbind)) {
			return false
		}
		code.Status = metadata.QRStatusAvailable
		code.FarmID = nil
		code.AssetType = nil
		code.AssetID = nil
		code.BoundAt = nil
		return true
	})
}

func (s *MemoryStore) Delete(_ context.Context, _ repository.DatabaseContext, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[id]; !ok {
		return false, nil
	}
	delete(s.codes, id)
	return true, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context, _ repository.DatabaseContext, farmID *int64) (*models.QRCodeStats, error) {
	codes := s.filter(func(code *models.QRCode) bool {
		return farmID == nil || (code.FarmID != nil && *code.FarmID == *farmID)
	})

	stats := &models.QRCodeStats{ByStatus: map[string]int{
		string(metadata.QRStatusAvailable): 0,
		string(metadata.QRStatusAllocated): 0,
		string(metadata.QRStatusBound):     0,
		string(metadata.QRStatusDelivered): 0,
	}}
	for _, code := range codes {
		stats.Total++
		stats.ByStatus[string(code.Status)]++
		if code.IsDefective() {
			stats.Defective++
		}
	}
	return stats, nil
}

func (s *MemoryStore) CountAvailable(_ context.Context, _ repository.DatabaseContext) (int, error) {
	return len(s.filter(s.allocatable)), nil
}

func (s *MemoryStore) PickAvailable(_ context.Context, _ repository.DatabaseContext, limit int) ([]int64, error) {
	candidates := s.filter(s.allocatable)
	sort.SliceStable(candidates, func(i, j int) bool {
		return printsBefore(printOrder(&candidates[i]), printOrder(&candidates[j]))
	})

	ids := []int64{}
	for i := 0; i < len(candidates) && i < limit; i++ {
		ids = append(ids, candidates[i].ID)
	}
	return ids, nil
}

func (s *MemoryStore) CountFarmAllocated(_ context.Context, _ repository.DatabaseContext, farmID int64) (int, error) {
	return len(s.filter(func(code *models.QRCode) bool {
		return code.Status == metadata.QRStatusAllocated && code.FarmID != nil && *code.FarmID == farmID
	})), nil
}

func (s *MemoryStore) update(id int64, apply func(code *models.QRCode) bool) (*models.QRCode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.codes[id]
	if !ok {
		return nil, false, nil
	}
	candidate := clone(*current)
	if !apply(&candidate) {
		return nil, false, nil
	}
	candidate.UpdatedAt = time.Now()
	s.codes[id] = &candidate
	out := clone(candidate)
	return &out, true, nil
}

func (s *MemoryStore) filter(keep func(code *models.QRCode) bool) []models.QRCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.QRCode{}
	for _, code := range s.codes {
		if keep(code) {
			out = append(out, clone(*code))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// allocatable expects s.mu to be held.
func (s *MemoryStore) allocatable(code *models.QRCode) bool {
	if code.BatchID != nil && s.cancelled[*code.BatchID] {
		return false
	}
	return code.Status == metadata.QRStatusAvailable && code.FarmID == nil && !code.IsDefective()
}

// printOrder mirrors ORDER BY batch_id, print_position, id with NULLS LAST.
func printOrder(code *models.QRCode) [3]int64 {
	key := [3]int64{1 << 62, 1 << 62, code.ID}
	if code.BatchID != nil {
		key[0] = *code.BatchID
	}
	if code.PrintPosition != nil {
		key[1] = int64(*code.PrintPosition)
	}
	return key
}

func printsBefore(a, b [3]int64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func samePosition(a, b *models.QRCode) bool {
	return a.BatchID != nil && b.BatchID != nil && a.PrintPosition != nil && b.PrintPosition != nil &&
		*a.BatchID == *b.BatchID && *a.PrintPosition == *b.PrintPosition
}

func statusIn(status metadata.QRStatus, set []metadata.QRStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}

func clone(code models.QRCode) models.QRCode {
	code.Metadata = code.Metadata.Clone()
	return code
}

// Farms is a static farms.Reader.
type Farms map[int64]models.Farm

func (f Farms) GetFarm(_ context.Context, _ repository.DatabaseContext, id int64) (*models.Farm, error) {
	farm, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &farm, nil
}

// ActiveFarms builds a directory where every given id is an active farm.
func ActiveFarms(ids ...int64) Farms {
	farms := Farms{}
	for _, id := range ids {
		farms[id] = models.Farm{ID: id, Name: "farm", Status: models.FarmStatusActive}
	}
	return farms
}

// AuditSink records audit entries in memory.
type AuditSink struct {
	mu      sync.Mutex
	Entries []models.AuditLog
}

func (a *AuditSink) PersistLog(_ context.Context, _ repository.DatabaseContext, entry models.AuditLog, _ interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Entries = append(a.Entries, entry)
	return nil
}

func (a *AuditSink) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	actions := make([]string, len(a.Entries))
	for i, entry := range a.Entries {
		actions[i] = entry.Action
	}
	return actions
}

// NewAuditLog returns an audit facade writing into a fresh sink.
func NewAuditLog() (*auditlog.Auditlog, *AuditSink) {
	sink := &AuditSink{}
	return auditlog.NewAuditLog(sink, zap.NewNop()), sink
}

// Mutate applies fn to the stored code, standing in for updates the SQL
// repositories issue directly.
func (s *MemoryStore) Mutate(id int64, fn func(code *models.QRCode)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[id]
	if !ok {
		return false
	}
	updated := clone(*code)
	fn(&updated)
	s.codes[id] = &updated
	return true
}
