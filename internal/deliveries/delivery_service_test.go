package deliveries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"farmfleet/internal/allocation"
	"farmfleet/internal/metrics"
	"farmfleet/internal/qrcodes/qrcodestest"
	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var dbc = repository.DatabaseContext{Environment: "test"}

// memoryDeliveryStore emulates create_delivery_batch and the guarded
// status update. Metadata round-trips through JSON like a jsonb column.
type memoryDeliveryStore struct {
	mu          sync.Mutex
	farms       qrcodestest.Farms
	deliveries  map[int64]*models.DeliveryBatch
	nextID      int64
	procedure   *models.DeliveryProcedureResult
	beforeApply func(delivery *models.DeliveryBatch)
	recordErr   error
}

func newMemoryDeliveryStore(farms qrcodestest.Farms) *memoryDeliveryStore {
	return &memoryDeliveryStore{farms: farms, deliveries: map[int64]*models.DeliveryBatch{}}
}

func (s *memoryDeliveryStore) CreateDelivery(_ context.Context, _ repository.DatabaseContext, draft DeliveryDraft) (*models.DeliveryProcedureResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.procedure != nil {
		return s.procedure, nil
	}
	farm, ok := s.farms[draft.FarmID]
	if !ok {
		return &models.DeliveryProcedureResult{ErrorCode: custom_error.CodeFarmNotFound, Message: "farm not found"}, nil
	}
	if !farm.IsActive() {
		return &models.DeliveryProcedureResult{ErrorCode: custom_error.CodeFarmInactive, Message: "farm is not active"}, nil
	}

	s.nextID++
	delivery := &models.DeliveryBatch{
		ID:                s.nextID,
		DeliveryCode:      fmt.Sprintf("DR-20231114-%05d", s.nextID),
		FarmID:            draft.FarmID,
		RequestedQuantity: draft.RequestedQuantity,
		CurrentStatus:     metadata.DeliveryStatusRequested,
		Metadata:          roundTrip(draft.Metadata),
	}
	s.deliveries[delivery.ID] = delivery

	result := &models.DeliveryProcedureResult{Success: true}
	raw, _ := json.Marshal(map[string]interface{}{"id": delivery.ID, "delivery_code": delivery.DeliveryCode})
	_ = json.Unmarshal(raw, &result.Data)
	return result, nil
}

func (s *memoryDeliveryStore) GetDelivery(_ context.Context, _ repository.DatabaseContext, id int64) (*models.DeliveryBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delivery, ok := s.deliveries[id]
	if !ok {
		return nil, nil
	}
	out := *delivery
	out.Metadata = delivery.Metadata.Clone()
	return &out, nil
}

func (s *memoryDeliveryStore) ListDeliveries(_ context.Context, _ repository.DatabaseContext, filter models.DeliveryFilter) ([]models.DeliveryBatch, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.DeliveryBatch
	for id := int64(1); id <= s.nextID; id++ {
		delivery, ok := s.deliveries[id]
		if !ok {
			continue
		}
		if filter.FarmID != nil && delivery.FarmID != *filter.FarmID {
			continue
		}
		if filter.Status != nil && delivery.CurrentStatus != *filter.Status {
			continue
		}
		out = append(out, *delivery)
	}
	return out, len(out), nil
}

func (s *memoryDeliveryStore) ApplyStatus(_ context.Context, _ repository.DatabaseContext, id int64, change models.StatusChange) (*models.DeliveryBatch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delivery, ok := s.deliveries[id]
	if !ok {
		return nil, false, nil
	}
	if s.beforeApply != nil {
		s.beforeApply(delivery)
	}
	if delivery.CurrentStatus != change.From {
		return nil, false, nil
	}

	history, _ := delivery.Metadata[models.MetadataStatusHistory].([]interface{})
	entry := roundTrip(models.Metadata{"entry": change})["entry"]
	delivery.Metadata[models.MetadataStatusHistory] = append(history, entry)
	delivery.Metadata[models.MetadataLastStatusChange] = entry
	delivery.CurrentStatus = change.To

	out := *delivery
	out.Metadata = delivery.Metadata.Clone()
	return &out, true, nil
}

func (s *memoryDeliveryStore) RecordFulfillment(_ context.Context, _ repository.DatabaseContext, id int64, record models.FulfillmentRecord) (*models.DeliveryBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recordErr != nil {
		return nil, s.recordErr
	}
	delivery, ok := s.deliveries[id]
	if !ok || delivery.CurrentStatus != metadata.DeliveryStatusInProgress {
		return nil, nil
	}
	delivery.Metadata[models.MetadataFulfillment] = roundTrip(models.Metadata{"record": record})["record"]

	out := *delivery
	out.Metadata = delivery.Metadata.Clone()
	return &out, nil
}

func roundTrip(in models.Metadata) models.Metadata {
	if in == nil {
		in = models.Metadata{}
	}
	out := models.Metadata{}
	raw, _ := json.Marshal(in)
	_ = out.Scan(raw)
	return out
}

// failingStock fails AllocateAvailable while err is set.
type failingStock struct {
	*allocation.Engine
	err error
}

func (s *failingStock) AllocateAvailable(ctx context.Context, dbc repository.DatabaseContext, farmID int64, quantity int, actor int64) (*models.AllocationReport, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.Engine.AllocateAvailable(ctx, dbc, farmID, quantity, actor)
}

type fixture struct {
	manager *Manager
	engine  *allocation.Engine
	store   *memoryDeliveryStore
	codes   *qrcodestest.MemoryStore
	metrics *metrics.Metrics
	audit   *qrcodestest.AuditSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	farms := qrcodestest.ActiveFarms(1, 2)
	farms[3] = models.Farm{ID: 3, Name: "closed", Status: "inactive"}

	codes := qrcodestest.NewMemoryStore()
	auditLog, sink := qrcodestest.NewAuditLog()
	m := metrics.New()
	engine := allocation.NewEngine(codes, farms, auditLog, m, zap.NewNop())
	store := newMemoryDeliveryStore(farms)

	manager := NewManager(store, engine, codes, farms, auditLog, m, zap.NewNop())
	manager.now = func() time.Time { return time.Date(2023, 11, 14, 9, 0, 0, 0, time.UTC) }

	return &fixture{manager: manager, engine: engine, store: store, codes: codes, metrics: m, audit: sink}
}

func (f *fixture) stock(n int) []int64 {
	batchID := int64(1)
	ids := make([]int64, 0, n)
	for i := 1; i <= n; i++ {
		position := i
		code := f.codes.Put(models.QRCode{
			UUID:          "uuid",
			ShortCode:     fmt.Sprintf("FF-TEST-%04d", i),
			Status:        metadata.QRStatusAvailable,
			BatchID:       &batchID,
			PrintPosition: &position,
		})
		ids = append(ids, code.ID)
	}
	return ids
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)

	delivery, err := f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{
		FarmID:            1,
		RequestedQuantity: 5,
		Metadata:          models.Metadata{"notes": "spring"},
	}, 4)

	require.NoError(t, err)
	assert.Equal(t, metadata.DeliveryStatusRequested, delivery.CurrentStatus)
	assert.Equal(t, 5, delivery.RequestedQuantity)
	assert.Equal(t, "spring", delivery.Metadata["notes"])
	assert.Equal(t, []string{"create"}, f.audit.Actions())
}

func TestCreateRequestMapsProcedureErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{FarmID: 9, RequestedQuantity: 1}, 4)
	assert.Equal(t, custom_error.KindNotFound, custom_error.As(err).Kind)
	assert.True(t, custom_error.IsCode(err, custom_error.CodeFarmNotFound))

	_, err = f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{FarmID: 3, RequestedQuantity: 1}, 4)
	assert.Equal(t, custom_error.KindConflict, custom_error.As(err).Kind)

	_, err = f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{FarmID: 1, RequestedQuantity: -2}, 4)
	assert.True(t, custom_error.IsCode(err, custom_error.CodeValidation))
}

func TestProcedureError(t *testing.T) {
	cases := []struct {
		code string
		kind custom_error.Kind
	}{
		{custom_error.CodeFarmNotFound, custom_error.KindNotFound},
		{custom_error.CodeUserNotFound, custom_error.KindNotFound},
		{custom_error.CodeFarmInactive, custom_error.KindConflict},
		{custom_error.CodeDuplicate, custom_error.KindConflict},
		{custom_error.CodeValidation, custom_error.KindValidation},
		{"SOMETHING_ELSE", custom_error.KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := procedureError(&models.DeliveryProcedureResult{ErrorCode: tc.code, Message: "failed"})
			assert.Equal(t, tc.kind, custom_error.As(err).Kind)
		})
	}
}

func TestInProgressReservesStock(t *testing.T) {
	f := newFixture(t)
	ids := f.stock(4)
	delivery, err := f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{FarmID: 2, RequestedQuantity: 3}, 4)
	require.NoError(t, err)

	notes := "picked from shelf A"
	update, err := f.manager.UpdateStatus(context.Background(), dbc, delivery.ID, models.UpdateDeliveryStatusRequest{
		Status: "in_progress",
		Notes:  &notes,
	}, 4)

	require.NoError(t, err)
	assert.Equal(t, metadata.DeliveryStatusInProgress, update.Delivery.CurrentStatus)
	require.NotNil(t, update.Fulfillment)
	assert.Equal(t, ids[:3], update.Fulfillment.Successful)

	for _, id := range ids[:3] {
		code, _ := f.codes.Snapshot(id)
		assert.Equal(t, metadata.QRStatusAllocated, code.Status)
		assert.Equal(t, int64(2), *code.FarmID)
	}

	last, ok := update.Delivery.Metadata[models.MetadataLastStatusChange].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "requested", last["from"])
	assert.Equal(t, "in_progress", last["to"])
	assert.Equal(t, notes, last["notes"])

	summary, err := f.manager.Fulfillment(context.Background(), dbc, delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.RequestedQuantity)
	assert.Equal(t, 3, summary.FulfilledQuantity)
	assert.Equal(t, 3, summary.FarmAllocatedCount)
	assert.Equal(t, ids[:3], summary.QRIDs)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.DeliveryTransitions.WithLabelValues("in_progress")))
}

func TestInProgressRequiresStock(t *testing.T) {
	f := newFixture(t)
	f.stock(1)
	delivery, err := f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{FarmID: 1, RequestedQuantity: 2}, 4)
	require.NoError(t, err)

	_, err = f.manager.UpdateStatus(context.Background(), dbc, delivery.ID, models.UpdateDeliveryStatusRequest{Status: "in_progress"}, 4)

	assert.True(t, custom_error.IsCode(err, custom_error.CodeInsufficientStock))
	current, _ := f.manager.Get(context.Background(), dbc, delivery.ID)
	assert.Equal(t, metadata.DeliveryStatusRequested, current.CurrentStatus)
}

func TestTerminalStatesAreClosed(t *testing.T) {
	f := newFixture(t)
	f.stock(1)
	delivery, err := f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{FarmID: 1, RequestedQuantity: 1}, 4)
	require.NoError(t, err)

	for _, status := range []string{"in_progress", "delivered"} {
		_, err := f.manager.UpdateStatus(context.Background(), dbc, delivery.ID, models.UpdateDeliveryStatusRequest{Status: status}, 4)
		require.NoError(t, err)
	}

	for _, status := range []string{"requested", "in_progress", "cancelled", "delivered"} {
		_, err := f.manager.UpdateStatus(context.Background(), dbc, delivery.ID, models.UpdateDeliveryStatusRequest{Status: status}, 4)
		assert.True(t, custom_error.IsCode(err, custom_error.CodeInvalidTransition), status)
	}

	stored, _ := f.store.GetDelivery(context.Background(), dbc, delivery.ID)
	history, _ := stored.Metadata[models.MetadataStatusHistory].([]interface{})
	assert.Len(t, history, 2)
}

func TestUpdateStatusLostRace(t *testing.T) {
	f := newFixture(t)
	delivery, err := f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{FarmID: 1, RequestedQuantity: 1}, 4)
	require.NoError(t, err)

	f.store.beforeApply = func(d *models.DeliveryBatch) {
		d.CurrentStatus = metadata.DeliveryStatusCancelled
	}

	_, err = f.manager.UpdateStatus(context.Background(), dbc, delivery.ID, models.UpdateDeliveryStatusRequest{Status: "cancelled"}, 4)

	require.Error(t, err)
	assert.Equal(t, custom_error.KindConflict, custom_error.As(err).Kind)
	assert.Contains(t, err.Error(), "changed concurrently")
}

func TestUpdateStatusValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.UpdateStatus(context.Background(), dbc, 1, models.UpdateDeliveryStatusRequest{Status: "shipped"}, 4)
	assert.True(t, custom_error.IsCode(err, custom_error.CodeValidation))

	_, err = f.manager.UpdateStatus(context.Background(), dbc, 42, models.UpdateDeliveryStatusRequest{Status: "cancelled"}, 4)
	assert.True(t, custom_error.IsCode(err, custom_error.CodeDeliveryNotFound))
}

func lastStatusNotes(t *testing.T, delivery *models.DeliveryBatch) string {
	t.Helper()

	last, ok := delivery.Metadata[models.MetadataLastStatusChange].(map[string]interface{})
	require.True(t, ok)
	notes, _ := last["notes"].(string)
	return notes
}

func TestFailedReservationReturnsToRequested(t *testing.T) {
	f := newFixture(t)
	ids := f.stock(3)
	stock := &failingStock{Engine: f.engine, err: errors.New("db down")}
	f.manager.stock = stock
	delivery, err := f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{FarmID: 1, RequestedQuantity: 2}, 4)
	require.NoError(t, err)

	_, err = f.manager.UpdateStatus(context.Background(), dbc, delivery.ID, models.UpdateDeliveryStatusRequest{Status: "in_progress"}, 4)

	require.Error(t, err)
	assert.Equal(t, custom_error.KindInternal, custom_error.As(err).Kind)
	current, err := f.manager.Get(context.Background(), dbc, delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, metadata.DeliveryStatusRequested, current.CurrentStatus)
	assert.Contains(t, lastStatusNotes(t, current), "reservation failed")
	for _, id := range ids {
		code, _ := f.codes.Snapshot(id)
		assert.Equal(t, metadata.QRStatusAvailable, code.Status)
	}

	stock.err = nil
	update, err := f.manager.UpdateStatus(context.Background(), dbc, delivery.ID, models.UpdateDeliveryStatusRequest{Status: "in_progress"}, 4)
	require.NoError(t, err)
	assert.Equal(t, metadata.DeliveryStatusInProgress, update.Delivery.CurrentStatus)
	assert.Equal(t, ids[:2], update.Fulfillment.Successful)
}

func TestUnrecordedReservationReleasesCodes(t *testing.T) {
	f := newFixture(t)
	ids := f.stock(2)
	delivery, err := f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{FarmID: 2, RequestedQuantity: 2}, 4)
	require.NoError(t, err)
	f.store.recordErr = errors.New("disk full")

	_, err = f.manager.UpdateStatus(context.Background(), dbc, delivery.ID, models.UpdateDeliveryStatusRequest{Status: "in_progress"}, 4)

	require.Error(t, err)
	assert.Equal(t, custom_error.KindInternal, custom_error.As(err).Kind)
	assert.Nil(t, custom_error.As(err).Details)
	for _, id := range ids {
		code, _ := f.codes.Snapshot(id)
		assert.Equal(t, metadata.QRStatusAvailable, code.Status)
		assert.Nil(t, code.FarmID)
	}
	assert.Equal(t, []string{"create", "allocate", "allocate", "release", "release"}, f.audit.Actions())

	current, _ := f.manager.Get(context.Background(), dbc, delivery.ID)
	assert.Equal(t, metadata.DeliveryStatusRequested, current.CurrentStatus)

	f.store.recordErr = nil
	update, err := f.manager.UpdateStatus(context.Background(), dbc, delivery.ID, models.UpdateDeliveryStatusRequest{Status: "in_progress"}, 4)
	require.NoError(t, err)
	assert.Equal(t, ids, update.Fulfillment.Successful)
}

func TestIncompleteRollbackReportsWhatWasDone(t *testing.T) {
	f := newFixture(t)
	ids := f.stock(1)
	delivery, err := f.manager.CreateRequest(context.Background(), dbc, models.CreateDeliveryRequest{FarmID: 1, RequestedQuantity: 1}, 4)
	require.NoError(t, err)
	f.store.recordErr = errors.New("disk full")
	applies := 0
	f.store.beforeApply = func(d *models.DeliveryBatch) {
		applies++
		if applies == 2 {
			d.CurrentStatus = metadata.DeliveryStatusCancelled
		}
	}

	_, err = f.manager.UpdateStatus(context.Background(), dbc, delivery.ID, models.UpdateDeliveryStatusRequest{Status: "in_progress"}, 4)

	appErr := custom_error.As(err)
	assert.Equal(t, custom_error.KindInternal, appErr.Kind)
	details, ok := appErr.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, details["status_reverted"])
	assert.Equal(t, ids, details["allocated"])
	assert.Equal(t, ids, details["released"])

	code, _ := f.codes.Snapshot(ids[0])
	assert.Equal(t, metadata.QRStatusAvailable, code.Status)
}
