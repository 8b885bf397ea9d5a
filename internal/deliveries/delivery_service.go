package deliveries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"farmfleet/internal/farms"
	"farmfleet/internal/metrics"
	"farmfleet/internal/repository"
	"farmfleet/pkg/auditlog"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"go.uber.org/zap"
)

type DeliveryStore interface {
	CreateDelivery(ctx context.Context, dbc repository.DatabaseContext, draft DeliveryDraft) (*models.DeliveryProcedureResult, error)
	GetDelivery(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.DeliveryBatch, error)
	ListDeliveries(ctx context.Context, dbc repository.DatabaseContext, filter models.DeliveryFilter) ([]models.DeliveryBatch, int, error)
	ApplyStatus(ctx context.Context, dbc repository.DatabaseContext, id int64, change models.StatusChange) (*models.DeliveryBatch, bool, error)
	RecordFulfillment(ctx context.Context, dbc repository.DatabaseContext, id int64, record models.FulfillmentRecord) (*models.DeliveryBatch, error)
}

// Stock reserves available codes for a farm.
type Stock interface {
	CountAvailable(ctx context.Context, dbc repository.DatabaseContext) (int, error)
	AllocateAvailable(ctx context.Context, dbc repository.DatabaseContext, farmID int64, quantity int, actor int64) (*models.AllocationReport, error)
	Release(ctx context.Context, dbc repository.DatabaseContext, farmID int64, ids []int64, actor int64) *models.AllocationReport
}

type FarmAllocations interface {
	CountFarmAllocated(ctx context.Context, dbc repository.DatabaseContext, farmID int64) (int, error)
}

type Manager struct {
	store       DeliveryStore
	stock       Stock
	allocations FarmAllocations
	farms       farms.Reader
	auditLog    *auditlog.Auditlog
	metrics     *metrics.Metrics
	log         *zap.Logger
	now         func() time.Time
}

func NewManager(
	store DeliveryStore,
	stock Stock,
	allocations FarmAllocations,
	farmReader farms.Reader,
	auditLog *auditlog.Auditlog,
	m *metrics.Metrics,
	log *zap.Logger,
) *Manager {
	return &Manager{
		store:       store,
		stock:       stock,
		allocations: allocations,
		farms:       farmReader,
		auditLog:    auditLog,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

func (m *Manager) CreateRequest(ctx context.Context, dbc repository.DatabaseContext, req models.CreateDeliveryRequest, actor int64) (*models.DeliveryBatch, error) {
	if req.FarmID <= 0 {
		return nil, custom_error.Validation("farm_id must be positive")
	}
	if req.RequestedQuantity <= 0 {
		return nil, custom_error.Validation("requested_quantity must be positive")
	}

	result, err := m.store.CreateDelivery(ctx, dbc, DeliveryDraft{
		FarmID:            req.FarmID,
		RequestedQuantity: req.RequestedQuantity,
		RequestedBy:       actor,
		Metadata:          req.Metadata,
	})
	if err != nil {
		m.log.Error("Unable to create delivery request", zap.Int64("farm_id", req.FarmID), zap.Error(err))
		return nil, custom_error.As(err)
	}
	if !result.Success || result.Data == nil {
		return nil, procedureError(result)
	}

	delivery, err := m.Get(ctx, dbc, result.Data.ID)
	if err != nil {
		return nil, err
	}

	m.log.Info("Delivery request created",
		zap.Int64("delivery_id", delivery.ID),
		zap.String("delivery_code", delivery.DeliveryCode),
		zap.Int64("farm_id", delivery.FarmID),
		zap.Int("requested_quantity", delivery.RequestedQuantity),
	)
	m.auditLog.Log(ctx, dbc, "create", req, delivery, actor)
	return delivery, nil
}

func (m *Manager) Get(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.DeliveryBatch, error) {
	delivery, err := m.store.GetDelivery(ctx, dbc, id)
	if err != nil {
		return nil, custom_error.As(err)
	}
	if delivery == nil {
		return nil, custom_error.NotFound(custom_error.CodeDeliveryNotFound, fmt.Sprintf("delivery request %d not found", id))
	}
	return delivery, nil
}

func (m *Manager) List(ctx context.Context, dbc repository.DatabaseContext, filter models.DeliveryFilter) (*models.DeliveryBatchList, error) {
	filter.Page, filter.Limit = models.NormalizePage(filter.Page, filter.Limit)

	deliveries, total, err := m.store.ListDeliveries(ctx, dbc, filter)
	if err != nil {
		return nil, custom_error.As(err)
	}
	if deliveries == nil {
		deliveries = []models.DeliveryBatch{}
	}

	return &models.DeliveryBatchList{
		Data:       deliveries,
		Pagination: models.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

// UpdateStatus applies one transition of the delivery state machine. Moving
// to in_progress reserves requested_quantity codes for the farm after the
// status change is won, so concurrent callers never reserve twice. A
// reservation that fails is rolled back to requested.
func (m *Manager) UpdateStatus(ctx context.Context, dbc repository.DatabaseContext, id int64, req models.UpdateDeliveryStatusRequest, actor int64) (*models.DeliveryStatusUpdate, error) {
	to, err := metadata.NewDeliveryStatus(req.Status)
	if err != nil {
		return nil, custom_error.Validation(err.Error())
	}

	delivery, err := m.Get(ctx, dbc, id)
	if err != nil {
		return nil, err
	}
	from := delivery.CurrentStatus
	if !from.CanTransitionTo(to) {
		return nil, custom_error.Conflict(
			custom_error.CodeInvalidTransition,
			fmt.Sprintf("delivery request %d cannot move from %s to %s", id, from, to),
		)
	}

	if to == metadata.DeliveryStatusInProgress {
		if err := m.checkStock(ctx, dbc, delivery); err != nil {
			return nil, err
		}
	}

	updated, applied, err := m.store.ApplyStatus(ctx, dbc, id, models.StatusChange{
		From:  from,
		To:    to,
		By:    actor,
		At:    m.now().UTC(),
		Notes: req.Notes,
	})
	if err != nil {
		m.log.Error("Unable to update delivery request status", zap.Int64("delivery_id", id), zap.Error(err))
		return nil, custom_error.As(err)
	}
	if !applied {
		current, err := m.Get(ctx, dbc, id)
		if err != nil {
			return nil, err
		}
		return nil, custom_error.Conflict(
			custom_error.CodeInvalidTransition,
			fmt.Sprintf("delivery request %d changed concurrently and is now %s", id, current.CurrentStatus),
		)
	}

	result := &models.DeliveryStatusUpdate{Delivery: updated}
	if to == metadata.DeliveryStatusInProgress {
		fulfilled, report, err := m.fulfill(ctx, dbc, updated, actor)
		if err != nil {
			return nil, err
		}
		result.Delivery = fulfilled
		result.Fulfillment = report
	}

	m.metrics.DeliveryTransitions.WithLabelValues(string(to)).Inc()
	m.log.Info("Delivery request status changed",
		zap.Int64("delivery_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	m.auditLog.Log(ctx, dbc, "status_update", req, result.Delivery, actor)
	return result, nil
}

// Fulfillment compares what was requested with what was reserved for the
// delivery and with the farm's overall allocated stock.
func (m *Manager) Fulfillment(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.FulfillmentSummary, error) {
	delivery, err := m.Get(ctx, dbc, id)
	if err != nil {
		return nil, err
	}

	farmAllocated, err := m.allocations.CountFarmAllocated(ctx, dbc, delivery.FarmID)
	if err != nil {
		return nil, custom_error.As(err)
	}

	summary := &models.FulfillmentSummary{
		DeliveryID:         delivery.ID,
		FarmID:             delivery.FarmID,
		Status:             delivery.CurrentStatus,
		RequestedQuantity:  delivery.RequestedQuantity,
		FarmAllocatedCount: farmAllocated,
		QRIDs:              []int64{},
	}

	record, err := fulfillmentOf(delivery)
	if err != nil {
		m.log.Warn("Unreadable fulfillment record", zap.Int64("delivery_id", id), zap.Error(err))
		return summary, nil
	}
	if record != nil {
		summary.FulfilledQuantity = record.Allocated
		if record.QRIDs != nil {
			summary.QRIDs = record.QRIDs
		}
	}
	return summary, nil
}

func (m *Manager) checkStock(ctx context.Context, dbc repository.DatabaseContext, delivery *models.DeliveryBatch) error {
	if _, err := farms.RequireActive(ctx, m.farms, dbc, delivery.FarmID); err != nil {
		return err
	}

	available, err := m.stock.CountAvailable(ctx, dbc)
	if err != nil {
		return custom_error.As(err)
	}
	if available < delivery.RequestedQuantity {
		return custom_error.Conflict(
			custom_error.CodeInsufficientStock,
			fmt.Sprintf("only %d codes available, %d requested", available, delivery.RequestedQuantity),
		).WithDetails(map[string]int{"available": available, "requested": delivery.RequestedQuantity})
	}
	return nil
}

func (m *Manager) fulfill(ctx context.Context, dbc repository.DatabaseContext, delivery *models.DeliveryBatch, actor int64) (*models.DeliveryBatch, *models.AllocationReport, error) {
	report, err := m.stock.AllocateAvailable(ctx, dbc, delivery.FarmID, delivery.RequestedQuantity, actor)
	if err != nil {
		m.log.Error("Unable to reserve codes for delivery request",
			zap.Int64("delivery_id", delivery.ID),
			zap.Int64("farm_id", delivery.FarmID),
			zap.Error(err),
		)
		return nil, nil, m.rollback(ctx, dbc, delivery, nil, actor, err)
	}

	if len(report.Successful) < delivery.RequestedQuantity {
		m.log.Warn("Delivery request reserved fewer codes than requested",
			zap.Int64("delivery_id", delivery.ID),
			zap.Int("requested", delivery.RequestedQuantity),
			zap.Int("reserved", len(report.Successful)),
		)
	}

	recorded, err := m.store.RecordFulfillment(ctx, dbc, delivery.ID, models.FulfillmentRecord{
		QRIDs:       report.Successful,
		Allocated:   len(report.Successful),
		Failed:      report.Failed,
		AllocatedAt: m.now().UTC(),
	})
	if err != nil {
		m.log.Error("Unable to record delivery fulfillment", zap.Int64("delivery_id", delivery.ID), zap.Error(err))
		return nil, nil, m.rollback(ctx, dbc, delivery, report.Successful, actor, custom_error.As(err))
	}
	if recorded == nil {
		// The delivery left in_progress between the two writes.
		recorded = delivery
	}
	return recorded, report, nil
}

// rollback undoes a reservation that could not be completed. Codes allocated
// for it go back to stock and the delivery returns to requested so the
// transition can be retried. cause is returned unchanged when the rollback
// is complete.
func (m *Manager) rollback(ctx context.Context, dbc repository.DatabaseContext, delivery *models.DeliveryBatch, allocated []int64, actor int64, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if allocated == nil {
		allocated = []int64{}
	}

	released := models.NewAllocationReport()
	if len(allocated) > 0 {
		released = m.stock.Release(ctx, dbc, delivery.FarmID, allocated, actor)
	}

	notes := "reservation failed: " + custom_error.As(cause).Message
	_, reverted, err := m.store.ApplyStatus(ctx, dbc, delivery.ID, models.StatusChange{
		From:  metadata.DeliveryStatusInProgress,
		To:    metadata.DeliveryStatusRequested,
		By:    actor,
		At:    m.now().UTC(),
		Notes: &notes,
	})
	if err != nil {
		m.log.Error("Unable to return delivery request to requested", zap.Int64("delivery_id", delivery.ID), zap.Error(err))
	}
	if reverted && len(released.Failed) == 0 {
		m.log.Warn("Delivery reservation rolled back",
			zap.Int64("delivery_id", delivery.ID),
			zap.Int("released", len(released.Successful)),
		)
		return cause
	}

	m.log.Error("Delivery reservation rollback incomplete",
		zap.Int64("delivery_id", delivery.ID),
		zap.Bool("reverted", reverted),
		zap.Int64s("allocated", allocated),
		zap.Int64s("released", released.Successful),
	)
	return custom_error.Internal(
		fmt.Sprintf("delivery request %d reservation failed and could not be fully rolled back", delivery.ID),
		cause,
	).WithDetails(map[string]interface{}{
		"status_reverted": reverted,
		"allocated":       allocated,
		"released":        released.Successful,
		"not_released":    released.Failed,
	})
}

// procedureError maps the error codes of create_delivery_batch onto the
// error taxonomy.
func procedureError(result *models.DeliveryProcedureResult) error {
	message := result.Message
	if message == "" {
		message = "delivery request could not be created"
	}

	switch result.ErrorCode {
	case custom_error.CodeFarmNotFound, custom_error.CodeUserNotFound:
		return custom_error.NotFound(result.ErrorCode, message)
	case custom_error.CodeFarmInactive, custom_error.CodeDuplicate:
		return custom_error.Conflict(result.ErrorCode, message)
	case custom_error.CodeValidation:
		return custom_error.Validation(message)
	default:
		return custom_error.Internal(message, fmt.Errorf("create_delivery_batch failed with %q", result.ErrorCode))
	}
}

func fulfillmentOf(delivery *models.DeliveryBatch) (*models.FulfillmentRecord, error) {
	value, ok := delivery.Metadata[models.MetadataFulfillment]
	if !ok || value == nil {
		return nil, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var record models.FulfillmentRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
