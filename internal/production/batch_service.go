package production

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farmfleet/internal/metrics"
	"farmfleet/internal/repository"
	"farmfleet/pkg/auditlog"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"go.uber.org/zap"
)

type BatchStore interface {
	CreateBatch(ctx context.Context, dbc repository.DatabaseContext, draft BatchDraft, minter Minter) (*models.ProductionBatch, error)
	GetBatch(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.ProductionBatch, error)
	ListBatches(ctx context.Context, dbc repository.DatabaseContext, filter models.BatchFilter) ([]models.ProductionBatch, int, error)
	BatchCodes(ctx context.Context, dbc repository.DatabaseContext, batchID int64) ([]models.QRCode, error)
	ApplyStatus(ctx context.Context, dbc repository.DatabaseContext, change BatchTransition) (*models.ProductionBatch, bool, error)
}

// DefectReporter notifies the supplier about defective units of a batch.
type DefectReporter interface {
	ReportDefects(ctx context.Context, batch models.ProductionBatch, ledger models.DefectLedger) error
}

type Manager struct {
	store    BatchStore
	minter   Minter
	auditLog *auditlog.Auditlog
	reporter DefectReporter
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time

	reports sync.WaitGroup
}

// NewManager builds the batch manager. reporter may be nil when no supplier
// integration is configured.
func NewManager(
	store BatchStore,
	minter Minter,
	auditLog *auditlog.Auditlog,
	reporter DefectReporter,
	m *metrics.Metrics,
	log *zap.Logger,
) *Manager {
	return &Manager{
		store:    store,
		minter:   minter,
		auditLog: auditLog,
		reporter: reporter,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (m *Manager) CreateBatch(ctx context.Context, dbc repository.DatabaseContext, req models.CreateBatchRequest, actor int64) (*models.ProductionBatch, error) {
	if req.Quantity < models.MinBatchQuantity || req.Quantity > models.MaxBatchQuantity {
		return nil, custom_error.Validation(fmt.Sprintf("quantity must be between %d and %d", models.MinBatchQuantity, models.MaxBatchQuantity))
	}
	if req.SupplierID <= 0 {
		return nil, custom_error.Validation("supplier_id must be positive")
	}

	batch, err := m.store.CreateBatch(ctx, dbc, BatchDraft{
		Quantity:   req.Quantity,
		SupplierID: req.SupplierID,
		Notes:      req.Notes,
		CreatedBy:  actor,
	}, m.minter)
	if err != nil {
		m.log.Error("Unable to create production batch",
			zap.Int("quantity", req.Quantity),
			zap.Int64("supplier_id", req.SupplierID),
			zap.Error(err),
		)
		return nil, custom_error.As(err)
	}

	m.metrics.QRCodesCreated.Add(float64(len(batch.QRCodes)))
	m.log.Info("Production batch created",
		zap.Int64("batch_id", batch.ID),
		zap.String("batch_code", batch.BatchCode),
		zap.Int("quantity", batch.Quantity),
	)
	m.auditLog.Log(ctx, dbc, "create", map[string]interface{}{
		"batch_code":  batch.BatchCode,
		"quantity":    batch.Quantity,
		"supplier_id": batch.SupplierID,
	}, batch, actor)

	return batch, nil
}

func (m *Manager) GetBatch(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.ProductionBatch, error) {
	batch, err := m.store.GetBatch(ctx, dbc, id)
	if err != nil {
		return nil, custom_error.As(err)
	}
	if batch == nil {
		return nil, custom_error.NotFound(custom_error.CodeBatchNotFound, fmt.Sprintf("production batch %d not found", id))
	}
	return batch, nil
}

// GetBatchWithCodes loads the batch and its codes in print order.
func (m *Manager) GetBatchWithCodes(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.ProductionBatch, error) {
	batch, err := m.GetBatch(ctx, dbc, id)
	if err != nil {
		return nil, err
	}

	codes, err := m.store.BatchCodes(ctx, dbc, id)
	if err != nil {
		return nil, custom_error.As(err)
	}
	batch.QRCodes = codes
	return batch, nil
}

func (m *Manager) ListBatches(ctx context.Context, dbc repository.DatabaseContext, filter models.BatchFilter) (*models.ProductionBatchList, error) {
	filter.Page, filter.Limit = models.NormalizePage(filter.Page, filter.Limit)

	batches, total, err := m.store.ListBatches(ctx, dbc, filter)
	if err != nil {
		return nil, custom_error.As(err)
	}
	if batches == nil {
		batches = []models.ProductionBatch{}
	}

	return &models.ProductionBatchList{
		Data:       batches,
		Pagination: models.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

// UpdateStatus moves a batch along its transition table. Defect declarations
// are checked in full before anything is written.
func (m *Manager) UpdateStatus(ctx context.Context, dbc repository.DatabaseContext, id int64, req models.UpdateBatchStatusRequest, actor int64) (*models.ProductionBatch, error) {
	to, err := metadata.NewProductionBatchStatus(req.Status)
	if err != nil {
		return nil, custom_error.Validation(err.Error())
	}

	batch, err := m.GetBatch(ctx, dbc, id)
	if err != nil {
		return nil, err
	}

	defects, err := normalizeDefects(req.DefectiveInfo, to, batch.Quantity)
	if err != nil {
		return nil, err
	}

	if !batch.Status.CanTransitionTo(to) {
		return nil, custom_error.Conflict(
			custom_error.CodeInvalidTransition,
			fmt.Sprintf("production batch cannot move from %s to %s", batch.Status, to),
		)
	}

	change := BatchTransition{
		BatchID: batch.ID,
		From:    batch.Status,
		To:      to,
		Notes:   req.Notes,
	}

	if defects != nil {
		codes, err := m.store.BatchCodes(ctx, dbc, batch.ID)
		if err != nil {
			return nil, custom_error.As(err)
		}
		qrIDs, err := resolveDefects(defects, codes)
		if err != nil {
			return nil, err
		}
		change.Ledger = &models.DefectLedger{
			Count:      defects.DefectiveCount,
			Positions:  defects.Positions,
			ShortCodes: defects.ShortCodes,
			QRIDs:      qrIDs,
			RecordedAt: m.now().UTC(),
			RecordedBy: actor,
		}
	}

	updated, applied, err := m.store.ApplyStatus(ctx, dbc, change)
	if err != nil {
		m.log.Error("Unable to update production batch status",
			zap.Int64("batch_id", batch.ID),
			zap.String("from", change.From.String()),
			zap.String("to", to.String()),
			zap.Error(err),
		)
		return nil, custom_error.As(err)
	}
	if !applied {
		current, err := m.GetBatch(ctx, dbc, batch.ID)
		if err != nil {
			return nil, err
		}
		return nil, custom_error.Conflict(
			custom_error.CodeInvalidTransition,
			fmt.Sprintf("production batch status changed concurrently to %s", current.Status),
		)
	}

	m.metrics.BatchTransitions.WithLabelValues(to.String()).Inc()
	m.log.Info("Production batch status changed",
		zap.Int64("batch_id", updated.ID),
		zap.String("from", change.From.String()),
		zap.String("to", updated.Status.String()),
	)

	audit := map[string]interface{}{"from": change.From, "to": to}
	if req.Notes != nil {
		audit["notes"] = *req.Notes
	}
	if change.Ledger != nil {
		audit["defects"] = change.Ledger
	}
	m.auditLog.Log(ctx, dbc, "status_update", audit, updated, actor)

	if change.Ledger != nil {
		m.reportDefects(ctx, *updated, *change.Ledger)
	}

	return updated, nil
}

func (m *Manager) reportDefects(ctx context.Context, batch models.ProductionBatch, ledger models.DefectLedger) {
	if m.reporter == nil {
		return
	}

	m.reports.Add(1)
	go func() {
		defer m.reports.Done()

		if err := m.reporter.ReportDefects(context.WithoutCancel(ctx), batch, ledger); err != nil {
			m.log.Warn("Unable to report batch defects to supplier",
				zap.Int64("batch_id", batch.ID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until pending defect reports finish.
func (m *Manager) Wait() {
	m.reports.Wait()
}
