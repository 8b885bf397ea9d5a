package allocation

import (
	"context"
	"fmt"

	"farmfleet/internal/farms"
	"farmfleet/internal/metrics"
	"farmfleet/internal/repository"
	"farmfleet/pkg/auditlog"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/models"

	"go.uber.org/zap"
)

type Store interface {
	GetByID(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.QRCode, error)
	Allocate(ctx context.Context, dbc repository.DatabaseContext, id int64, farmID int64) (*models.QRCode, bool, error)
	Release(ctx context.Context, dbc repository.DatabaseContext, id int64, farmID int64) (*models.QRCode, bool, error)
	CountAvailable(ctx context.Context, dbc repository.DatabaseContext) (int, error)
	PickAvailable(ctx context.Context, dbc repository.DatabaseContext, limit int) ([]int64, error)
}

// Engine assigns available codes to farms one code at a time. A request for
// many codes is best effort and reports each failure.
type Engine struct {
	store    Store
	farms    farms.Reader
	auditLog *auditlog.Auditlog
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewEngine(store Store, farmReader farms.Reader, auditLog *auditlog.Auditlog, m *metrics.Metrics, log *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		farms:    farmReader,
		auditLog: auditLog,
		metrics:  m,
		log:      log,
	}
}

func (e *Engine) Allocate(ctx context.Context, dbc repository.DatabaseContext, req models.AllocateRequest, actor int64) (*models.AllocationReport, error) {
	if len(req.QRIDs) == 0 {
		return nil, custom_error.Validation("qr_ids must not be empty")
	}
	if req.FarmID <= 0 {
		return nil, custom_error.Validation("farm_id must be positive")
	}
	if _, err := farms.RequireActive(ctx, e.farms, dbc, req.FarmID); err != nil {
		return nil, err
	}

	report := e.allocateEach(ctx, dbc, req.QRIDs, req.FarmID, actor)

	e.log.Info("Allocation finished",
		zap.Int64("farm_id", req.FarmID),
		zap.Int("requested", len(req.QRIDs)),
		zap.Int("successful", len(report.Successful)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// AllocateAvailable allocates up to quantity codes from stock in print order.
// Codes lost to concurrent allocators show up in Failed; the caller decides
// whether a short fill is acceptable.
func (e *Engine) AllocateAvailable(ctx context.Context, dbc repository.DatabaseContext, farmID int64, quantity int, actor int64) (*models.AllocationReport, error) {
	if quantity <= 0 {
		return nil, custom_error.Validation("quantity must be positive")
	}
	if _, err := farms.RequireActive(ctx, e.farms, dbc, farmID); err != nil {
		return nil, err
	}

	ids, err := e.store.PickAvailable(ctx, dbc, quantity)
	if err != nil {
		return nil, custom_error.As(err)
	}

	report := e.allocateEach(ctx, dbc, ids, farmID, actor)

	e.log.Info("Stock allocation finished",
		zap.Int64("farm_id", farmID),
		zap.Int("quantity", quantity),
		zap.Int("picked", len(ids)),
		zap.Int("successful", len(report.Successful)),
	)
	return report, nil
}

// Release returns codes allocated to farmID to stock. Codes that were bound
// or moved on in the meantime are reported in Failed and left untouched.
func (e *Engine) Release(ctx context.Context, dbc repository.DatabaseContext, farmID int64, ids []int64, actor int64) *models.AllocationReport {
	report := models.NewAllocationReport()

	for _, id := range ids {
		code, applied, err := e.store.Release(ctx, dbc, id, farmID)
		if err != nil {
			e.log.Error("Unable to release QR code", zap.Int64("qr_id", id), zap.Int64("farm_id", farmID), zap.Error(err))
			report.Fail(id, "unable to release qr code")
			continue
		}
		if !applied {
			report.Fail(id, e.refusalReason(ctx, dbc, id))
			continue
		}

		report.Succeed(id)
		e.metrics.Allocations.WithLabelValues("released").Inc()
		e.auditLog.Log(ctx, dbc, "release", map[string]interface{}{"farm_id": farmID}, code, actor)
	}

	e.log.Info("Release finished",
		zap.Int64("farm_id", farmID),
		zap.Int("requested", len(ids)),
		zap.Int("released", len(report.Successful)),
	)
	return report
}

func (e *Engine) CountAvailable(ctx context.Context, dbc repository.DatabaseContext) (int, error) {
	count, err := e.store.CountAvailable(ctx, dbc)
	if err != nil {
		return 0, custom_error.As(err)
	}
	return count, nil
}

func (e *Engine) allocateEach(ctx context.Context, dbc repository.DatabaseContext, ids []int64, farmID int64, actor int64) *models.AllocationReport {
	report := models.NewAllocationReport()
	seen := make(map[int64]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			report.Fail(id, "duplicate id in request")
			e.metrics.Allocations.WithLabelValues("failed").Inc()
			continue
		}
		seen[id] = true

		code, applied, err := e.store.Allocate(ctx, dbc, id, farmID)
		if err != nil {
			e.log.Error("Unable to allocate QR code", zap.Int64("qr_id", id), zap.Int64("farm_id", farmID), zap.Error(err))
			report.Fail(id, "unable to allocate qr code")
			e.metrics.Allocations.WithLabelValues("failed").Inc()
			continue
		}
		if !applied {
			report.Fail(id, e.refusalReason(ctx, dbc, id))
			e.metrics.Allocations.WithLabelValues("failed").Inc()
			continue
		}

		report.Succeed(id)
		e.metrics.Allocations.WithLabelValues("success").Inc()
		e.auditLog.Log(ctx, dbc, "allocate", map[string]interface{}{"farm_id": farmID}, code, actor)
	}

	return report
}

// refusalReason re-reads a code whose conditional update matched nothing.
func (e *Engine) refusalReason(ctx context.Context, dbc repository.DatabaseContext, id int64) string {
	code, err := e.store.GetByID(ctx, dbc, id)
	if err != nil {
		e.log.Warn("Unable to load QR code after refused allocation", zap.Int64("qr_id", id), zap.Error(err))
		return "qr code is not available"
	}

	switch {
	case code == nil:
		return "qr code not found"
	case code.IsDefective():
		return "qr code is flagged defective"
	case code.FarmID != nil:
		return fmt.Sprintf("qr code is %s for farm %d", code.Status, *code.FarmID)
	default:
		return fmt.Sprintf("qr code is %s", code.Status)
	}
}
