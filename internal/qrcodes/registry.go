package qrcodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"farmfleet/internal/farms"
	"farmfleet/internal/metrics"
	"farmfleet/internal/repository"
	"farmfleet/pkg/auditlog"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxShortCodeAttempts = 5

type Store interface {
	Querier(dbc repository.DatabaseContext) (repository.Querier, error)
	ShortCodeExists(ctx context.Context, q repository.Querier, shortCode string) (bool, error)
	InsertIfAbsent(ctx context.Context, q repository.Querier, code models.QRCode) (*models.QRCode, bool, error)
	GetByID(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.QRCode, error)
	GetByShortCode(ctx context.Context, dbc repository.DatabaseContext, shortCode string) (*models.QRCode, error)
	List(ctx context.Context, dbc repository.DatabaseContext, filter models.QRCodeFilter) ([]models.QRCode, int, error)
	UpdateStatus(ctx context.Context, dbc repository.DatabaseContext, id int64, from []metadata.QRStatus, to metadata.QRStatus) (*models.QRCode, bool, error)
	Unbind(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.QRCode, bool, error)
	Delete(ctx context.Context, dbc repository.DatabaseContext, id int64) (bool, error)
	CountByStatus(ctx context.Context, dbc repository.DatabaseContext, farmID *int64) (*models.QRCodeStats, error)
}

// Registry owns QR code identity: minting, lookup and the plain status
// moves that need no other aggregate.
type Registry struct {
	store     Store
	farms     farms.Reader
	auditLog  *auditlog.Auditlog
	generator *metadata.ShortCodeGenerator
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func NewRegistry(
	store Store,
	farmReader farms.Reader,
	auditLog *auditlog.Auditlog,
	generator *metadata.ShortCodeGenerator,
	m *metrics.Metrics,
	log *zap.Logger,
) *Registry {
	return &Registry{
		store:     store,
		farms:     farmReader,
		auditLog:  auditLog,
		generator: generator,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

func (r *Registry) Generate(ctx context.Context, dbc repository.DatabaseContext, req models.GenerateQRCodeRequest, actor int64) (*models.QRCode, error) {
	template := models.QRCode{
		Status:   metadata.QRStatusAvailable,
		Metadata: req.Metadata.Clone(),
	}

	if (req.AssetType == nil) != (req.AssetID == nil) {
		return nil, custom_error.Validation("asset_type and asset_id must be provided together")
	}

	if req.FarmID != nil {
		if _, err := farms.RequireActive(ctx, r.farms, dbc, *req.FarmID); err != nil {
			return nil, err
		}
		template.FarmID = req.FarmID
		template.Status = metadata.QRStatusAllocated
	}

	if req.AssetType != nil {
		assetType, err := metadata.NewAssetType(*req.AssetType)
		if err != nil {
			return nil, custom_error.Validation(err.Error())
		}
		if *req.AssetID <= 0 {
			return nil, custom_error.Validation("asset_id must be positive")
		}
		if req.FarmID == nil {
			return nil, custom_error.Validation("a bound code requires farm_id")
		}
		boundAt := r.now()
		template.AssetType = &assetType
		template.AssetID = req.AssetID
		template.BoundAt = &boundAt
		template.Status = metadata.QRStatusBound
	}

	q, err := r.store.Querier(dbc)
	if err != nil {
		return nil, custom_error.As(err)
	}

	code, err := r.Mint(ctx, q, template)
	if err != nil {
		return nil, err
	}
	r.metrics.QRCodesCreated.Inc()

	r.log.Info("QR code generated",
		zap.Int64("qr_id", code.ID),
		zap.String("short_code", code.ShortCode),
		zap.String("status", code.Status.String()),
	)
	r.auditLog.Log(ctx, dbc, "create", code, code, actor)

	return code, nil
}

// Mint inserts template under a fresh uuid and short code. Collisions are
// retried with a new short code; the insert itself is conflict tolerant, so
// Mint is safe inside a caller's transaction.
func (r *Registry) Mint(ctx context.Context, q repository.Querier, template models.QRCode) (*models.QRCode, error) {
	if template.Metadata == nil {
		template.Metadata = models.Metadata{}
	}

	for attempt := 1; attempt <= maxShortCodeAttempts; attempt++ {
		shortCode, err := r.reserveShortCode(ctx, q)
		if err != nil {
			return nil, err
		}
		if shortCode == "" {
			continue
		}

		template.UUID = uuid.NewString()
		template.ShortCode = shortCode

		code, inserted, err := r.store.InsertIfAbsent(ctx, q, template)
		if err != nil {
			r.log.Error("Unable to insert QR code", zap.Error(err))
			return nil, custom_error.As(err)
		}
		if inserted {
			return code, nil
		}

		r.log.Debug("Short code taken at insert, retrying", zap.String("short_code", shortCode), zap.Int("attempt", attempt))
	}

	return nil, custom_error.Conflict(
		custom_error.CodeShortCodeExhausted,
		fmt.Sprintf("unable to allocate a unique short code after %d attempts", maxShortCodeAttempts),
	)
}

// reserveShortCode returns an unused candidate, or "" when the candidate is
// already taken.
func (r *Registry) reserveShortCode(ctx context.Context, q repository.Querier) (string, error) {
	candidate := r.generator.Next().String()

	exists, err := r.store.ShortCodeExists(ctx, q, candidate)
	if err != nil {
		return "", custom_error.Internal("unable to check short code", err)
	}
	if exists {
		r.log.Debug("Short code collision", zap.String("short_code", candidate))
		return "", nil
	}
	return candidate, nil
}

func (r *Registry) Get(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.QRCode, error) {
	code, err := r.store.GetByID(ctx, dbc, id)
	if err != nil {
		return nil, custom_error.As(err)
	}
	if code == nil {
		return nil, custom_error.NotFound(custom_error.CodeQRNotFound, fmt.Sprintf("qr code %d not found", id))
	}
	return code, nil
}

func (r *Registry) GetByShortCode(ctx context.Context, dbc repository.DatabaseContext, shortCode string) (*models.QRCode, error) {
	shortCode = strings.ToUpper(strings.TrimSpace(shortCode))
	if shortCode == "" {
		return nil, custom_error.Validation("short code is required")
	}

	code, err := r.store.GetByShortCode(ctx, dbc, shortCode)
	if err != nil {
		return nil, custom_error.As(err)
	}
	if code == nil {
		return nil, custom_error.NotFound(custom_error.CodeQRNotFound, fmt.Sprintf("qr code %s not found", shortCode))
	}
	return code, nil
}

func (r *Registry) List(ctx context.Context, dbc repository.DatabaseContext, filter models.QRCodeFilter) (*models.QRCodeList, error) {
	filter.Page, filter.Limit = models.NormalizePage(filter.Page, filter.Limit)

	codes, total, err := r.store.List(ctx, dbc, filter)
	if err != nil {
		return nil, custom_error.As(err)
	}
	if codes == nil {
		codes = []models.QRCode{}
	}

	return &models.QRCodeList{
		Data:       codes,
		Pagination: models.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (r *Registry) MarkDelivered(ctx context.Context, dbc repository.DatabaseContext, id int64, actor int64) (*models.QRCode, error) {
	code, err := r.Get(ctx, dbc, id)
	if err != nil {
		return nil, err
	}

	updated, reason, err := r.transition(ctx, dbc, code, metadata.QRStatusDelivered)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, custom_error.Conflict(custom_error.CodeInvalidTransition, reason)
	}

	r.auditLog.Log(ctx, dbc, "deliver", map[string]interface{}{"from": code.Status}, updated, actor)
	return updated, nil
}

// Delete removes a code. Administrative only; lifecycle never deletes.
func (r *Registry) Delete(ctx context.Context, dbc repository.DatabaseContext, id int64, actor int64) error {
	deleted, err := r.store.Delete(ctx, dbc, id)
	if err != nil {
		return custom_error.As(err)
	}
	if !deleted {
		return custom_error.NotFound(custom_error.CodeQRNotFound, fmt.Sprintf("qr code %d not found", id))
	}

	r.log.Info("QR code deleted", zap.Int64("qr_id", id), zap.Int64("actor", actor))
	code := models.QRCode{ID: id}
	r.auditLog.Log(ctx, dbc, "delete", nil, &code, actor)
	return nil
}

// UpdateStatusBulk applies one target status to many codes, each on its own.
// One bad id never fails the others.
func (r *Registry) UpdateStatusBulk(ctx context.Context, dbc repository.DatabaseContext, req models.BulkStatusRequest, actor int64) (*models.AllocationReport, error) {
	to, err := metadata.NewQRStatus(req.Status)
	if err != nil {
		return nil, custom_error.Validation(err.Error())
	}
	if len(req.QRIDs) == 0 {
		return nil, custom_error.Validation("qr_ids must not be empty")
	}

	report := models.NewAllocationReport()
	seen := make(map[int64]bool, len(req.QRIDs))

	for _, id := range req.QRIDs {
		if seen[id] {
			report.Fail(id, "duplicate id in request")
			continue
		}
		seen[id] = true

		code, err := r.store.GetByID(ctx, dbc, id)
		if err != nil {
			r.log.Error("Unable to load QR code for bulk update", zap.Int64("qr_id", id), zap.Error(err))
			report.Fail(id, "unable to load qr code")
			continue
		}
		if code == nil {
			report.Fail(id, "qr code not found")
			continue
		}

		updated, reason, err := r.transition(ctx, dbc, code, to)
		if err != nil {
			r.log.Error("Unable to update QR code status", zap.Int64("qr_id", id), zap.Error(err))
			report.Fail(id, "unable to update qr code")
			continue
		}
		if updated == nil {
			report.Fail(id, reason)
			continue
		}

		report.Succeed(id)
		r.auditLog.Log(ctx, dbc, "status_update", map[string]interface{}{"from": code.Status, "to": to}, updated, actor)
	}

	r.log.Info("Bulk QR status update finished",
		zap.String("to", to.String()),
		zap.Int("successful", len(report.Successful)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (r *Registry) Stats(ctx context.Context, dbc repository.DatabaseContext, farmID *int64) (*models.QRCodeStats, error) {
	stats, err := r.store.CountByStatus(ctx, dbc, farmID)
	if err != nil {
		return nil, custom_error.As(err)
	}
	return stats, nil
}

// transition performs moves that carry no payload. Allocation and binding
// need a farm or an asset and go through their own services. A nil code with
// a reason means the move was refused.
func (r *Registry) transition(ctx context.Context, dbc repository.DatabaseContext, code *models.QRCode, to metadata.QRStatus) (*models.QRCode, string, error) {
	event, ok := metadata.QREventFor(code.Status, to)
	if !ok {
		return nil, fmt.Sprintf("cannot move qr code from %s to %s", code.Status, to), nil
	}

	var (
		updated *models.QRCode
		applied bool
		err     error
	)
	switch event {
	case metadata.QREventDeliver:
		updated, applied, err = r.store.UpdateStatus(ctx, dbc, code.ID, metadata.QRSourcesFor(event), to)
	case metadata.QREventUnbind:
		updated, applied, err = r.store.Unbind(ctx, dbc, code.ID)
	default:
		return nil, fmt.Sprintf("moving to %s requires the %s operation", to, event), nil
	}
	if err != nil {
		return nil, "", err
	}

	if !applied {
		current, err := r.store.GetByID(ctx, dbc, code.ID)
		if err != nil {
			return nil, "", err
		}
		if current == nil {
			return nil, "qr code not found", nil
		}
		return nil, fmt.Sprintf("qr code status changed concurrently to %s", current.Status), nil
	}

	r.log.Info("QR code status changed",
		zap.Int64("qr_id", code.ID),
		zap.String("from", code.Status.String()),
		zap.String("to", updated.Status.String()),
	)
	return updated, "", nil
}
