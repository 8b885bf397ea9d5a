package binding

import (
	"context"
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

type Store interface {
	GetByID(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.QRCode, error)
	FindByAsset(ctx context.Context, dbc repository.DatabaseContext, assetType metadata.AssetType, assetID int64) ([]models.QRCode, error)
	Bind(ctx context.Context, dbc repository.DatabaseContext, id int64, farmID int64, assetType metadata.AssetType, assetID int64, boundAt time.Time) (*models.QRCode, bool, error)
	Unbind(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.QRCode, bool, error)
}

// Service attaches allocated codes to physical assets and releases them.
type Service struct {
	store    Store
	farms    farms.Reader
	auditLog *auditlog.Auditlog
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store Store, farmReader farms.Reader, auditLog *auditlog.Auditlog, m *metrics.Metrics, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		farms:    farmReader,
		auditLog: auditLog,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Bind(ctx context.Context, dbc repository.DatabaseContext, qrID int64, req models.BindRequest, actor int64) (*models.QRCode, error) {
	assetType, err := metadata.NewAssetType(req.AssetType)
	if err != nil {
		return nil, custom_error.Validation(err.Error())
	}
	if req.AssetID <= 0 {
		return nil, custom_error.Validation("asset_id must be positive")
	}

	code, err := s.get(ctx, dbc, qrID)
	if err != nil {
		return nil, err
	}
	if err := bindRefusal(code); err != nil {
		return nil, err
	}
	if req.FarmID != nil && *req.FarmID != *code.FarmID {
		return nil, custom_error.Conflict(
			custom_error.CodeFarmMismatch,
			fmt.Sprintf("qr code %d is allocated to farm %d, not %d", code.ID, *code.FarmID, *req.FarmID),
		)
	}
	farmID := *code.FarmID
	if _, err := farms.RequireActive(ctx, s.farms, dbc, farmID); err != nil {
		return nil, err
	}

	bound, applied, err := s.store.Bind(ctx, dbc, qrID, farmID, assetType, req.AssetID, s.now().UTC())
	if err != nil {
		s.log.Error("Unable to bind QR code", zap.Int64("qr_id", qrID), zap.Error(err))
		return nil, custom_error.As(err)
	}
	if !applied {
		// Lost a race; report what the winner left behind.
		current, err := s.get(ctx, dbc, qrID)
		if err != nil {
			return nil, err
		}
		if err := bindRefusal(current); err != nil {
			return nil, err
		}
		if *current.FarmID != farmID {
			return nil, custom_error.Conflict(
				custom_error.CodeFarmMismatch,
				fmt.Sprintf("qr code %d was reallocated to farm %d", qrID, *current.FarmID),
			)
		}
		return nil, custom_error.Conflict(custom_error.CodeInvalidTransition, fmt.Sprintf("qr code %d changed concurrently", qrID))
	}

	s.metrics.Bindings.WithLabelValues("bind").Inc()
	s.log.Info("QR code bound",
		zap.Int64("qr_id", qrID),
		zap.String("asset_type", string(assetType)),
		zap.Int64("asset_id", req.AssetID),
		zap.Int64("farm_id", *bound.FarmID),
	)
	s.auditLog.Log(ctx, dbc, "bind", req, bound, actor)
	return bound, nil
}

// Unbind returns a bound code to stock. Its farm allocation is released
// with the asset. Codes of inactive farms stay bound; the bulk status
// endpoint remains available to administrators.
func (s *Service) Unbind(ctx context.Context, dbc repository.DatabaseContext, qrID int64, actor int64) (*models.QRCode, error) {
	code, err := s.get(ctx, dbc, qrID)
	if err != nil {
		return nil, err
	}
	if code.Status != metadata.QRStatusBound {
		return nil, notBound(code)
	}
	if code.FarmID != nil {
		if _, err := farms.RequireActive(ctx, s.farms, dbc, *code.FarmID); err != nil {
			return nil, err
		}
	}

	released, applied, err := s.store.Unbind(ctx, dbc, qrID)
	if err != nil {
		s.log.Error("Unable to unbind QR code", zap.Int64("qr_id", qrID), zap.Error(err))
		return nil, custom_error.As(err)
	}
	if !applied {
		current, err := s.get(ctx, dbc, qrID)
		if err != nil {
			return nil, err
		}
		return nil, notBound(current)
	}

	s.metrics.Bindings.WithLabelValues("unbind").Inc()
	s.log.Info("QR code unbound",
		zap.Int64("qr_id", qrID),
		zap.Stringp("asset_type", (*string)(code.AssetType)),
		zap.Int64p("asset_id", code.AssetID),
	)
	s.auditLog.Log(ctx, dbc, "unbind", map[string]interface{}{
		"asset_type": code.AssetType,
		"asset_id":   code.AssetID,
		"farm_id":    code.FarmID,
	}, released, actor)
	return released, nil
}

func (s *Service) FindByAsset(ctx context.Context, dbc repository.DatabaseContext, assetType string, assetID int64) ([]models.QRCode, error) {
	parsed, err := metadata.NewAssetType(assetType)
	if err != nil {
		return nil, custom_error.Validation(err.Error())
	}

	codes, err := s.store.FindByAsset(ctx, dbc, parsed, assetID)
	if err != nil {
		return nil, custom_error.As(err)
	}
	if codes == nil {
		codes = []models.QRCode{}
	}
	return codes, nil
}

func (s *Service) get(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.QRCode, error) {
	code, err := s.store.GetByID(ctx, dbc, id)
	if err != nil {
		return nil, custom_error.As(err)
	}
	if code == nil {
		return nil, custom_error.NotFound(custom_error.CodeQRNotFound, fmt.Sprintf("qr code %d not found", id))
	}
	return code, nil
}

func bindRefusal(code *models.QRCode) error {
	switch {
	case code.Status == metadata.QRStatusBound:
		message := fmt.Sprintf("qr code %d is already bound", code.ID)
		if code.AssetType != nil && code.AssetID != nil {
			message = fmt.Sprintf("qr code %d is already bound to %s %d", code.ID, *code.AssetType, *code.AssetID)
		}
		return custom_error.Conflict(custom_error.CodeQRAlreadyBound, message)
	case code.Status != metadata.QRStatusAllocated || code.FarmID == nil:
		return custom_error.Conflict(
			custom_error.CodeQRNotAllocated,
			fmt.Sprintf("qr code %d is %s and must be allocated to a farm before binding", code.ID, code.Status),
		)
	}
	return nil
}

func notBound(code *models.QRCode) error {
	return custom_error.Conflict(custom_error.CodeQRNotBound, fmt.Sprintf("qr code %d is %s, not bound", code.ID, code.Status))
}
