package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

const (
	batchTable      = "production_batches"
	allocationTable = "qr_allocations"
)

var batchColumns = []interface{}{
	"id", "batch_code", "quantity", "supplier_id", "status", "notes", "metadata", "created_at", "updated_at",
}

var errStatusChanged = errors.New("batch status changed concurrently")

// BatchDraft is a validated request to print a new batch.
type BatchDraft struct {
	Quantity   int
	SupplierID int64
	Notes      *string
	CreatedBy  int64
}

// BatchTransition is one guarded status change, optionally carrying the
// defect ledger to record in the same transaction.
type BatchTransition struct {
	BatchID int64
	From    metadata.ProductionBatchStatus
	To      metadata.ProductionBatchStatus
	Notes   *string
	Ledger  *models.DefectLedger
}

// Minter creates a QR code on the given querier, retrying short code
// collisions.
type Minter interface {
	Mint(ctx context.Context, q repository.Querier, template models.QRCode) (*models.QRCode, error)
}

type BatchRepository struct {
	store *repository.Store
}

func NewRepository(store *repository.Store) *BatchRepository {
	return &BatchRepository{store: store}
}

// CreateBatch reserves a batch code, inserts the batch and exactly
// draft.Quantity codes at positions 1..Quantity. Nothing survives a failure.
func (r *BatchRepository) CreateBatch(ctx context.Context, dbc repository.DatabaseContext, draft BatchDraft, minter Minter) (*models.ProductionBatch, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	var batch models.ProductionBatch
	err = repository.WithTransaction(ctx, repo.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		var batchCode string
		if _, err := tx.ScanValContext(ctx, &batchCode, "SELECT next_batch_code()"); err != nil {
			return custom_error.WrapDBError("failed to reserve batch code", err)
		}

		record := goqu.Record{
			"batch_code":  batchCode,
			"quantity":    draft.Quantity,
			"supplier_id": draft.SupplierID,
			"status":      string(metadata.BatchStatusOrdered),
			"metadata":    models.Metadata{"created_by": draft.CreatedBy},
		}
		if draft.Notes != nil {
			record["notes"] = *draft.Notes
		}

		found, err := tx.Insert(batchTable).
			Rows(record).
			Returning(batchColumns...).
			Executor().
			ScanStructContext(ctx, &batch)
		if err != nil {
			return custom_error.WrapDBError("failed to insert production batch", err)
		}
		if !found {
			return fmt.Errorf("production batch insert returned no row")
		}

		codes := make([]models.QRCode, 0, draft.Quantity)
		allocations := make([]interface{}, 0, draft.Quantity)
		for position := 1; position <= draft.Quantity; position++ {
			printPosition := position
			code, err := minter.Mint(ctx, tx, models.QRCode{
				Status:        metadata.QRStatusAvailable,
				BatchID:       &batch.ID,
				PrintPosition: &printPosition,
				Metadata:      models.Metadata{},
			})
			if err != nil {
				return fmt.Errorf("failed to create code at position %d: %w", position, err)
			}
			codes = append(codes, *code)

			allocation := goqu.Record{"qr_code_id": code.ID, "batch_id": batch.ID}
			if draft.Notes != nil {
				allocation["notes"] = *draft.Notes
			}
			allocations = append(allocations, allocation)
		}

		if _, err := tx.Insert(allocationTable).Rows(allocations...).Executor().ExecContext(ctx); err != nil {
			return custom_error.WrapDBError("failed to insert qr allocations", err)
		}

		batch.QRCodes = codes
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &batch, nil
}

func (r *BatchRepository) GetBatch(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.ProductionBatch, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	var batch models.ProductionBatch
	found, err := repo.GoquDBWrapper.From(batchTable).
		Select(batchColumns...).
		Where(goqu.Ex{"id": id}).
		Executor().
		ScanStructContext(ctx, &batch)
	if err != nil {
		return nil, fmt.Errorf("unable to select production batch: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &batch, nil
}

func (r *BatchRepository) ListBatches(ctx context.Context, dbc repository.DatabaseContext, filter models.BatchFilter) ([]models.ProductionBatch, int, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, 0, err
	}

	conditions := repository.NewQueryBuilder()
	repository.OptionalEnum(conditions, "status", filter.Status)
	repository.Optional(conditions, "supplier_id", filter.SupplierID)
	where := conditions.BuildConditions(map[string]string{
		"status":      "status",
		"supplier_id": "supplier_id",
	})

	base := repo.GoquDBWrapper.From(batchTable).Where(where)

	var total int
	if _, err := base.Select(goqu.COUNT("*")).Executor().ScanValContext(ctx, &total); err != nil {
		return nil, 0, fmt.Errorf("unable to count production batches: %w", err)
	}

	page := models.NewPagination(filter.Page, filter.Limit, total)
	var batches []models.ProductionBatch
	err = base.Select(batchColumns...).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc()).
		Offset(uint(page.Offset())).
		Limit(uint(page.Limit)).
		Executor().
		ScanStructsContext(ctx, &batches)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to select production batches: %w", err)
	}
	return batches, total, nil
}

func (r *BatchRepository) BatchCodes(ctx context.Context, dbc repository.DatabaseContext, batchID int64) ([]models.QRCode, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	var codes []models.QRCode
	err = repo.GoquDBWrapper.From("qr_codes").
		Select("id", "uuid", "short_code", "status", "farm_id", "asset_type", "asset_id",
			"batch_id", "print_position", "bound_at", "metadata", "created_at", "updated_at").
		Where(goqu.Ex{"batch_id": batchID}).
		Order(goqu.I("print_position").Asc()).
		Executor().
		ScanStructsContext(ctx, &codes)
	if err != nil {
		return nil, fmt.Errorf("unable to select batch codes: %w", err)
	}
	return codes, nil
}

// ApplyStatus runs the guarded status update and the defect remediation in
// one transaction. It reports false when the batch was no longer in
// change.From.
func (r *BatchRepository) ApplyStatus(ctx context.Context, dbc repository.DatabaseContext, change BatchTransition) (*models.ProductionBatch, bool, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, false, err
	}

	var batch models.ProductionBatch
	err = repository.WithTransaction(ctx, repo.GoquDBWrapper, func(tx *goqu.TxDatabase) error {
		query, err := statusUpdateQuery(tx, change)
		if err != nil {
			return err
		}

		found, err := query.Executor().ScanStructContext(ctx, &batch)
		if err != nil {
			return custom_error.WrapDBError("failed to update production batch status", err)
		}
		if !found {
			return errStatusChanged
		}

		if change.Ledger == nil || len(change.Ledger.QRIDs) == 0 {
			return nil
		}

		result, err := flagDefectiveQuery(tx, change.BatchID, change.Ledger.QRIDs).Executor().ExecContext(ctx)
		if err != nil {
			return custom_error.WrapDBError("failed to flag defective codes", err)
		}
		flagged, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if int(flagged) != len(change.Ledger.QRIDs) {
			return custom_error.New(
				custom_error.KindValidation,
				custom_error.CodeDefectiveMismatch,
				fmt.Sprintf("flagged %d of %d defective codes", flagged, len(change.Ledger.QRIDs)),
			)
		}
		return nil
	})

	if errors.Is(err, errStatusChanged) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &batch, true, nil
}

func statusUpdateQuery(q repository.Querier, change BatchTransition) (*goqu.UpdateDataset, error) {
	record := goqu.Record{
		"status":     string(change.To),
		"updated_at": goqu.L("now()"),
	}
	if change.Notes != nil {
		record["notes"] = *change.Notes
	}
	if change.Ledger != nil {
		ledger, err := json.Marshal(change.Ledger)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal defect ledger: %w", err)
		}
		record["metadata"] = goqu.L("metadata || jsonb_build_object(?::text, ?::jsonb)", models.MetadataDefects, string(ledger))
	}

	return q.Update(batchTable).
		Set(record).
		Where(goqu.Ex{
			"id":     change.BatchID,
			"status": string(change.From),
		}).
		Returning(batchColumns...), nil
}

func flagDefectiveQuery(q repository.Querier, batchID int64, qrIDs []int64) *goqu.UpdateDataset {
	flag, _ := json.Marshal(map[string]interface{}{
		models.MetadataDefective:     true,
		models.MetadataDefectBatchID: batchID,
	})

	return q.Update("qr_codes").
		Set(goqu.Record{
			"metadata":   goqu.L("metadata || ?::jsonb", string(flag)),
			"updated_at": goqu.L("now()"),
		}).
		Where(goqu.Ex{
			"batch_id": batchID,
			"id":       qrIDs,
		})
}
