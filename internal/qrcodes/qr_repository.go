package qrcodes

import (
	"context"
	"fmt"
	"time"

	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

const qrTable = "qr_codes"

var qrColumns = []interface{}{
	"id", "uuid", "short_code", "status", "farm_id", "asset_type", "asset_id",
	"batch_id", "print_position", "bound_at", "metadata", "created_at", "updated_at",
}

// notDefective excludes codes flagged by batch remediation.
var notDefective = goqu.L("COALESCE((metadata->>'defective')::boolean, false) = false")

// notCancelled excludes codes of cancelled production batches. Codes of
// batches still ordered or printing stay allocatable.
var notCancelled = goqu.L("(batch_id IS NULL OR batch_id NOT IN (SELECT id FROM production_batches WHERE status = 'cancelled'))")

type QRCodeRepository struct {
	store *repository.Store
}

func NewRepository(store *repository.Store) *QRCodeRepository {
	return &QRCodeRepository{store: store}
}

func (r *QRCodeRepository) Querier(dbc repository.DatabaseContext) (repository.Querier, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}
	return repo.GoquDBWrapper, nil
}

func (r *QRCodeRepository) ShortCodeExists(ctx context.Context, q repository.Querier, shortCode string) (bool, error) {
	var count int
	_, err := q.From(qrTable).
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"short_code": shortCode}).
		Executor().
		ScanValContext(ctx, &count)
	if err != nil {
		return false, fmt.Errorf("failed to check short code: %w", err)
	}
	return count > 0, nil
}

// InsertIfAbsent inserts the code unless a unique key already exists, in
// which case it reports false without aborting a surrounding transaction.
func (r *QRCodeRepository) InsertIfAbsent(ctx context.Context, q repository.Querier, code models.QRCode) (*models.QRCode, bool, error) {
	var created models.QRCode
	found, err := insertCodeQuery(q, code).Executor().ScanStructContext(ctx, &created)
	if err != nil {
		return nil, false, custom_error.WrapDBError("failed to insert qr code", err)
	}
	if !found {
		return nil, false, nil
	}
	return &created, true, nil
}

func insertCodeQuery(q repository.Querier, code models.QRCode) *goqu.InsertDataset {
	record := goqu.Record{
		"uuid":       code.UUID,
		"short_code": code.ShortCode,
		"status":     string(code.Status),
		"metadata":   code.Metadata,
	}
	if code.FarmID != nil {
		record["farm_id"] = *code.FarmID
	}
	if code.AssetType != nil && code.AssetID != nil {
		record["asset_type"] = string(*code.AssetType)
		record["asset_id"] = *code.AssetID
	}
	if code.BatchID != nil {
		record["batch_id"] = *code.BatchID
	}
	if code.PrintPosition != nil {
		record["print_position"] = *code.PrintPosition
	}
	if code.BoundAt != nil {
		record["bound_at"] = *code.BoundAt
	}

	return q.Insert(qrTable).
		Rows(record).
		OnConflict(goqu.DoNothing()).
		Returning(qrColumns...)
}

func (r *QRCodeRepository) GetByID(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.QRCode, error) {
	return r.fetchByCondition(ctx, dbc, goqu.Ex{"id": id})
}

func (r *QRCodeRepository) GetByShortCode(ctx context.Context, dbc repository.DatabaseContext, shortCode string) (*models.QRCode, error) {
	return r.fetchByCondition(ctx, dbc, goqu.Ex{"short_code": shortCode})
}

func (r *QRCodeRepository) FindByAsset(ctx context.Context, dbc repository.DatabaseContext, assetType metadata.AssetType, assetID int64) ([]models.QRCode, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	var codes []models.QRCode
	err = repo.GoquDBWrapper.From(qrTable).
		Select(qrColumns...).
		Where(goqu.Ex{"asset_type": string(assetType), "asset_id": assetID}).
		Order(goqu.I("id").Asc()).
		Executor().
		ScanStructsContext(ctx, &codes)
	if err != nil {
		return nil, fmt.Errorf("unable to select qr codes by asset: %w", err)
	}
	return codes, nil
}

func (r *QRCodeRepository) List(ctx context.Context, dbc repository.DatabaseContext, filter models.QRCodeFilter) ([]models.QRCode, int, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, 0, err
	}

	conditions := repository.NewQueryBuilder()
	repository.Optional(conditions, "farm_id", filter.FarmID)
	repository.OptionalEnum(conditions, "status", filter.Status)
	repository.Optional(conditions, "batch_id", filter.BatchID)
	where := conditions.BuildConditions(map[string]string{
		"farm_id":  "q.farm_id",
		"status":   "q.status",
		"batch_id": "q.batch_id",
	})

	base := repo.GoquDBWrapper.From(goqu.T(qrTable).As("q")).Where(where)

	var total int
	if _, err := base.Select(goqu.COUNT("*")).Executor().ScanValContext(ctx, &total); err != nil {
		return nil, 0, fmt.Errorf("unable to count qr codes: %w", err)
	}

	page := models.NewPagination(filter.Page, filter.Limit, total)
	var codes []models.QRCode
	err = base.Select(qualified("q", qrColumns)...).
		Order(goqu.I("q.id").Asc()).
		Offset(uint(page.Offset())).
		Limit(uint(page.Limit)).
		Executor().
		ScanStructsContext(ctx, &codes)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to select qr codes: %w", err)
	}

	return codes, total, nil
}

// TransitionStatus moves a code between states with a single conditional
// update. The current status is part of the WHERE clause, so a concurrent
// writer that got there first leaves this update matching zero rows.
func (r *QRCodeRepository) TransitionStatus(ctx context.Context, dbc repository.DatabaseContext, id int64, from []metadata.QRStatus, record goqu.Record) (*models.QRCode, bool, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, false, err
	}
	return r.transition(ctx, repo.GoquDBWrapper, transitionQuery(repo.GoquDBWrapper, id, from, record))
}

func (r *QRCodeRepository) Allocate(ctx context.Context, dbc repository.DatabaseContext, id int64, farmID int64) (*models.QRCode, bool, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, false, err
	}
	return r.transition(ctx, repo.GoquDBWrapper, allocateQuery(repo.GoquDBWrapper, id, farmID))
}

// Release returns a code allocated to farmID to stock.
func (r *QRCodeRepository) Release(ctx context.Context, dbc repository.DatabaseContext, id int64, farmID int64) (*models.QRCode, bool, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, false, err
	}
	return r.transition(ctx, repo.GoquDBWrapper, releaseQuery(repo.GoquDBWrapper, id, farmID))
}

// Bind attaches an asset. The farm read by the caller is part of the guard,
// so a code reallocated in between is left alone.
func (r *QRCodeRepository) Bind(ctx context.Context, dbc repository.DatabaseContext, id int64, farmID int64, assetType metadata.AssetType, assetID int64, boundAt time.Time) (*models.QRCode, bool, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, false, err
	}
	return r.transition(ctx, repo.GoquDBWrapper, bindQuery(repo.GoquDBWrapper, id, farmID, assetType, assetID, boundAt))
}

// Unbind returns the code to stock; the farm allocation goes with the asset.
func (r *QRCodeRepository) Unbind(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.QRCode, bool, error) {
	return r.TransitionStatus(ctx, dbc, id, metadata.QRSourcesFor(metadata.QREventUnbind), goqu.Record{
		"status":     string(metadata.QRStatusAvailable),
		"farm_id":    nil,
		"asset_type": nil,
		"asset_id":   nil,
		"bound_at":   nil,
	})
}

func (r *QRCodeRepository) Delete(ctx context.Context, dbc repository.DatabaseContext, id int64) (bool, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return false, err
	}

	result, err := repo.GoquDBWrapper.Delete(qrTable).
		Where(goqu.Ex{"id": id}).
		Executor().
		ExecContext(ctx)
	if err != nil {
		return false, custom_error.WrapDBError("failed to delete qr code", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

type statusCount struct {
	Status    string `db:"status"`
	Total     int    `db:"total"`
	Defective int    `db:"defective"`
}

func (r *QRCodeRepository) CountByStatus(ctx context.Context, dbc repository.DatabaseContext, farmID *int64) (*models.QRCodeStats, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	query := repo.GoquDBWrapper.From(qrTable).
		Select(
			goqu.C("status"),
			goqu.COUNT("*").As("total"),
			goqu.L("COUNT(*) FILTER (WHERE COALESCE((metadata->>'defective')::boolean, false))").As("defective"),
		).
		GroupBy("status")
	if farmID != nil {
		query = query.Where(goqu.Ex{"farm_id": *farmID})
	}

	var counts []statusCount
	if err := query.Executor().ScanStructsContext(ctx, &counts); err != nil {
		return nil, fmt.Errorf("unable to count qr codes: %w", err)
	}

	stats := &models.QRCodeStats{ByStatus: map[string]int{}}
	for _, status := range []metadata.QRStatus{
		metadata.QRStatusAvailable, metadata.QRStatusAllocated, metadata.QRStatusBound, metadata.QRStatusDelivered,
	} {
		stats.ByStatus[string(status)] = 0
	}
	for _, count := range counts {
		stats.ByStatus[count.Status] = count.Total
		stats.Total += count.Total
		stats.Defective += count.Defective
	}
	return stats, nil
}

// CountAvailable counts codes that can still be allocated.
func (r *QRCodeRepository) CountAvailable(ctx context.Context, dbc repository.DatabaseContext) (int, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return 0, err
	}

	var count int
	_, err = repo.GoquDBWrapper.From(qrTable).
		Select(goqu.COUNT("*")).
		Where(availableForAllocation()...).
		Executor().
		ScanValContext(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("unable to count available qr codes: %w", err)
	}
	return count, nil
}

// PickAvailable returns up to limit allocatable code ids in print order.
func (r *QRCodeRepository) PickAvailable(ctx context.Context, dbc repository.DatabaseContext, limit int) ([]int64, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = repo.GoquDBWrapper.From(qrTable).
		Select("id").
		Where(availableForAllocation()...).
		Order(goqu.I("batch_id").Asc().NullsLast(), goqu.I("print_position").Asc().NullsLast(), goqu.I("id").Asc()).
		Limit(uint(limit)).
		Executor().
		ScanValsContext(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("unable to pick available qr codes: %w", err)
	}
	return ids, nil
}

func (r *QRCodeRepository) CountFarmAllocated(ctx context.Context, dbc repository.DatabaseContext, farmID int64) (int, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return 0, err
	}

	var count int
	_, err = repo.GoquDBWrapper.From(qrTable).
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"farm_id": farmID, "status": string(metadata.QRStatusAllocated)}).
		Executor().
		ScanValContext(ctx, &count)
	if err != nil {
		return 0, fmt.Errorf("unable to count farm allocations: %w", err)
	}
	return count, nil
}

func (r *QRCodeRepository) transition(ctx context.Context, q repository.Querier, query *goqu.UpdateDataset) (*models.QRCode, bool, error) {
	var updated models.QRCode
	found, err := query.Executor().ScanStructContext(ctx, &updated)
	if err != nil {
		return nil, false, custom_error.WrapDBError("failed to update qr code", err)
	}
	if !found {
		return nil, false, nil
	}
	return &updated, true, nil
}

func (r *QRCodeRepository) fetchByCondition(ctx context.Context, dbc repository.DatabaseContext, condition goqu.Ex) (*models.QRCode, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	var code models.QRCode
	found, err := repo.GoquDBWrapper.From(qrTable).
		Select(qrColumns...).
		Where(condition).
		Executor().
		ScanStructContext(ctx, &code)
	if err != nil {
		return nil, fmt.Errorf("unable to select qr code from database: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &code, nil
}

func transitionQuery(q repository.Querier, id int64, from []metadata.QRStatus, record goqu.Record) *goqu.UpdateDataset {
	statuses := make([]string, len(from))
	for i, status := range from {
		statuses[i] = string(status)
	}

	record["updated_at"] = goqu.L("now()")
	return q.Update(qrTable).
		Set(record).
		Where(goqu.Ex{
			"id":     id,
			"status": statuses,
		}).
		Returning(qrColumns...)
}

func allocateQuery(q repository.Querier, id int64, farmID int64) *goqu.UpdateDataset {
	return q.Update(qrTable).
		Set(goqu.Record{
			"status":     string(metadata.QRStatusAllocated),
			"farm_id":    farmID,
			"updated_at": goqu.L("now()"),
		}).
		Where(append([]exp.Expression{goqu.Ex{"id": id}}, availableForAllocation()...)...).
		Returning(qrColumns...)
}

func releaseQuery(q repository.Querier, id int64, farmID int64) *goqu.UpdateDataset {
	return q.Update(qrTable).
		Set(goqu.Record{
			"status":     string(metadata.QRStatusAvailable),
			"farm_id":    nil,
			"updated_at": goqu.L("now()"),
		}).
		Where(goqu.Ex{
			"id":      id,
			"status":  string(metadata.QRStatusAllocated),
			"farm_id": farmID,
		}).
		Returning(qrColumns...)
}

func bindQuery(q repository.Querier, id int64, farmID int64, assetType metadata.AssetType, assetID int64, boundAt time.Time) *goqu.UpdateDataset {
	query := transitionQuery(q, id, metadata.QRSourcesFor(metadata.QREventBind), goqu.Record{
		"status":     string(metadata.QRStatusBound),
		"asset_type": string(assetType),
		"asset_id":   assetID,
		"bound_at":   boundAt,
	})
	return query.Where(goqu.Ex{"farm_id": farmID})
}

func availableForAllocation() []exp.Expression {
	return []exp.Expression{
		goqu.Ex{
			"status":  string(metadata.QRStatusAvailable),
			"farm_id": nil,
		},
		notDefective,
		notCancelled,
	}
}

func qualified(alias string, columns []interface{}) []interface{} {
	out := make([]interface{}, len(columns))
	for i, column := range columns {
		out[i] = goqu.I(alias + "." + column.(string)).As(column.(string))
	}
	return out
}

func (r *QRCodeRepository) UpdateStatus(ctx context.Context, dbc repository.DatabaseContext, id int64, from []metadata.QRStatus, to metadata.QRStatus) (*models.QRCode, bool, error) {
	return r.TransitionStatus(ctx, dbc, id, from, goqu.Record{"status": string(to)})
}
