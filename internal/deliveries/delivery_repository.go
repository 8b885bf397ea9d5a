package deliveries

import (
	"context"
	"encoding/json"
	"fmt"

	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

const deliveryTable = "delivery_batches"

var deliveryColumns = []interface{}{
	"id", "delivery_code", "farm_id", "requested_quantity", "current_status", "metadata", "created_by", "created_at", "updated_at",
}

// DeliveryDraft is a validated delivery request handed to the creation
// procedure.
type DeliveryDraft struct {
	FarmID            int64
	RequestedQuantity int
	RequestedBy       int64
	Metadata          models.Metadata
}

type DeliveryRepository struct {
	store *repository.Store
}

func NewRepository(store *repository.Store) *DeliveryRepository {
	return &DeliveryRepository{store: store}
}

// CreateDelivery runs create_delivery_batch, which validates the farm and
// the user, generates the delivery code and inserts the row atomically.
func (r *DeliveryRepository) CreateDelivery(ctx context.Context, dbc repository.DatabaseContext, draft DeliveryDraft) (*models.DeliveryProcedureResult, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	query, err := createDeliveryQuery(repo.GoquDBWrapper, draft)
	if err != nil {
		return nil, err
	}

	var raw string
	found, err := query.ScanValContext(ctx, &raw)
	if err != nil {
		return nil, custom_error.WrapDBError("failed to call create_delivery_batch", err)
	}
	if !found {
		return nil, fmt.Errorf("create_delivery_batch returned no result")
	}

	var result models.DeliveryProcedureResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("unable to decode create_delivery_batch result: %w", err)
	}
	return &result, nil
}

func (r *DeliveryRepository) GetDelivery(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.DeliveryBatch, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	var delivery models.DeliveryBatch
	found, err := repo.GoquDBWrapper.From(deliveryTable).
		Select(deliveryColumns...).
		Where(goqu.Ex{"id": id}).
		Executor().
		ScanStructContext(ctx, &delivery)
	if err != nil {
		return nil, fmt.Errorf("unable to select delivery batch: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &delivery, nil
}

func (r *DeliveryRepository) ListDeliveries(ctx context.Context, dbc repository.DatabaseContext, filter models.DeliveryFilter) ([]models.DeliveryBatch, int, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, 0, err
	}

	conditions := repository.NewQueryBuilder()
	repository.Optional(conditions, "farm_id", filter.FarmID)
	repository.OptionalEnum(conditions, "status", filter.Status)
	where := conditions.BuildConditions(map[string]string{
		"farm_id": "farm_id",
		"status":  "current_status",
	})

	base := repo.GoquDBWrapper.From(deliveryTable).Where(where)

	var total int
	if _, err := base.Select(goqu.COUNT("*")).Executor().ScanValContext(ctx, &total); err != nil {
		return nil, 0, fmt.Errorf("unable to count delivery batches: %w", err)
	}

	page := models.NewPagination(filter.Page, filter.Limit, total)
	var deliveries []models.DeliveryBatch
	err = base.Select(deliveryColumns...).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Desc()).
		Offset(uint(page.Offset())).
		Limit(uint(page.Limit)).
		Executor().
		ScanStructsContext(ctx, &deliveries)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to select delivery batches: %w", err)
	}
	return deliveries, total, nil
}

// ApplyStatus moves the delivery from one status to another and appends
// change to its status history. It reports false when the delivery was no
// longer in from.
func (r *DeliveryRepository) ApplyStatus(ctx context.Context, dbc repository.DatabaseContext, id int64, change models.StatusChange) (*models.DeliveryBatch, bool, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, false, err
	}

	query, err := statusUpdateQuery(repo.GoquDBWrapper, id, change)
	if err != nil {
		return nil, false, err
	}

	var delivery models.DeliveryBatch
	found, err := query.Executor().ScanStructContext(ctx, &delivery)
	if err != nil {
		return nil, false, custom_error.WrapDBError("failed to update delivery batch status", err)
	}
	if !found {
		return nil, false, nil
	}
	return &delivery, true, nil
}

func (r *DeliveryRepository) RecordFulfillment(ctx context.Context, dbc repository.DatabaseContext, id int64, record models.FulfillmentRecord) (*models.DeliveryBatch, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	query, err := fulfillmentQuery(repo.GoquDBWrapper, id, record)
	if err != nil {
		return nil, err
	}

	var delivery models.DeliveryBatch
	found, err := query.Executor().ScanStructContext(ctx, &delivery)
	if err != nil {
		return nil, custom_error.WrapDBError("failed to record delivery fulfillment", err)
	}
	if !found {
		return nil, nil
	}
	return &delivery, nil
}

func createDeliveryQuery(q repository.Querier, draft DeliveryDraft) (*goqu.SelectDataset, error) {
	payload := draft.Metadata
	if payload == nil {
		payload = models.Metadata{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delivery metadata: %w", err)
	}

	var requestedBy interface{}
	if draft.RequestedBy != 0 {
		requestedBy = draft.RequestedBy
	}

	return q.Select(goqu.L(
		"create_delivery_batch(?, ?, ?, ?::jsonb)::text",
		draft.FarmID, draft.RequestedQuantity, requestedBy, string(raw),
	)), nil
}

func statusUpdateQuery(q repository.Querier, id int64, change models.StatusChange) (*goqu.UpdateDataset, error) {
	entry, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status change: %w", err)
	}

	return q.Update(deliveryTable).
		Set(goqu.Record{
			"current_status": string(change.To),
			"updated_at":     goqu.L("now()"),
			"metadata": goqu.L(
				"metadata || jsonb_build_object(?::text, ?::jsonb, ?::text, COALESCE(metadata->?, '[]'::jsonb) || jsonb_build_array(?::jsonb))",
				models.MetadataLastStatusChange, string(entry),
				models.MetadataStatusHistory, models.MetadataStatusHistory, string(entry),
			),
		}).
		Where(goqu.Ex{
			"id":             id,
			"current_status": string(change.From),
		}).
		Returning(deliveryColumns...), nil
}

func fulfillmentQuery(q repository.Querier, id int64, record models.FulfillmentRecord) (*goqu.UpdateDataset, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fulfillment record: %w", err)
	}

	return q.Update(deliveryTable).
		Set(goqu.Record{
			"metadata":   goqu.L("metadata || jsonb_build_object(?::text, ?::jsonb)", models.MetadataFulfillment, string(raw)),
			"updated_at": goqu.L("now()"),
		}).
		Where(goqu.Ex{
			"id":             id,
			"current_status": string(metadata.DeliveryStatusInProgress),
		}).
		Returning(deliveryColumns...), nil
}
