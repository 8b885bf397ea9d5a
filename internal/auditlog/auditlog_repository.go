package auditlog

import (
	"context"
	"encoding/json"
	"fmt"

	"farmfleet/internal/repository"
	"farmfleet/pkg/models"

	"github.com/doug-martin/goqu/v9"
)

type AuditLogRepository struct {
	store *repository.Store
}

func NewRepository(store *repository.Store) *AuditLogRepository {
	return &AuditLogRepository{store: store}
}

func (r *AuditLogRepository) PersistLog(ctx context.Context, dbc repository.DatabaseContext, auditlog models.AuditLog, auditLogData interface{}) error {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return err
	}

	dataJSON, err := json.Marshal(auditLogData)
	if err != nil {
		return fmt.Errorf("failed to marshal audit log data: %w", err)
	}

	record := goqu.Record{
		"resource_id":   auditlog.ResourceID,
		"resource_type": auditlog.ResourceType,
		"action":        auditlog.Action,
		"data":          string(dataJSON),
	}
	if auditlog.UserID != nil {
		record["user_id"] = *auditlog.UserID
	}

	_, err = repo.GoquDBWrapper.Insert("audit_logs").Rows(record).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

func (r *AuditLogRepository) GetResourceLog(ctx context.Context, dbc repository.DatabaseContext, id int64, resourceType string) ([]models.AuditLog, error) {
	repo, err := r.store.Resolve(dbc)
	if err != nil {
		return nil, err
	}

	query := repo.GoquDBWrapper.
		From(goqu.T("audit_logs").As("a")).
		Select(
			goqu.I("a.id").As("id"),
			goqu.I("a.resource_id").As("resource_id"),
			goqu.I("a.resource_type").As("resource_type"),
			goqu.I("a.action").As("action"),
			goqu.L("a.data::text").As("data"),
			goqu.I("a.created_at").As("created_at"),
			goqu.I("a.user_id").As("user_id"),
		).
		Where(goqu.Ex{
			"a.resource_id":   id,
			"a.resource_type": resourceType,
		}).
		Order(goqu.I("a.created_at").Asc(), goqu.I("a.id").Asc())

	var auditLogs []models.AuditLog
	if err := query.Executor().ScanStructsContext(ctx, &auditLogs); err != nil {
		return nil, fmt.Errorf("error executing SQL statement: %w", err)
	}

	for i := range auditLogs {
		auditLogs[i].LoadFromDB()
	}

	return auditLogs, nil
}
