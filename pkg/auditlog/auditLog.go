package auditlog

import (
	"context"

	"farmfleet/internal/repository"
	"farmfleet/pkg/models"

	"go.uber.org/zap"
)

type Persister interface {
	PersistLog(ctx context.Context, dbc repository.DatabaseContext, auditlog models.AuditLog, data interface{}) error
}

type Auditlog struct {
	r   Persister
	log *zap.Logger
}

type Auditable interface {
	CreateLogView() models.AuditLog
}

// Log records an audit entry. Failures are logged and swallowed; an audit
// write never fails the business operation it describes.
func (a *Auditlog) Log(ctx context.Context, dbc repository.DatabaseContext, action string, data interface{}, item Auditable, userID int64) {
	auditLog := item.CreateLogView()
	auditLog.Action = action
	if userID != 0 {
		auditLog.UserID = &userID
	}

	err := a.r.PersistLog(context.WithoutCancel(ctx), dbc, auditLog, data)
	if err != nil {
		a.log.Warn("Unable to create audit log entry",
			zap.String("resource_type", auditLog.ResourceType),
			zap.Int64("resource_id", auditLog.ResourceID),
			zap.String("action", action),
			zap.Error(err),
		)
		return
	}

	a.log.Debug("Created audit log entry",
		zap.String("resource_type", auditLog.ResourceType),
		zap.Int64("resource_id", auditLog.ResourceID),
		zap.String("action", action),
	)
}

func NewAuditLog(repository Persister, log *zap.Logger) *Auditlog {
	return &Auditlog{r: repository, log: log}
}
