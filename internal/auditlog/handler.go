package auditlog

import (
	"context"
	"net/http"

	"farmfleet/internal/core/request"
	"farmfleet/internal/middleware"
	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/models"

	"github.com/gin-gonic/gin"
)

const (
	ResourceQRCode          = "qr_code"
	ResourceProductionBatch = "production_batch"
	ResourceDeliveryBatch   = "delivery_batch"
)

type Reader interface {
	GetResourceLog(ctx context.Context, dbc repository.DatabaseContext, id int64, resourceType string) ([]models.AuditLog, error)
}

type HistoryHandler struct {
	reader Reader
}

func NewHistoryHandler(reader Reader) *HistoryHandler {
	return &HistoryHandler{reader: reader}
}

// History serves the audit trail of one resource, oldest entry first.
func (h *HistoryHandler) History(resourceType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := request.PathID(c, "id")
		if !ok {
			return
		}

		entries, err := h.reader.GetResourceLog(c.Request.Context(), middleware.DatabaseContext(c), id, resourceType)
		if err != nil {
			custom_error.AbortWithError(c, err)
			return
		}
		if entries == nil {
			entries = []models.AuditLog{}
		}

		c.JSON(http.StatusOK, gin.H{"data": entries})
	}
}
