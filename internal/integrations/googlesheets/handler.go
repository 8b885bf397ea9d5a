package googlesheets

import (
	"context"
	"net/http"

	"farmfleet/internal/core/request"
	"farmfleet/internal/middleware"
	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"

	"github.com/gin-gonic/gin"
)

type Exporter interface {
	ExportBatch(ctx context.Context, dbc repository.DatabaseContext, batchID int64) (*ManifestExport, error)
}

type ManifestHandler struct {
	exporter Exporter
}

// NewManifestHandler accepts a nil exporter when Google Sheets is not
// configured; the route then answers 503.
func NewManifestHandler(exporter Exporter) *ManifestHandler {
	return &ManifestHandler{exporter: exporter}
}

func (h *ManifestHandler) ExportManifest(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Google Sheets export is not configured",
			"code":  "INTEGRATION_DISABLED",
		})
		return
	}

	batchID, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	export, err := h.exporter.ExportBatch(c.Request.Context(), middleware.DatabaseContext(c), batchID)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, export)
}
