package printsheet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"farmfleet/internal/core/request"
	"farmfleet/internal/middleware"
	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/models"

	"github.com/gin-gonic/gin"
)

type SheetRenderer interface {
	RenderBatch(ctx context.Context, dbc repository.DatabaseContext, batchID int64, w io.Writer) (*models.ProductionBatch, error)
}

type PrintSheetHandler struct {
	renderer SheetRenderer
}

func NewHandler(renderer SheetRenderer) *PrintSheetHandler {
	return &PrintSheetHandler{renderer: renderer}
}

func (h *PrintSheetHandler) GetBatchPDF(c *gin.Context) {
	batchID, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	var buf bytes.Buffer
	batch, err := h.renderer.RenderBatch(c.Request.Context(), middleware.DatabaseContext(c), batchID, &buf)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, batch.BatchCode))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
