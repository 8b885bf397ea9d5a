package production

import (
	"context"
	"net/http"

	"farmfleet/internal/core/request"
	"farmfleet/internal/middleware"
	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/models"
	"farmfleet/pkg/security"

	"github.com/gin-gonic/gin"
)

type BatchService interface {
	CreateBatch(ctx context.Context, dbc repository.DatabaseContext, req models.CreateBatchRequest, actor int64) (*models.ProductionBatch, error)
	GetBatchWithCodes(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.ProductionBatch, error)
	ListBatches(ctx context.Context, dbc repository.DatabaseContext, filter models.BatchFilter) (*models.ProductionBatchList, error)
	UpdateStatus(ctx context.Context, dbc repository.DatabaseContext, id int64, req models.UpdateBatchStatusRequest, actor int64) (*models.ProductionBatch, error)
}

type BatchHandler struct {
	service BatchService
}

func NewHandler(service BatchService) *BatchHandler {
	return &BatchHandler{service: service}
}

func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var req models.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid request payload").WithDetails(err.Error()))
		return
	}

	batch, err := h.service.CreateBatch(c.Request.Context(), middleware.DatabaseContext(c), req, security.UserID(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, batch)
}

func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	batch, err := h.service.GetBatchWithCodes(c.Request.Context(), middleware.DatabaseContext(c), id)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *BatchHandler) ListBatches(c *gin.Context) {
	filter := models.BatchFilter{}

	var ok bool
	if filter.SupplierID, ok = request.OptionalQueryID(c, "supplier_id"); !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		status, err := metadata.NewProductionBatchStatus(raw)
		if err != nil {
			custom_error.AbortWithError(c, custom_error.Validation(err.Error()))
			return
		}
		filter.Status = &status
	}
	if filter.Page, filter.Limit, ok = request.PageParams(c); !ok {
		return
	}

	list, err := h.service.ListBatches(c.Request.Context(), middleware.DatabaseContext(c), filter)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *BatchHandler) UpdateBatchStatus(c *gin.Context) {
	id, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateBatchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid request payload").WithDetails(err.Error()))
		return
	}

	batch, err := h.service.UpdateStatus(c.Request.Context(), middleware.DatabaseContext(c), id, req, security.UserID(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}
