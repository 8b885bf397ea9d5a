package qrcodes

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

type RegistryService interface {
	Generate(ctx context.Context, dbc repository.DatabaseContext, req models.GenerateQRCodeRequest, actor int64) (*models.QRCode, error)
	Get(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.QRCode, error)
	GetByShortCode(ctx context.Context, dbc repository.DatabaseContext, shortCode string) (*models.QRCode, error)
	List(ctx context.Context, dbc repository.DatabaseContext, filter models.QRCodeFilter) (*models.QRCodeList, error)
	MarkDelivered(ctx context.Context, dbc repository.DatabaseContext, id int64, actor int64) (*models.QRCode, error)
	Delete(ctx context.Context, dbc repository.DatabaseContext, id int64, actor int64) error
	UpdateStatusBulk(ctx context.Context, dbc repository.DatabaseContext, req models.BulkStatusRequest, actor int64) (*models.AllocationReport, error)
	Stats(ctx context.Context, dbc repository.DatabaseContext, farmID *int64) (*models.QRCodeStats, error)
}

type QRCodeHandler struct {
	service RegistryService
}

func NewHandler(service RegistryService) *QRCodeHandler {
	return &QRCodeHandler{service: service}
}

func (h *QRCodeHandler) GenerateQRCode(c *gin.Context) {
	var req models.GenerateQRCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid request payload").WithDetails(err.Error()))
		return
	}

	code, err := h.service.Generate(c.Request.Context(), middleware.DatabaseContext(c), req, security.UserID(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, code)
}

func (h *QRCodeHandler) GetQRCode(c *gin.Context) {
	id, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	code, err := h.service.Get(c.Request.Context(), middleware.DatabaseContext(c), id)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, code)
}

func (h *QRCodeHandler) GetQRCodeByShortCode(c *gin.Context) {
	code, err := h.service.GetByShortCode(c.Request.Context(), middleware.DatabaseContext(c), c.Param("code"))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, code)
}

func (h *QRCodeHandler) ListQRCodes(c *gin.Context) {
	filter := models.QRCodeFilter{}

	var ok bool
	if filter.FarmID, ok = request.OptionalQueryID(c, "farm_id"); !ok {
		return
	}
	if filter.BatchID, ok = request.OptionalQueryID(c, "batch_id"); !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		status, err := metadata.NewQRStatus(raw)
		if err != nil {
			custom_error.AbortWithError(c, custom_error.Validation(err.Error()))
			return
		}
		filter.Status = &status
	}
	if filter.Page, filter.Limit, ok = request.PageParams(c); !ok {
		return
	}

	list, err := h.service.List(c.Request.Context(), middleware.DatabaseContext(c), filter)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *QRCodeHandler) MarkDelivered(c *gin.Context) {
	id, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	code, err := h.service.MarkDelivered(c.Request.Context(), middleware.DatabaseContext(c), id, security.UserID(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, code)
}

func (h *QRCodeHandler) DeleteQRCode(c *gin.Context) {
	id, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), middleware.DatabaseContext(c), id, security.UserID(c)); err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateStatusBulk always answers 200 with the partition report once the
// request itself is valid.
func (h *QRCodeHandler) UpdateStatusBulk(c *gin.Context) {
	var req models.BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid request payload").WithDetails(err.Error()))
		return
	}

	report, err := h.service.UpdateStatusBulk(c.Request.Context(), middleware.DatabaseContext(c), req, security.UserID(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *QRCodeHandler) GetStats(c *gin.Context) {
	farmID, ok := request.OptionalQueryID(c, "farm_id")
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), middleware.DatabaseContext(c), farmID)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
