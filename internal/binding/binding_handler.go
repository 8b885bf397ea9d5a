package binding

import (
	"context"
	"net/http"
	"strconv"

	"farmfleet/internal/core/request"
	"farmfleet/internal/middleware"
	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/models"
	"farmfleet/pkg/security"

	"github.com/gin-gonic/gin"
)

type BindingService interface {
	Bind(ctx context.Context, dbc repository.DatabaseContext, qrID int64, req models.BindRequest, actor int64) (*models.QRCode, error)
	Unbind(ctx context.Context, dbc repository.DatabaseContext, qrID int64, actor int64) (*models.QRCode, error)
	FindByAsset(ctx context.Context, dbc repository.DatabaseContext, assetType string, assetID int64) ([]models.QRCode, error)
}

type BindingHandler struct {
	service BindingService
}

func NewHandler(service BindingService) *BindingHandler {
	return &BindingHandler{service: service}
}

func (h *BindingHandler) Bind(c *gin.Context) {
	id, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	var req models.BindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid request payload").WithDetails(err.Error()))
		return
	}

	code, err := h.service.Bind(c.Request.Context(), middleware.DatabaseContext(c), id, req, security.UserID(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, code)
}

func (h *BindingHandler) Unbind(c *gin.Context) {
	id, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	code, err := h.service.Unbind(c.Request.Context(), middleware.DatabaseContext(c), id, security.UserID(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, code)
}

func (h *BindingHandler) FindByAsset(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || assetID <= 0 {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid asset id"))
		return
	}

	codes, err := h.service.FindByAsset(c.Request.Context(), middleware.DatabaseContext(c), c.Param("type"), assetID)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, codes)
}
