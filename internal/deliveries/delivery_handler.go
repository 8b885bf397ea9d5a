package deliveries

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

type DeliveryService interface {
	CreateRequest(ctx context.Context, dbc repository.DatabaseContext, req models.CreateDeliveryRequest, actor int64) (*models.DeliveryBatch, error)
	Get(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.DeliveryBatch, error)
	List(ctx context.Context, dbc repository.DatabaseContext, filter models.DeliveryFilter) (*models.DeliveryBatchList, error)
	UpdateStatus(ctx context.Context, dbc repository.DatabaseContext, id int64, req models.UpdateDeliveryStatusRequest, actor int64) (*models.DeliveryStatusUpdate, error)
	Fulfillment(ctx context.Context, dbc repository.DatabaseContext, id int64) (*models.FulfillmentSummary, error)
}

type DeliveryHandler struct {
	service DeliveryService
}

func NewHandler(service DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{service: service}
}

func (h *DeliveryHandler) CreateRequest(c *gin.Context) {
	var req models.CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid request payload").WithDetails(err.Error()))
		return
	}

	delivery, err := h.service.CreateRequest(c.Request.Context(), middleware.DatabaseContext(c), req, security.UserID(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, delivery)
}

func (h *DeliveryHandler) GetRequest(c *gin.Context) {
	id, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	delivery, err := h.service.Get(c.Request.Context(), middleware.DatabaseContext(c), id)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, delivery)
}

func (h *DeliveryHandler) ListRequests(c *gin.Context) {
	filter := models.DeliveryFilter{}

	var ok bool
	if filter.FarmID, ok = request.OptionalQueryID(c, "farm_id"); !ok {
		return
	}
	if raw := c.Query("status"); raw != "" {
		status, err := metadata.NewDeliveryStatus(raw)
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

func (h *DeliveryHandler) UpdateRequestStatus(c *gin.Context) {
	id, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateDeliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid request payload").WithDetails(err.Error()))
		return
	}

	update, err := h.service.UpdateStatus(c.Request.Context(), middleware.DatabaseContext(c), id, req, security.UserID(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, update)
}

func (h *DeliveryHandler) GetFulfillment(c *gin.Context) {
	id, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	summary, err := h.service.Fulfillment(c.Request.Context(), middleware.DatabaseContext(c), id)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
