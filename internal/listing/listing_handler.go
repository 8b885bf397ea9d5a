package listing

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

type ListingService interface {
	ListBatchCodes(ctx context.Context, dbc repository.DatabaseContext, batchID int64, query models.BatchListingQuery) (*models.BatchQRCodeListing, error)
}

type ListingHandler struct {
	service ListingService
}

func NewHandler(service ListingService) *ListingHandler {
	return &ListingHandler{service: service}
}

func (h *ListingHandler) ListBatchCodes(c *gin.Context) {
	batchID, ok := request.PathID(c, "id")
	if !ok {
		return
	}

	var query models.BatchListingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid query parameters").WithDetails(err.Error()))
		return
	}

	listing, err := h.service.ListBatchCodes(c.Request.Context(), middleware.DatabaseContext(c), batchID, query)
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, listing)
}
