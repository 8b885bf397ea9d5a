package allocation

import (
	"context"
	"net/http"

	"farmfleet/internal/middleware"
	"farmfleet/internal/repository"
	custom_error "farmfleet/pkg/errors"
	"farmfleet/pkg/models"
	"farmfleet/pkg/security"

	"github.com/gin-gonic/gin"
)

type Service interface {
	Allocate(ctx context.Context, dbc repository.DatabaseContext, req models.AllocateRequest, actor int64) (*models.AllocationReport, error)
	CountAvailable(ctx context.Context, dbc repository.DatabaseContext) (int, error)
}

type AllocationHandler struct {
	service Service
}

func NewHandler(service Service) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// Allocate answers 200 with the partition report even when every code failed.
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req models.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		custom_error.AbortWithError(c, custom_error.Validation("Invalid request payload").WithDetails(err.Error()))
		return
	}

	report, err := h.service.Allocate(c.Request.Context(), middleware.DatabaseContext(c), req, security.UserID(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *AllocationHandler) GetAvailableStock(c *gin.Context) {
	count, err := h.service.CountAvailable(c.Request.Context(), middleware.DatabaseContext(c))
	if err != nil {
		custom_error.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"available": count})
}
