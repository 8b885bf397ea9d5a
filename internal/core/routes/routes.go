package routes

import (
	"farmfleet/internal/auditlog"
	"farmfleet/internal/core/container"
	"farmfleet/internal/middleware"
	"farmfleet/pkg/roles"
	"farmfleet/pkg/security"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the engine with the global middleware chain and every
// route registered.
func NewRouter(c *container.Container) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(c.Logger),
		middleware.RequestLogger(c.Logger),
		middleware.HTTPMetrics(c.Metrics),
		middleware.TimeoutMiddleware(c.Config.RequestTimeout),
	)

	RegisterUtilityRoutes(router, c)
	RegisterProtectedRoutes(router, c)
	return router
}

func RegisterUtilityRoutes(router *gin.Engine, c *container.Container) {
	router.GET("/health", c.HealthChecker.Handler())
	router.GET("/metrics", middleware.MetricsHandler(c.Metrics))
}

func RegisterProtectedRoutes(router *gin.Engine, c *container.Container) {
	api := router.Group("/qr-codes")
	api.Use(c.Authenticator.JWTMiddleware(), middleware.DatabaseEnvironment(c.Store))

	read := security.Authorize(roles.User)
	write := security.Authorize(roles.Moderator)
	admin := security.Authorize(roles.Admin)

	api.POST("", write, c.QRCodeHandler.GenerateQRCode)
	api.GET("", read, c.QRCodeHandler.ListQRCodes)
	api.GET("/stats", read, c.QRCodeHandler.GetStats)
	api.GET("/stock", read, c.AllocationHandler.GetAvailableStock)
	api.GET("/short/:code", read, c.QRCodeHandler.GetQRCodeByShortCode)
	api.PUT("/status", write, c.QRCodeHandler.UpdateStatusBulk)
	api.POST("/allocate", write, c.AllocationHandler.Allocate)
	api.GET("/assets/:type/:id", read, c.BindingHandler.FindByAsset)

	api.GET("/:id", read, c.QRCodeHandler.GetQRCode)
	api.DELETE("/:id", admin, c.QRCodeHandler.DeleteQRCode)
	api.POST("/:id/deliver", write, c.QRCodeHandler.MarkDelivered)
	api.POST("/:id/bind", write, c.BindingHandler.Bind)
	api.POST("/:id/unbind", write, c.BindingHandler.Unbind)
	api.GET("/:id/history", read, c.HistoryHandler.History(auditlog.ResourceQRCode))

	batches := api.Group("/batches")
	batches.POST("", write, c.RateLimiter.Middleware(), c.BatchHandler.CreateBatch)
	batches.GET("", read, c.BatchHandler.ListBatches)
	batches.GET("/:id", read, c.BatchHandler.GetBatch)
	batches.PUT("/:id/status", write, c.BatchHandler.UpdateBatchStatus)
	batches.GET("/:id/qr-codes", read, c.ListingHandler.ListBatchCodes)
	batches.GET("/:id/pdf", read, c.PrintSheetHandler.GetBatchPDF)
	batches.POST("/:id/manifest", write, c.ManifestHandler.ExportManifest)
	batches.GET("/:id/history", read, c.HistoryHandler.History(auditlog.ResourceProductionBatch))

	requests := api.Group("/requests")
	requests.POST("", write, c.DeliveryHandler.CreateRequest)
	requests.GET("", read, c.DeliveryHandler.ListRequests)
	requests.GET("/:id", read, c.DeliveryHandler.GetRequest)
	requests.PUT("/:id/status", write, c.DeliveryHandler.UpdateRequestStatus)
	requests.GET("/:id/fulfillment", read, c.DeliveryHandler.GetFulfillment)
	requests.GET("/:id/history", read, c.HistoryHandler.History(auditlog.ResourceDeliveryBatch))
}
