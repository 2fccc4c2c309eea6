package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/handlers"
	"github.com/vexpense/vexpense/internal/middleware"
	"github.com/vexpense/vexpense/internal/models"
)

func registerShipmentRoutes(api *gin.RouterGroup, handler *handlers.ShipmentHandler) {
	exporterOnly := middleware.RequireRole(models.RoleExporter)

	shipments := api.Group("/shipments")
	{
		shipments.POST("", exporterOnly, handler.Create)
		shipments.GET("", middleware.RequireRole(models.RoleExporter, models.RoleAdmin), handler.List)

		// Ownership is checked per resource by the service.
		shipments.GET("/:id", handler.Get)
		shipments.PUT("/:id", exporterOnly, handler.Update)
		shipments.POST("/:id/tracking", exporterOnly, handler.AddTracking)
		shipments.DELETE("/:id", exporterOnly, handler.Delete)
	}
}
