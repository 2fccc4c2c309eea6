package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/handlers"
	"github.com/vexpense/vexpense/internal/middleware"
	"github.com/vexpense/vexpense/internal/models"
)

func registerPartRoutes(api *gin.RouterGroup, handler *handlers.PartHandler) {
	exporterOnly := middleware.RequireRole(models.RoleExporter)

	parts := api.Group("/parts")
	{
		parts.POST("", exporterOnly, handler.Create)
		parts.GET("", middleware.RequireRole(models.RoleExporter, models.RoleAdmin), handler.List)

		// Ownership is checked per resource by the service.
		parts.GET("/:id", handler.Get)
		parts.PUT("/:id", exporterOnly, handler.Update)
		parts.PATCH("/:id/inventory", exporterOnly, handler.AdjustInventory)
		parts.DELETE("/:id", exporterOnly, handler.Delete)
	}
}
