package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/handlers"
	"github.com/vexpense/vexpense/internal/middleware"
	"github.com/vexpense/vexpense/internal/models"
)

func registerExporterRoutes(api *gin.RouterGroup, handler *handlers.ExporterHandler) {
	exporterOnly := middleware.RequireRole(models.RoleExporter)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	exporters := api.Group("/exporters")
	{
		exporters.GET("/public", handler.ListPublic)

		exporters.GET("/profile", exporterOnly, handler.Profile)
		exporters.PUT("/profile", exporterOnly, handler.UpdateProfile)
		exporters.GET("/statistics", exporterOnly, handler.Statistics)
		exporters.POST("/documents", exporterOnly, handler.UploadDocument)

		exporters.GET("", adminOnly, handler.List)
		exporters.GET("/:userId", adminOnly, handler.Get)
		exporters.PUT("/:userId/verify", adminOnly, handler.Verify)
	}
}
