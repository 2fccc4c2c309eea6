package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/handlers"
	"github.com/vexpense/vexpense/internal/middleware"
	"github.com/vexpense/vexpense/internal/models"
)

func registerExpenseRoutes(api *gin.RouterGroup, handler *handlers.ExpenseHandler) {
	exporterOnly := middleware.RequireRole(models.RoleExporter)

	expenses := api.Group("/expenses")
	{
		expenses.POST("", exporterOnly, handler.Create)
		expenses.GET("", exporterOnly, handler.List)
		expenses.GET("/statistics", exporterOnly, handler.Statistics)
		expenses.GET("/shared/me", middleware.RequireRole(models.RoleLocal), handler.ListShared)
		expenses.GET("/admin/all", middleware.RequireRole(models.RoleAdmin), handler.ListAll)

		// Ownership and share membership are checked per resource by the service.
		expenses.GET("/:id", handler.Get)
		expenses.PUT("/:id", exporterOnly, handler.Update)
		expenses.DELETE("/:id", exporterOnly, handler.Delete)
		expenses.POST("/:id/share", exporterOnly, handler.Share)
		expenses.PUT("/:id/share/:userId", handler.UpdateShareStatus)
	}
}
