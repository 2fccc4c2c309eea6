package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/handlers"
	"github.com/vexpense/vexpense/internal/middleware"
	"github.com/vexpense/vexpense/internal/models"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler) {
	users := api.Group("/users")
	{
		users.GET("", middleware.RequireRole(models.RoleAdmin), handler.List)
		users.GET("/exporters", handler.Exporters)
		users.GET("/local-users", middleware.RequireRole(models.RoleExporter, models.RoleAdmin), handler.LocalUsers)
		users.GET("/profile", handler.Profile)
		users.PUT("/profile", handler.UpdateProfile)
		users.PUT("/change-password", handler.ChangePassword)
		users.PUT("/deactivate", handler.Deactivate)
		users.GET("/:id", middleware.RequireRole(models.RoleAdmin), handler.Get)
	}
}
