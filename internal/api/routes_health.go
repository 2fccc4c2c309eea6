package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/handlers"
	"github.com/vexpense/vexpense/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, manager *monitoring.HealthManager) {
	health := handlers.Health(manager)
	r.GET("/health", health)
	r.GET("/api/health", health)
}
