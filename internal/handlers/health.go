package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/monitoring"
)

// Health reports dependency status. Only a down probe turns the response into a 503.
func Health(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.Evaluate(requestContext(c))

		status := http.StatusOK
		if report.Status == monitoring.StatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}
