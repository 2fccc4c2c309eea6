package api

import (
	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/handlers"
)

func registerCurrencyRoutes(api *gin.RouterGroup, handler *handlers.CurrencyHandler) {
	currency := api.Group("/currency")
	{
		currency.GET("/rates", handler.Rates)
		currency.GET("/convert", handler.Convert)
	}
}
