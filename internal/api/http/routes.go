package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the hub API on router
func RegisterRoutes(router gin.IRouter, h *Handlers) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
	router.GET("/metrics/json", h.MetricsJSON)

	services := router.Group("/services")
	services.GET("", h.ListServices)
	services.POST("", h.CreateService)
	services.GET("/:id", h.GetService)
	services.PATCH("/:id", h.PatchService)
	services.DELETE("/:id", h.DeleteService)
	services.POST("/:id", h.InvokeService)
	services.POST("/:id/invoke", h.InvokeService)
}

// RegisterModelRoutes mounts the demo model server on router
func RegisterModelRoutes(router gin.IRouter, m *ModelHandlers) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "online",
			"service": "ServiceHub demo models",
			"version": Version,
		})
	})
	router.GET("/models", m.ListModels)
	router.POST("/models/:name", m.Predict)
}
