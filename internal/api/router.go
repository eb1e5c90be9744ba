package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expiry-notifier/internal/config"
	"expiry-notifier/internal/logging"
)

func NewRouter(h *Handler, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(cfg.API.BasePath)
	{
		api.POST("/runs", h.TriggerRun)
		api.GET("/preview", h.Preview)
		api.GET("/audit", h.ListAudit)
		api.GET("/events", h.Events)
	}
	return r
}
