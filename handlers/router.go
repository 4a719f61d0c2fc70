package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"craftfolio/analytics/config"
	"craftfolio/analytics/middleware"
)

// NewRouter wires the HTTP surface. The tracking endpoint is public behind
// the site key; the stats group requires a dashboard token.
func NewRouter(h *AnalyticsHandlers, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigin))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/track", middleware.SiteKeyRequired(cfg.SiteKey), h.TrackEvent)

		stats := api.Group("/stats", middleware.AuthRequired(cfg.JWTSecret, cfg.APIKey))
		{
			stats.GET("/dashboard", h.Dashboard)
			stats.GET("/history", h.History)
			stats.GET("/realtime", h.Realtime)
			stats.POST("/report", h.CustomReport)
			stats.GET("/export", h.Export)
		}
	}
	return router
}
