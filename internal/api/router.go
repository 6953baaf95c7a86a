package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockpanel/panel/internal/middleware"
	"github.com/blockpanel/panel/internal/monitoring"
	"github.com/blockpanel/panel/internal/service"
	"github.com/blockpanel/panel/pkg/config"
)

func SetupRouter(
	authHandler *AuthHandler,
	handler *Handler,
	consoleHandler *ConsoleHandler,
	lifecycle *service.LifecycleService,
	cfg *config.Config,
) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (in order)
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RateLimitMiddleware(middleware.GlobalRateLimiter))

	// CORS restricted to the configured frontend origin
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.FrontendOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Health check (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.AppName})
	})
	router.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Prometheus scrape endpoint; the per-server status gauge is refreshed
	// from the runtime on every scrape
	promHandler := promhttp.Handler()
	router.GET("/prometheus", func(c *gin.Context) {
		for id, status := range lifecycle.AllStatuses() {
			monitoring.ServerStatusGauge.WithLabelValues(id).Set(monitoring.StatusToFloat(string(status)))
		}
		promHandler.ServeHTTP(c.Writer, c.Request)
	})

	// Auth endpoints with strict rate limiting
	auth := router.Group("/api/auth")
	auth.Use(middleware.RateLimitMiddleware(middleware.AuthRateLimiter))
	{
		auth.POST("/login", authHandler.Login)
	}

	// Server endpoints, JWT protected
	servers := router.Group("/api/servers")
	servers.Use(middleware.AuthMiddleware())
	{
		servers.GET("", handler.ListServers)
		servers.POST("", handler.CreateServer)
		servers.GET("/status", handler.AllStatuses)

		servers.GET("/:id", handler.GetServer)
		servers.PUT("/:id", handler.UpdateServer)
		servers.DELETE("/:id", handler.DeleteServer)

		servers.GET("/:id/status", handler.Status)
		servers.GET("/:id/resources", handler.Resources)
		servers.GET("/:id/logs", handler.Logs)
		servers.GET("/:id/console", consoleHandler.HandleConsole)
		servers.POST("/:id/command", handler.ExecuteCommand)

		servers.POST("/:id/start", handler.StartServer)
		servers.POST("/:id/stop", handler.StopServer)
		servers.POST("/:id/restart", handler.RestartServer)
		servers.POST("/:id/clear-data", handler.ClearData)
	}

	return router
}
