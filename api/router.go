package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yourusername/mediahub-go/api/handlers"
	"github.com/yourusername/mediahub-go/api/middleware"
	"github.com/yourusername/mediahub-go/pkg/logger"
)

// Services are the application components served over HTTP
type Services struct {
	Catalog    handlers.CatalogService
	Downloader handlers.MediaDownloader
	Shows      handlers.ShowGrouper
	Transfers  handlers.TransferService
	Progress   handlers.ProgressFeed
	Validation handlers.ValidationService
	Readiness  map[string]handlers.ReadinessCheck
	// Gatherer backs /metrics; nil disables the endpoint
	Gatherer prometheus.Gatherer
	LogsDir  string
}

// SetupRouter sets up the HTTP router
func SetupRouter(svc Services, log *zap.Logger, multiLogger *logger.MultiLogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(log, multiLogger))
	router.Use(middleware.Recovery(log, multiLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics())

	healthHandler := handlers.NewHealthHandler(svc.Readiness)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	if svc.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		mediaHandler := handlers.NewMediaHandler(svc.Catalog, svc.Downloader, svc.Shows, log)
		media := v1.Group("/media")
		{
			media.GET("", mediaHandler.ListMedia)
			media.GET("/local", mediaHandler.ListLocal)
			media.GET("/remote", mediaHandler.ListRemote)
			media.GET("/search", mediaHandler.SearchMedia)
			media.GET("/shows", mediaHandler.ListShows)
			media.GET("/compare", mediaHandler.CompareLibraries)
			media.POST("/sync", mediaHandler.Synchronize)
			media.POST("/sync/request", mediaHandler.RequestSync)
			media.GET("/:id", mediaHandler.GetMedia)
			media.POST("/:id/download", mediaHandler.DownloadMedia)
		}

		downloadHandler := handlers.NewDownloadHandler(svc.Transfers, log)
		progressHandler := handlers.NewProgressWebSocketHandler(svc.Progress, svc.Transfers, log)
		downloads := v1.Group("/downloads")
		{
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/ws", progressHandler.HandleWebSocket)
			downloads.POST("/cleanup", downloadHandler.CleanupDownloads)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
		}

		validationHandler := handlers.NewValidationHandler(svc.Validation)
		validation := v1.Group("/validation")
		{
			validation.GET("/stats", validationHandler.GetStats)
			validation.POST("/stats/reset", validationHandler.ResetStats)
			validation.POST("/cache/clear", validationHandler.ClearCache)
			validation.POST("/cache/cleanup", validationHandler.CleanupCache)
			validation.PUT("/settings", validationHandler.UpdateSettings)
		}

		logHandler := handlers.NewLogHandler(svc.LogsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
