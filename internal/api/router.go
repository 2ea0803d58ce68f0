package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/aedes/internal/api/handlers"
	"github.com/your-org/aedes/internal/api/ws"
	"github.com/your-org/aedes/internal/auth"
	"github.com/your-org/aedes/internal/batch"
	"github.com/your-org/aedes/internal/config"
	"github.com/your-org/aedes/internal/detector"
	"github.com/your-org/aedes/internal/queue"
	"github.com/your-org/aedes/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	Batch    config.BatchConfig
	Manager  *batch.Manager
	Detector *detector.Client
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.Detector)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Batch pipeline
	batchH := handlers.NewBatchHandler(cfg.Manager, cfg.Batch)
	v1.POST("/batch/images", batchH.Enqueue)
	v1.GET("/batch", batchH.List)
	v1.GET("/batch/summary", batchH.Summary)
	v1.DELETE("/batch/:id", batchH.Remove)

	// Stored analyses
	analysisH := handlers.NewAnalysisHandler(cfg.DB, cfg.MinIO)
	v1.GET("/analyses", analysisH.List)
	v1.GET("/analyses/:id/image", analysisH.Image)

	// Heat map
	heatH := handlers.NewHeatMapHandler(cfg.DB)
	v1.GET("/heatmap", heatH.Points)
	v1.GET("/heatmap/stats", heatH.Stats)

	// Detection service passthrough
	detH := handlers.NewDetectorHandler(cfg.Detector)
	v1.GET("/detector/models", detH.Models)

	return r
}
