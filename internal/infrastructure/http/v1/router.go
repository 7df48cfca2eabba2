package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spcledger/internal/domain/registers/quantity"
	"spcledger/internal/domain/reports"
	"spcledger/internal/infrastructure/http/v1/handlers"
	"spcledger/internal/infrastructure/http/v1/middleware"
	"spcledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Quantity is the quantity register service
	Quantity *quantity.Service

	// Reports builds the quantity turnover report
	Reports *reports.Service

	// Backend names the storage backend reported by /health/ready
	Backend string

	// DB is pinged by /health/ready; nil for the memory backend
	DB handlers.Pinger

	// Metrics records request durations; nil disables /metrics
	Metrics Metrics

	// Development enables gin debug mode
	Development bool
}

// Metrics is the request recorder and its scrape endpoint.
type Metrics interface {
	middleware.RequestObserver
	Handler() http.Handler
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no company required)
	healthHandler := handlers.NewHealthHandler(cfg.Backend, cfg.DB)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		registerQuantityRoutes(v1, cfg)
		registerReportRoutes(v1, cfg)
	}

	return router
}

// registerQuantityRoutes registers quantity register endpoints.
// Journal callbacks are addressed by line or entry id; reads are company scoped.
func registerQuantityRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewQuantityHandler(baseHandler, cfg.Quantity)

	group := rg.Group("/quantity")
	RegisterJournalCallbackRoutes(group, handler)

	scoped := group.Group("")
	scoped.Use(middleware.Company())
	RegisterReadRoutes(scoped, handler)
}

// registerReportRoutes registers report endpoints.
func registerReportRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	reportsGroup := rg.Group("/reports")
	reportsGroup.Use(middleware.Company())

	reportHandler := handlers.NewReportsHandler(handlers.NewBaseHandler(), cfg.Reports)
	reportsGroup.GET("/quantity-turnover", reportHandler.GetQuantityTurnover)
}
