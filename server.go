package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sellerdash_backend/appwrite"
	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/insights"
	"github.com/mmdatafocus/sellerdash_backend/middlewares"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/mmdatafocus/sellerdash_backend/models/reports"
	"github.com/mmdatafocus/sellerdash_backend/sqlstore"
	"github.com/mmdatafocus/sellerdash_backend/viewstate"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	logger := config.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "config"}).Fatal(err.Error())
	}
	config.SetLogLevel(cfg.LogLevel)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	cache, err := config.ConnectRedisWithRetry(sigCtx, cfg.RedisAddress)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "redis"}).Fatal(err.Error())
	}
	defer func() { _ = cache.Close() }()

	store, db, err := openRecordStore(sigCtx, cfg, logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "record store"}).Fatal(err.Error())
	}
	if db != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			defer func() { _ = sqlDB.Close() }()
		}
	}

	registry := viewstate.NewRegistry(
		store,
		insights.NewClient(cfg.BackendURL, cfg.Insight),
		viewstate.ReturnsOptions{
			LoadTimeout:    cfg.LoadTimeout,
			InsightTimeout: cfg.Insight.Timeout,
			OrderLimit:     cfg.OrderLimit,
			Cache:          reports.NewReturnsCache(cache, cfg.ReportCache),
		},
		viewstate.DashboardOptions{
			LoadTimeout:    cfg.LoadTimeout,
			InsightTimeout: cfg.Insight.Timeout,
			Summaries:      reports.NewSummaryCache(cache, cfg.ReportCache),
		},
	)

	r := newRouter(cfg, registry, cache, logger)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	logger.WithFields(logrus.Fields{
		"port":         cfg.Port,
		"record_store": cfg.RecordStoreDriver,
	}).Info("seller dashboard backend started")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	registry.Close()
}

// openRecordStore connects the configured backing store. The MySQL mirror
// is migrated on startup unless SKIP_MIGRATIONS is set.
func openRecordStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (viewstate.RecordStore, *gorm.DB, error) {
	if cfg.RecordStoreDriver != config.RecordStoreMySQL {
		return appwrite.NewClient(cfg.Appwrite), nil, nil
	}
	db, err := config.ConnectDatabaseWithRetry(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if os.Getenv("SKIP_MIGRATIONS") != "true" {
		if err := models.MigrateTable(db); err != nil {
			return nil, nil, err
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}
	return sqlstore.New(db), db, nil
}

func newRouter(cfg config.Config, registry *viewstate.Registry, cache *config.Cache, logger *logrus.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middlewares.CorrelationId())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction() {
		// deny all unless an allowlist is configured
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
		if corsConfig.AllowOrigins == nil {
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins

	r.Use(cors.New(corsConfig))
	r.Use(middlewares.AuthMiddleware([]byte(cfg.AuthSecret)))
	if cfg.RateLimit.Enabled && cache.Client() != nil {
		rl := middlewares.NewRateLimiter(cache.Client(), cfg.RateLimit.RPM, cfg.RateLimit.Window)
		r.Use(rl.RateLimitMiddleware)
	}
	r.Use(middlewares.CustomErrorLogger(logger))
	r.Use(gin.Recovery())

	h := &handlers{registry: registry, logger: logger}

	if cfg.PubSubToken != "" {
		r.POST("/pubsub/orders", middlewares.RequirePushToken(cfg.PubSubToken), h.ordersPubSubHandler)
	} else {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("PUBSUB_VERIFICATION_TOKEN not set; /pubsub/orders disabled")
	}

	api := r.Group("/api", middlewares.RequireSession())
	{
		api.GET("/dashboard", h.getDashboard)
		api.POST("/dashboard/refresh", h.refreshDashboard)
		api.PUT("/dashboard/tab", h.setDashboardTab)
		api.POST("/dashboard/quick-action", h.quickAction)
		api.GET("/dashboard/kpis", h.dashboardPanel(func(s viewstate.DashboardSnapshot) any { return s.Kpis }))
		api.GET("/dashboard/product-details", h.dashboardPanel(func(s viewstate.DashboardSnapshot) any { return s.ProductDetails }))
		api.GET("/dashboard/top-selling-items", h.dashboardPanel(func(s viewstate.DashboardSnapshot) any { return s.TopSellingItems }))
		api.GET("/dashboard/purchase-orders", h.dashboardPanel(func(s viewstate.DashboardSnapshot) any { return s.PurchaseOrders }))
		api.GET("/dashboard/sales-orders", h.dashboardPanel(func(s viewstate.DashboardSnapshot) any { return s.SalesOrders }))

		api.GET("/returns", h.getReturns)
		api.POST("/returns/load", h.loadReturns)
		api.PUT("/returns/search", h.searchReturns)
		api.POST("/returns/insight", h.requestInsight)
		api.GET("/returns/stream", h.streamReturns)
		api.GET("/returns/export", h.exportReturns)
	}

	r.NoRoute(customNotFoundHandler)
	return r
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}
