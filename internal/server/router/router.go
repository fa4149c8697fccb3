package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares. A nil
// metrics handler leaves /metrics unregistered.
func New(inventory *handlers.InventoryHandler, analytics *handlers.AnalyticsHandler, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	api := r.Group("/api")
	{
		api.GET("/products", inventory.ListProducts)
		api.GET("/products/:id", inventory.GetProduct)
		api.PUT("/products/:id", inventory.UpsertProduct)
		api.GET("/products/:id/pulse", inventory.Pulse)

		api.POST("/batches", inventory.AddBatch)
		api.GET("/batches/expiring", inventory.ExpiringBatches)

		api.POST("/transactions", inventory.RecordTransaction)
		api.GET("/transactions", inventory.ListTransactions)

		api.GET("/alerts/stock", inventory.StockAlerts)

		api.GET("/forecast/seasonal", inventory.SeasonalForecast)
		api.GET("/forecast/insights", inventory.Insights)
		api.POST("/forecast/retrain", inventory.Retrain)

		api.GET("/purchase-orders", inventory.ListPurchaseOrders)
		api.POST("/purchase-orders/:id/status", inventory.UpdatePurchaseOrderStatus)

		api.GET("/suppliers", inventory.ListSuppliers)
		api.POST("/suppliers", inventory.UpsertSupplier)

		api.GET("/dashboard/kpi", analytics.KPIs)
		api.GET("/analytics/wastage", analytics.Wastage)
		api.GET("/analytics/revenue", analytics.Revenue)
		api.GET("/analytics/categories", analytics.Categories)
		api.GET("/analytics/category-sales", analytics.CategorySales)
		api.GET("/reports", analytics.Reports)

		api.POST("/jobs/expiry-check", inventory.ExpiryCheck)
		api.POST("/jobs/replenishment", inventory.PlanReplenishment)
		api.POST("/jobs/daily-report", analytics.GenerateReport)
	}

	if logger != nil {
		logger.Info("router initialized", zap.Int("routes", len(r.Routes())))
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}
