package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

// Analytics is the reporting surface behind the dashboard routes.
type Analytics interface {
	KPIs(ctx context.Context) (models.DailyReport, error)
	WastageByCategory(ctx context.Context) ([]models.WastageSummary, error)
	RevenueSeries(ctx context.Context, days int) ([]models.RevenuePoint, error)
	CategoryBreakdown(ctx context.Context) ([]models.CategoryBreakdown, error)
	CategorySales(ctx context.Context) ([]models.CategorySales, error)
	GenerateDailyReport(ctx context.Context) (models.DailyReport, error)
	RecentReports(ctx context.Context, limit int) ([]models.DailyReport, error)
}

// AnalyticsHandler serves dashboard figures.
type AnalyticsHandler struct {
	svc    Analytics
	logger *zap.Logger
}

// NewAnalyticsHandler constructs the analytics adapter.
func NewAnalyticsHandler(svc Analytics, logger *zap.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{svc: svc, logger: logger}
}

func (h *AnalyticsHandler) KPIs(c *gin.Context) {
	kpi, err := h.svc.KPIs(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, kpi)
}

func (h *AnalyticsHandler) Wastage(c *gin.Context) {
	rows, err := h.svc.WastageByCategory(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *AnalyticsHandler) Revenue(c *gin.Context) {
	days, err := queryInt(c, "days", 30)
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}
	points, err := h.svc.RevenueSeries(c.Request.Context(), days)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (h *AnalyticsHandler) Categories(c *gin.Context) {
	rows, err := h.svc.CategoryBreakdown(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *AnalyticsHandler) CategorySales(c *gin.Context) {
	rows, err := h.svc.CategorySales(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// GenerateReport handles POST /api/jobs/daily-report.
func (h *AnalyticsHandler) GenerateReport(c *gin.Context) {
	report, err := h.svc.GenerateDailyReport(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (h *AnalyticsHandler) Reports(c *gin.Context) {
	limit, err := queryInt(c, "limit", 30)
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}
	reports, err := h.svc.RecentReports(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(reports))
}
