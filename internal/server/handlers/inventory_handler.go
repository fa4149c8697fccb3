package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/service/replenishment"
)

const dateLayout = "2006-01-02"

// Inventory is the service surface behind the inventory routes.
type Inventory interface {
	RecordTransaction(ctx context.Context, req models.TransactionRequest) (models.Transaction, error)
	AddBatch(ctx context.Context, nb models.NewBatch) (models.Batch, error)
	GetProduct(ctx context.Context, id string) (models.ProductStock, error)
	ListProducts(ctx context.Context, category string) ([]models.ProductStock, error)
	UpsertProduct(ctx context.Context, p models.Product) error
	GetExpiryAlerts(ctx context.Context, withinDays int) ([]models.ExpiryAlert, error)
	GetStockAlerts(ctx context.Context) ([]models.StockAlert, error)
	Pulse(ctx context.Context, productID string) (models.PulseDiscount, error)
	DailyExpiryCheck(ctx context.Context) (models.ExpiryCheck, error)
	GetSeasonalForecast(category string) []models.Prediction
	GetInsights(category string) (models.Insight, error)
	AllInsights() []models.Insight
	Retrain(ctx context.Context, category string) error
	PlanReplenishment(ctx context.Context) (replenishment.Result, error)
	ListPurchaseOrderDrafts(ctx context.Context, status string) ([]models.PurchaseOrderDraft, error)
	UpdateDraftStatus(ctx context.Context, id, status string) (models.PurchaseOrderDraft, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
	UpsertSupplier(ctx context.Context, sup models.Supplier) error
}

// InventoryHandler adapts the inventory service to HTTP.
type InventoryHandler struct {
	svc          Inventory
	expiryWindow int
	logger       *zap.Logger
}

// NewInventoryHandler constructs the HTTP handler adapter. expiryWindow is
// the default look-ahead of the expiring batches listing.
func NewInventoryHandler(svc Inventory, expiryWindow int, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if expiryWindow <= 0 {
		expiryWindow = 15
	}
	return &InventoryHandler{svc: svc, expiryWindow: expiryWindow, logger: logger}
}

type transactionRequest struct {
	ProductID       string           `json:"product_id" binding:"required"`
	Type            string           `json:"transaction_type" binding:"required"`
	Quantity        int              `json:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unit_price"`
	BatchID         *int64           `json:"batch_id"`
	Notes           string           `json:"notes"`
	CostPrice       decimal.Decimal  `json:"cost_price"`
	ManufactureDate string           `json:"manufacture_date"`
	ExpiryDate      string           `json:"expiry_date"`
}

type batchRequest struct {
	ProductID       string          `json:"product_id" binding:"required"`
	Quantity        int             `json:"quantity"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	ManufactureDate string          `json:"manufacture_date"`
	ExpiryDate      string          `json:"expiry_date" binding:"required"`
}

type productRequest struct {
	Name     string          `json:"name"`
	Category string          `json:"category" binding:"required"`
	MRP      decimal.Decimal `json:"mrp"`
	MinStock int             `json:"min_stock"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RecordTransaction handles POST /api/transactions.
func (h *InventoryHandler) RecordTransaction(c *gin.Context) {
	var body transactionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	typ, err := models.ParseTransactionType(body.Type)
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("transaction_type %q: %w", body.Type, err))
		return
	}
	manufactured, err := parseOptionalDate(body.ManufactureDate)
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}
	var expires time.Time
	if body.ExpiryDate != "" {
		if expires, err = parseDate(body.ExpiryDate); err != nil {
			badRequest(c, h.logger, err)
			return
		}
	}

	tx, err := h.svc.RecordTransaction(c.Request.Context(), models.TransactionRequest{
		ProductID:       body.ProductID,
		Type:            typ,
		Quantity:        body.Quantity,
		UnitPrice:       body.UnitPrice,
		BatchID:         body.BatchID,
		Notes:           body.Notes,
		CostPrice:       body.CostPrice,
		ManufactureDate: manufactured,
		ExpiryDate:      expires,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

// ListTransactions handles GET /api/transactions.
func (h *InventoryHandler) ListTransactions(c *gin.Context) {
	filter := models.TransactionFilter{ProductID: c.Query("product_id")}
	if raw := c.Query("type"); raw != "" {
		typ, err := models.ParseTransactionType(raw)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		filter.Type = typ
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}
	filter.Limit = limit

	txs, err := h.svc.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, emptyIfNil(txs))
}

// AddBatch handles POST /api/batches.
func (h *InventoryHandler) AddBatch(c *gin.Context) {
	var body batchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	expires, err := parseDate(body.ExpiryDate)
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}
	manufactured, err := parseOptionalDate(body.ManufactureDate)
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}

	batch, err := h.svc.AddBatch(c.Request.Context(), models.NewBatch{
		ProductID:       body.ProductID,
		Quantity:        body.Quantity,
		CostPrice:       body.CostPrice,
		ManufactureDate: manufactured,
		ExpiryDate:      expires,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

// ExpiringBatches handles GET /api/batches/expiring?days=N.
func (h *InventoryHandler) ExpiringBatches(c *gin.Context) {
	days, err := queryInt(c, "days", h.expiryWindow)
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}
	alerts, err := h.svc.GetExpiryAlerts(c.Request.Context(), days)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// StockAlerts handles GET /api/alerts/stock.
func (h *InventoryHandler) StockAlerts(c *gin.Context) {
	alerts, err := h.svc.GetStockAlerts(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// ExpiryCheck handles POST /api/jobs/expiry-check.
func (h *InventoryHandler) ExpiryCheck(c *gin.Context) {
	summary, err := h.svc.DailyExpiryCheck(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// PlanReplenishment handles POST /api/jobs/replenishment.
func (h *InventoryHandler) PlanReplenishment(c *gin.Context) {
	res, err := h.svc.PlanReplenishment(c.Request.Context())
	if err != nil {
		// Partial sweeps still report what they created.
		h.logger.Warn("replenishment sweep incomplete", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"result": res, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res})
}

// ListProducts handles GET /api/products.
func (h *InventoryHandler) ListProducts(c *gin.Context) {
	products, err := h.svc.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// GetProduct handles GET /api/products/:id.
func (h *InventoryHandler) GetProduct(c *gin.Context) {
	p, err := h.svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpsertProduct handles PUT /api/products/:id.
func (h *InventoryHandler) UpsertProduct(c *gin.Context) {
	var body productRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	p := models.Product{ID: c.Param("id"), Name: body.Name, Category: body.Category, MRP: body.MRP, MinStock: body.MinStock}
	if err := h.svc.UpsertProduct(c.Request.Context(), p); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Pulse handles GET /api/products/:id/pulse.
func (h *InventoryHandler) Pulse(c *gin.Context) {
	pulse, err := h.svc.Pulse(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, pulse)
}

// SeasonalForecast handles GET /api/forecast/seasonal?category=.
func (h *InventoryHandler) SeasonalForecast(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.GetSeasonalForecast(c.Query("category")))
}

// Insights handles GET /api/forecast/insights?category=. Without a category
// every trained category is summarized. A category with neither history nor
// archetype still answers 200 with the empty insight flagged untrained.
func (h *InventoryHandler) Insights(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		c.JSON(http.StatusOK, h.svc.AllInsights())
		return
	}
	insight, err := h.svc.GetInsights(category)
	if err != nil && !errors.Is(err, models.ErrModelNotTrained) {
		writeError(c, h.logger, err)
		return
	}
	if err != nil {
		h.logger.Debug("insight requested for untrained category", zap.String("category", category))
	}
	c.JSON(http.StatusOK, insight)
}

// Retrain handles POST /api/forecast/retrain?category=.
func (h *InventoryHandler) Retrain(c *gin.Context) {
	category := c.Query("category")
	if err := h.svc.Retrain(c.Request.Context(), category); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "retrain scheduled", "category": category})
}

// ListPurchaseOrders handles GET /api/purchase-orders?status=.
func (h *InventoryHandler) ListPurchaseOrders(c *gin.Context) {
	drafts, err := h.svc.ListPurchaseOrderDrafts(c.Request.Context(), c.Query("status"))
	if err != nil {
		if statusFor(err) == http.StatusConflict {
			badRequest(c, h.logger, err)
			return
		}
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, drafts)
}

// UpdatePurchaseOrderStatus handles POST /api/purchase-orders/:id/status.
func (h *InventoryHandler) UpdatePurchaseOrderStatus(c *gin.Context) {
	var body statusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	d, err := h.svc.UpdateDraftStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ListSuppliers handles GET /api/suppliers.
func (h *InventoryHandler) ListSuppliers(c *gin.Context) {
	suppliers, err := h.svc.ListSuppliers(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}

// UpsertSupplier handles POST /api/suppliers.
func (h *InventoryHandler) UpsertSupplier(c *gin.Context) {
	var body models.Supplier
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	if err := h.svc.UpsertSupplier(c.Request.Context(), body); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD or RFC 3339", value)
	}
	return t.UTC(), nil
}

func parseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
