// Package inventory is the single entry point the transport layer talks to.
// It composes the ledger, the transaction processor, the forecast engine and
// the replenishment planner behind the operations the service exposes.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/repository"
	"github.com/mamadbah2/freshstock/internal/service/expiry"
	"github.com/mamadbah2/freshstock/internal/service/ledger"
	"github.com/mamadbah2/freshstock/internal/service/replenishment"
)

// Recorder applies inventory movements.
type Recorder interface {
	Record(ctx context.Context, req models.TransactionRequest) (models.Transaction, error)
}

// Forecaster is the read and retrain surface of the forecast engine.
type Forecaster interface {
	Forecast(category string) []models.Prediction
	Insights(category string) (models.Insight, error)
	AllInsights() []models.Insight
	Retrain(category string)
	RetrainAll(ctx context.Context) error
}

// Planner runs a replenishment sweep.
type Planner interface {
	Evaluate(ctx context.Context, now time.Time) (replenishment.Result, error)
}

// Emitter hands signals to the notification layer without blocking.
type Emitter interface {
	Emit(signal models.Signal)
}

// Service implements the exposed inventory operations.
type Service struct {
	store    repository.Store
	ledger   *ledger.Ledger
	recorder Recorder
	forecast Forecaster
	planner  Planner
	emitter  Emitter
	now      func() time.Time
	logger   *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithEmitter publishes expiry alerts raised by DailyExpiryCheck.
func WithEmitter(e Emitter) Option { return func(s *Service) { s.emitter = e } }

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the facade.
func NewService(store repository.Store, l *ledger.Ledger, recorder Recorder, forecast Forecaster, planner Planner, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:    store,
		ledger:   l,
		recorder: recorder,
		forecast: forecast,
		planner:  planner,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordTransaction records a sale, wastage or restock.
func (s *Service) RecordTransaction(ctx context.Context, req models.TransactionRequest) (models.Transaction, error) {
	return s.recorder.Record(ctx, req)
}

// AddBatch receives new stock. The batch is persisted together with its
// restock transaction.
func (s *Service) AddBatch(ctx context.Context, nb models.NewBatch) (models.Batch, error) {
	tx, err := s.recorder.Record(ctx, models.TransactionRequest{
		ProductID:       nb.ProductID,
		Type:            models.TransactionRestock,
		Quantity:        nb.Quantity,
		CostPrice:       nb.CostPrice,
		ManufactureDate: nb.ManufactureDate,
		ExpiryDate:      nb.ExpiryDate,
		Notes:           "batch received",
	})
	if err != nil {
		return models.Batch{}, err
	}
	for _, b := range s.ledger.Batches(nb.ProductID) {
		if tx.BatchID != nil && b.ID == *tx.BatchID {
			return b, nil
		}
	}
	return models.Batch{}, fmt.Errorf("batch of transaction %s: %w", tx.ID, models.ErrUnknownBatch)
}

// GetProduct returns a product with its stock and batches in consumption order.
func (s *Service) GetProduct(ctx context.Context, id string) (models.ProductStock, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return models.ProductStock{}, err
	}
	return models.ProductStock{Product: p, TotalStock: s.ledger.TotalStock(id), Batches: s.ledger.Batches(id)}, nil
}

// ListProducts returns the catalog with current stock, optionally narrowed to
// one category.
func (s *Service) ListProducts(ctx context.Context, category string) ([]models.ProductStock, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ProductStock, 0, len(products))
	for _, p := range products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		out = append(out, models.ProductStock{Product: p, TotalStock: s.ledger.TotalStock(p.ID)})
	}
	return out, nil
}

// UpsertProduct creates or replaces a catalog entry.
func (s *Service) UpsertProduct(ctx context.Context, p models.Product) error {
	p.ID = strings.TrimSpace(p.ID)
	p.Category = strings.TrimSpace(p.Category)
	if p.ID == "" || p.Category == "" || p.MinStock < 0 || p.MRP.IsNegative() {
		return models.ErrInvalidProduct
	}
	if err := s.store.UpsertProduct(ctx, p); err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

// GetExpiryAlerts lists every non-empty batch expiring within withinDays days,
// already expired ones included, soonest first.
func (s *Service) GetExpiryAlerts(ctx context.Context, withinDays int) ([]models.ExpiryAlert, error) {
	now := s.now()
	names, err := s.productsByID(ctx)
	if err != nil {
		return nil, err
	}

	alerts := []models.ExpiryAlert{}
	for _, b := range s.ledger.ActiveBatches() {
		if expiry.DaysUntil(now, b.ExpiryDate) > withinDays {
			continue
		}
		alerts = append(alerts, expiry.Alert(now, names[b.ProductID], b))
	}
	sortAlerts(alerts)
	return alerts, nil
}

// GetStockAlerts lists products whose stock is below their minimum.
func (s *Service) GetStockAlerts(ctx context.Context) ([]models.StockAlert, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	alerts := []models.StockAlert{}
	for _, p := range products {
		stock := s.ledger.TotalStock(p.ID)
		if stock >= p.MinStock {
			continue
		}
		alerts = append(alerts, models.StockAlert{
			ProductID:    p.ID,
			ProductName:  p.Name,
			Category:     p.Category,
			CurrentStock: stock,
			MinStock:     p.MinStock,
		})
	}
	return alerts, nil
}

// Pulse returns the automatic near-expiry markdown of a product.
func (s *Service) Pulse(ctx context.Context, productID string) (models.PulseDiscount, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return models.PulseDiscount{}, err
	}
	return expiry.Pulse(s.now(), p, s.ledger.Batches(productID)), nil
}

// DailyExpiryCheck classifies every non-empty batch and emits an expiry
// alert for each one that is not fresh.
func (s *Service) DailyExpiryCheck(ctx context.Context) (models.ExpiryCheck, error) {
	now := s.now()
	names, err := s.productsByID(ctx)
	if err != nil {
		return models.ExpiryCheck{}, err
	}

	batches := s.ledger.ActiveBatches()
	alerts := make([]models.ExpiryAlert, 0, len(batches))
	summary := models.ExpiryCheck{CheckedAt: now.UTC(), Checked: len(batches)}
	for _, b := range batches {
		alert := expiry.Alert(now, names[b.ProductID], b)
		switch alert.Status {
		case models.ExpiryExpired:
			summary.Expired++
		case models.ExpiryCritical:
			summary.Critical++
		case models.ExpiryWarning:
			summary.Warning++
		default:
			continue
		}
		alerts = append(alerts, alert)
	}
	sortAlerts(alerts)

	for i := range alerts {
		if s.emitter != nil {
			s.emitter.Emit(models.Signal{Kind: models.SignalExpiryAlert, OccurredAt: now.UTC(), Expiry: &alerts[i]})
		}
		summary.Alerts++
	}

	s.logger.Info("expiry check finished",
		zap.Int("checked", summary.Checked),
		zap.Int("expired", summary.Expired),
		zap.Int("critical", summary.Critical),
		zap.Int("warning", summary.Warning))
	return summary, nil
}

// GetSeasonalForecast returns the twelve monthly predictions of category, or
// of every trained category when category is empty.
func (s *Service) GetSeasonalForecast(category string) []models.Prediction {
	return s.forecast.Forecast(category)
}

// GetInsights summarizes the forecast of one category.
func (s *Service) GetInsights(category string) (models.Insight, error) {
	return s.forecast.Insights(category)
}

// AllInsights summarizes every trained category.
func (s *Service) AllInsights() []models.Insight {
	return s.forecast.AllInsights()
}

// Retrain schedules a retrain of category, or retrains every category when
// category is empty.
func (s *Service) Retrain(ctx context.Context, category string) error {
	if category == "" {
		return s.forecast.RetrainAll(ctx)
	}
	s.forecast.Retrain(category)
	return nil
}

// PlanReplenishment runs one planner sweep at the current instant.
func (s *Service) PlanReplenishment(ctx context.Context) (replenishment.Result, error) {
	return s.planner.Evaluate(ctx, s.now())
}

// ListPurchaseOrderDrafts lists drafts, narrowed to status when it is set.
func (s *Service) ListPurchaseOrderDrafts(ctx context.Context, status string) ([]models.PurchaseOrderDraft, error) {
	var filter models.DraftStatus
	if status != "" {
		parsed, err := models.ParseDraftStatus(strings.ToLower(status))
		if err != nil {
			return nil, fmt.Errorf("status %q: %w", status, err)
		}
		filter = parsed
	}
	return s.store.ListDrafts(ctx, filter)
}

// UpdateDraftStatus moves a draft one step along draft -> sent -> received.
func (s *Service) UpdateDraftStatus(ctx context.Context, id, status string) (models.PurchaseOrderDraft, error) {
	next, err := models.ParseDraftStatus(strings.ToLower(status))
	if err != nil {
		return models.PurchaseOrderDraft{}, fmt.Errorf("status %q: %w", status, err)
	}
	d, err := s.store.UpdateDraftStatus(ctx, id, next, s.now().UTC())
	if err != nil {
		return models.PurchaseOrderDraft{}, err
	}
	s.logger.Info("purchase order status changed", zap.String("draft_id", id), zap.String("status", string(next)))
	return d, nil
}

// ListTransactions returns matching transactions newest first.
func (s *Service) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	return s.store.ListTransactions(ctx, filter)
}

// ListSuppliers returns the supplier directory.
func (s *Service) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	return s.store.ListSuppliers(ctx)
}

// UpsertSupplier registers the supplier of a category.
func (s *Service) UpsertSupplier(ctx context.Context, sup models.Supplier) error {
	if strings.TrimSpace(sup.Name) == "" || strings.TrimSpace(sup.Category) == "" {
		return fmt.Errorf("supplier needs a name and a category: %w", models.ErrInvalidSupplier)
	}
	return s.store.UpsertSupplier(ctx, sup)
}

func (s *Service) productsByID(ctx context.Context) (map[string]models.Product, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func sortAlerts(alerts []models.ExpiryAlert) {
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].ExpiryDate.Equal(alerts[j].ExpiryDate) {
			return alerts[i].ExpiryDate.Before(alerts[j].ExpiryDate)
		}
		return alerts[i].BatchID < alerts[j].BatchID
	})
}
