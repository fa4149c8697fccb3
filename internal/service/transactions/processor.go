// Package transactions records sales, wastage and restocks against the batch
// ledger and persists one immutable transaction per accepted request.
package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/metrics"
	"github.com/mamadbah2/freshstock/internal/repository"
	"github.com/mamadbah2/freshstock/internal/service/ledger"
)

// Observer is told about every recorded sale.
type Observer interface {
	Observe(category string)
}

// Replenisher re-evaluates a product after its stock went down.
type Replenisher interface {
	EvaluateProduct(ctx context.Context, productID string, now time.Time) (*models.PurchaseOrderDraft, error)
}

// Emitter hands signals to the notification layer without blocking.
type Emitter interface {
	Emit(signal models.Signal)
}

// Processor implements RecordTransaction.
type Processor struct {
	catalog   repository.Catalog
	movements repository.MovementStore
	ledger    *ledger.Ledger

	observer    Observer
	replenisher Replenisher
	emitter     Emitter
	metrics     *metrics.Collector

	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// Option customizes a Processor.
type Option func(*Processor)

// WithObserver forwards sales to o, typically the forecast engine.
func WithObserver(o Observer) Option { return func(p *Processor) { p.observer = o } }

// WithReplenisher evaluates replenishment synchronously after each sale.
func WithReplenisher(r Replenisher) Option { return func(p *Processor) { p.replenisher = r } }

// WithEmitter publishes stock alerts through e.
func WithEmitter(e Emitter) Option { return func(p *Processor) { p.emitter = e } }

// WithMetrics records counters on c.
func WithMetrics(c *metrics.Collector) Option { return func(p *Processor) { p.metrics = c } }

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// NewProcessor wires a processor over the catalog, the persistent store and
// the in-memory ledger.
func NewProcessor(catalog repository.Catalog, movements repository.MovementStore, l *ledger.Ledger, logger *zap.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Processor{
		catalog:   catalog,
		movements: movements,
		ledger:    l,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Record validates and applies one inventory movement. On any error nothing
// is persisted and no batch changes.
func (p *Processor) Record(ctx context.Context, req models.TransactionRequest) (models.Transaction, error) {
	if !req.Type.Valid() {
		p.metrics.TransactionRejected("invalid_type")
		return models.Transaction{}, fmt.Errorf("type %q: %w", req.Type, models.ErrInvalidTransactionType)
	}
	if req.Quantity <= 0 {
		p.metrics.TransactionRejected("invalid_quantity")
		return models.Transaction{}, models.ErrInvalidQuantity
	}

	product, err := p.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, models.ErrUnknownProduct) {
			p.metrics.TransactionRejected("unknown_product")
		}
		return models.Transaction{}, err
	}

	var tx models.Transaction
	switch req.Type {
	case models.TransactionRestock:
		tx, err = p.restock(ctx, product, req)
	default:
		tx, err = p.consume(ctx, product, req)
	}
	if err != nil {
		p.reject(product, req, err)
		return models.Transaction{}, err
	}

	p.metrics.TransactionRecorded(tx.Type, tx.Quantity)
	p.logger.Info("transaction recorded",
		zap.String("transaction_id", tx.ID),
		zap.String("product_id", tx.ProductID),
		zap.String("type", string(tx.Type)),
		zap.Int("quantity", tx.Quantity),
		zap.String("total", tx.TotalAmount.StringFixed(2)))

	if tx.Type == models.TransactionSale {
		p.afterSale(ctx, product)
	}
	return tx, nil
}

func (p *Processor) consume(ctx context.Context, product models.Product, req models.TransactionRequest) (models.Transaction, error) {
	purpose := models.PurposeSale
	if req.Type == models.TransactionWastage {
		purpose = models.PurposeWastage
	}

	var tx models.Transaction
	commit := func(ctx context.Context, change ledger.Change) error {
		tx = p.newTransaction(product, req)
		tx.Allocations = change.Allocations
		tx.UnitPrice, tx.TotalAmount = consumptionPrice(product, req, change.Allocations)
		if len(change.Allocations) == 1 {
			id := change.Allocations[0].BatchID
			tx.BatchID = &id
		}
		return p.movements.RecordConsumption(ctx, change.Allocations, tx)
	}

	var err error
	if req.BatchID != nil {
		_, err = p.ledger.ConsumeBatch(ctx, product.ID, *req.BatchID, req.Quantity, purpose, commit)
	} else {
		_, err = p.ledger.Consume(ctx, product.ID, req.Quantity, purpose, commit)
	}
	if err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

func (p *Processor) restock(ctx context.Context, product models.Product, req models.TransactionRequest) (models.Transaction, error) {
	cost := req.CostPrice
	if cost.IsZero() && req.UnitPrice != nil {
		cost = *req.UnitPrice
	}

	var tx models.Transaction
	commit := func(ctx context.Context, change ledger.Change) error {
		tx = p.newTransaction(product, req)
		id := change.Batch.ID
		tx.BatchID = &id
		tx.UnitPrice = cost
		tx.TotalAmount = cost.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
		return p.movements.RecordRestock(ctx, *change.Batch, tx)
	}

	_, err := p.ledger.AddBatch(ctx, models.NewBatch{
		ProductID:       product.ID,
		Quantity:        req.Quantity,
		CostPrice:       cost,
		ManufactureDate: req.ManufactureDate,
		ExpiryDate:      req.ExpiryDate,
	}, commit)
	if err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

func (p *Processor) newTransaction(product models.Product, req models.TransactionRequest) models.Transaction {
	return models.Transaction{
		ID:        p.newID(),
		ProductID: product.ID,
		Category:  product.Category,
		Type:      req.Type,
		Quantity:  req.Quantity,
		CreatedAt: p.now().UTC(),
		Notes:     req.Notes,
	}
}

// consumptionPrice defaults sales to the product MRP and wastage to the cost
// of the batches actually drained.
func consumptionPrice(product models.Product, req models.TransactionRequest, allocations []models.Allocation) (unit, total decimal.Decimal) {
	qty := decimal.NewFromInt(int64(req.Quantity))

	if req.UnitPrice != nil {
		unit = *req.UnitPrice
		return unit, unit.Mul(qty).Round(2)
	}

	if req.Type == models.TransactionSale {
		return product.MRP, product.MRP.Mul(qty).Round(2)
	}

	total = decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.CostPrice.Mul(decimal.NewFromInt(int64(a.Quantity))))
	}
	return total.Div(qty).Round(2), total.Round(2)
}

func (p *Processor) afterSale(ctx context.Context, product models.Product) {
	if p.observer != nil {
		p.observer.Observe(product.Category)
	}

	if stock := p.ledger.TotalStock(product.ID); stock < product.MinStock {
		alert := models.StockAlert{
			ProductID:    product.ID,
			ProductName:  product.Name,
			Category:     product.Category,
			CurrentStock: stock,
			MinStock:     product.MinStock,
		}
		p.logger.Warn("stock below minimum",
			zap.String("product_id", product.ID),
			zap.Int("stock", stock),
			zap.Int("min_stock", product.MinStock))
		if p.emitter != nil {
			p.emitter.Emit(models.Signal{Kind: models.SignalStockAlert, OccurredAt: p.now().UTC(), Stock: &alert})
		}
	}

	if p.replenisher != nil {
		if _, err := p.replenisher.EvaluateProduct(ctx, product.ID, p.now()); err != nil {
			p.logger.Error("replenishment evaluation failed", zap.String("product_id", product.ID), zap.Error(err))
		}
	}
}

func (p *Processor) reject(product models.Product, req models.TransactionRequest, err error) {
	reason := "store_error"
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		reason = "insufficient_stock"
	case errors.Is(err, models.ErrUnknownBatch):
		reason = "unknown_batch"
	case errors.Is(err, models.ErrMissingExpiry):
		reason = "missing_expiry"
	case errors.Is(err, models.ErrInvalidQuantity):
		reason = "invalid_quantity"
	}
	p.metrics.TransactionRejected(reason)

	fields := []zap.Field{
		zap.String("product_id", product.ID),
		zap.String("type", string(req.Type)),
		zap.Int("quantity", req.Quantity),
		zap.Error(err),
	}
	if reason == "store_error" {
		p.logger.Error("transaction failed", fields...)
		return
	}
	p.logger.Debug("transaction rejected", fields...)
}
