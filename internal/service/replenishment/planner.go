// Package replenishment projects stockouts from forecast demand and drafts
// purchase orders for products at risk. It has no notion of scheduling:
// callers decide when Evaluate runs and which clock it sees.
package replenishment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/metrics"
	"github.com/mamadbah2/freshstock/internal/repository"
)

// Forecaster predicts monthly category demand.
type Forecaster interface {
	Predict(category string, month int) models.Prediction
}

// StockReader reports a product's current total stock.
type StockReader interface {
	TotalStock(productID string) int
}

// Emitter hands signals to the notification layer without blocking.
type Emitter interface {
	Emit(signal models.Signal)
}

// Config tunes the planner.
type Config struct {
	RiskHorizon            time.Duration
	DefaultRestockQuantity int
}

// Assessment is the stockout projection of one product at one instant.
type Assessment struct {
	ProductID      string     `json:"product_id"`
	Stock          int        `json:"stock"`
	DailyRate      float64    `json:"daily_rate"`
	Next30Days     float64    `json:"next_30_days"`
	DaysToStockout float64    `json:"-"`
	StockoutAt     *time.Time `json:"stockout_at,omitempty"`
	AtRisk         bool       `json:"at_risk"`
	Recommended    int        `json:"recommended_quantity"`
}

// Result summarizes one Evaluate sweep.
type Result struct {
	Evaluated int                         `json:"evaluated"`
	AtRisk    int                         `json:"at_risk"`
	Created   []models.PurchaseOrderDraft `json:"created"`
}

// Planner drafts purchase orders.
type Planner struct {
	catalog   repository.Catalog
	suppliers repository.SupplierDirectory
	drafts    repository.DraftStore
	stock     StockReader
	forecast  Forecaster
	emitter   Emitter
	metrics   *metrics.Collector
	cfg       Config
	newID     func() string
	logger    *zap.Logger
}

// Option customizes a Planner.
type Option func(*Planner)

// WithEmitter publishes draft creations through e.
func WithEmitter(e Emitter) Option { return func(p *Planner) { p.emitter = e } }

// WithMetrics counts drafts on c.
func WithMetrics(c *metrics.Collector) Option { return func(p *Planner) { p.metrics = c } }

// NewPlanner wires a planner.
func NewPlanner(cfg Config, catalog repository.Catalog, suppliers repository.SupplierDirectory, drafts repository.DraftStore,
	stock StockReader, forecast Forecaster, logger *zap.Logger, opts ...Option) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RiskHorizon <= 0 {
		cfg.RiskHorizon = 48 * time.Hour
	}
	if cfg.DefaultRestockQuantity <= 0 {
		cfg.DefaultRestockQuantity = 20
	}
	p := &Planner{
		catalog:   catalog,
		suppliers: suppliers,
		drafts:    drafts,
		stock:     stock,
		forecast:  forecast,
		cfg:       cfg,
		newID:     uuid.NewString,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Assess projects when product runs out given the forecast for now's month.
func (p *Planner) Assess(product models.Product, now time.Time) Assessment {
	month := now.Month()
	prediction := p.forecast.Predict(product.Category, int(month))
	days := daysIn(now.Year(), month)

	a := Assessment{
		ProductID:  product.ID,
		Stock:      p.stock.TotalStock(product.ID),
		DailyRate:  prediction.PredictedDemand / float64(days),
		Next30Days: 30 * prediction.PredictedDemand / float64(days),
	}
	a.Recommended = max(p.cfg.DefaultRestockQuantity, int(math.Ceil(a.Next30Days)))

	if a.DailyRate <= 0 {
		a.DaysToStockout = math.Inf(1)
		return a
	}

	a.DaysToStockout = float64(a.Stock) / a.DailyRate
	until := time.Duration(a.DaysToStockout * float64(24*time.Hour))
	at := now.Add(until).UTC()
	a.StockoutAt = &at
	// Stock covering the next 30 days is never at risk, whatever the horizon.
	a.AtRisk = float64(a.Stock) < a.Next30Days && until <= p.cfg.RiskHorizon
	return a
}

// Evaluate assesses every catalog product and drafts purchase orders for
// those at risk without an open draft. Products whose category has no
// supplier are reported in the joined error; the sweep still covers the rest.
func (p *Planner) Evaluate(ctx context.Context, now time.Time) (Result, error) {
	products, err := p.catalog.ListProducts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list products: %w", err)
	}

	var (
		res  Result
		errs []error
	)
	for _, product := range products {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Evaluated++

		a := p.Assess(product, now)
		if !a.AtRisk {
			continue
		}
		res.AtRisk++

		draft, err := p.draft(ctx, product, a, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if draft != nil {
			res.Created = append(res.Created, *draft)
		}
	}

	p.logger.Info("replenishment sweep finished",
		zap.Int("evaluated", res.Evaluated),
		zap.Int("at_risk", res.AtRisk),
		zap.Int("created", len(res.Created)),
		zap.Int("errors", len(errs)))
	return res, errors.Join(errs...)
}

// EvaluateProduct runs the same evaluation for a single product and returns
// the created draft, if any.
func (p *Planner) EvaluateProduct(ctx context.Context, productID string, now time.Time) (*models.PurchaseOrderDraft, error) {
	product, err := p.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	a := p.Assess(product, now)
	if !a.AtRisk {
		return nil, nil
	}
	return p.draft(ctx, product, a, now)
}

func (p *Planner) draft(ctx context.Context, product models.Product, a Assessment, now time.Time) (*models.PurchaseOrderDraft, error) {
	open, err := p.drafts.HasOpenDraft(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("check drafts of %s: %w", product.ID, err)
	}
	if open {
		return nil, nil
	}

	supplier, err := p.suppliers.SupplierForCategory(ctx, product.Category)
	if err != nil {
		if errors.Is(err, models.ErrSupplierNotFound) {
			p.logger.Warn("no supplier for at-risk product",
				zap.String("product_id", product.ID),
				zap.String("category", product.Category))
		}
		return nil, fmt.Errorf("draft for %s: %w", product.ID, err)
	}

	draft := models.PurchaseOrderDraft{
		ID:                    p.newID(),
		SupplierID:            supplier.ID,
		SupplierName:          supplier.Name,
		ProductID:             product.ID,
		Quantity:              a.Recommended,
		Status:                models.DraftStatusDraft,
		CreatedAt:             now.UTC(),
		UpdatedAt:             now.UTC(),
		PredictedStockoutDate: a.StockoutAt,
	}
	if err := p.drafts.CreateDraft(ctx, draft); err != nil {
		if errors.Is(err, models.ErrDuplicateDraft) {
			return nil, nil
		}
		return nil, fmt.Errorf("create draft for %s: %w", product.ID, err)
	}

	p.metrics.DraftCreated()
	p.logger.Info("purchase order draft created",
		zap.String("draft_id", draft.ID),
		zap.String("product_id", product.ID),
		zap.String("supplier", supplier.Name),
		zap.Int("quantity", draft.Quantity),
		zap.Int("stock", a.Stock),
		zap.Float64("daily_rate", a.DailyRate))
	if p.emitter != nil {
		p.emitter.Emit(models.Signal{Kind: models.SignalDraftCreated, OccurredAt: now.UTC(), Draft: &draft})
	}
	return &draft, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
