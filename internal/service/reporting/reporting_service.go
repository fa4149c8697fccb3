package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/repository"
	"github.com/mamadbah2/freshstock/internal/service/expiry"
)

const (
	dateLayout         = "2006-01-02"
	defaultSeriesDays  = 30
	defaultRiskWindow  = 15
	defaultReportLimit = 30
)

// StockView is the read side of the batch ledger.
type StockView interface {
	ActiveBatches() []models.Batch
	TotalStock(productID string) int
}

// Service exposes dashboard analytics and the daily KPI snapshot.
type Service struct {
	store  repository.Store
	stock  StockView
	sink   repository.ReportSink
	window int
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithSink exports every generated daily report to sink.
func WithSink(sink repository.ReportSink) Option { return func(s *Service) { s.sink = sink } }

// WithRiskWindow sets how many days ahead a batch counts as expiring soon.
func WithRiskWindow(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.window = days
		}
	}
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires a new reporting service instance.
func NewService(store repository.Store, stock StockView, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		stock:  stock,
		window: defaultRiskWindow,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KPIs computes the dashboard figures at the current instant. The returned
// report has no id; GenerateDailyReport assigns one when persisting.
func (s *Service) KPIs(ctx context.Context) (models.DailyReport, error) {
	now := s.now().UTC()

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return models.DailyReport{}, fmt.Errorf("list products: %w", err)
	}
	revenue, err := s.sumTransactions(ctx, models.TransactionSale)
	if err != nil {
		return models.DailyReport{}, err
	}
	wastage, err := s.sumTransactions(ctx, models.TransactionWastage)
	if err != nil {
		return models.DailyReport{}, err
	}
	open, err := s.store.ListDrafts(ctx, models.DraftStatusDraft)
	if err != nil {
		return models.DailyReport{}, fmt.Errorf("list drafts: %w", err)
	}

	report := models.DailyReport{
		Date:            time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		TotalProducts:   len(products),
		StockValue:      decimal.Zero,
		Revenue:         revenue.Round(2),
		WastageLoss:     wastage.Round(2),
		OpenDraftsCount: len(open),
	}

	for _, b := range s.stock.ActiveBatches() {
		report.ActiveBatches++
		report.StockValue = report.StockValue.Add(b.CostPrice.Mul(decimal.NewFromInt(int64(b.Quantity))))
		if expiry.DaysUntil(now, b.ExpiryDate) <= s.window {
			report.ExpiringSoon++
		}
	}
	report.StockValue = report.StockValue.Round(2)

	for _, p := range products {
		if s.stock.TotalStock(p.ID) < p.MinStock {
			report.LowStockCount++
		}
	}
	return report, nil
}

// WastageByCategory aggregates every wastage transaction by category.
func (s *Service) WastageByCategory(ctx context.Context) ([]models.WastageSummary, error) {
	txs, err := s.store.ListTransactions(ctx, models.TransactionFilter{Type: models.TransactionWastage})
	if err != nil {
		return nil, fmt.Errorf("list wastage: %w", err)
	}

	byCategory := make(map[string]*models.WastageSummary)
	for _, tx := range txs {
		sum, ok := byCategory[tx.Category]
		if !ok {
			sum = &models.WastageSummary{Category: tx.Category, TotalLoss: decimal.Zero}
			byCategory[tx.Category] = sum
		}
		sum.Incidents++
		sum.TotalQuantity += tx.Quantity
		sum.TotalLoss = sum.TotalLoss.Add(tx.TotalAmount)
	}

	out := make([]models.WastageSummary, 0, len(byCategory))
	for _, sum := range byCategory {
		sum.TotalLoss = sum.TotalLoss.Round(2)
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// RevenueSeries returns per-day revenue, wastage and net over the last days
// days. Only days with at least one sale or wastage appear.
func (s *Service) RevenueSeries(ctx context.Context, days int) ([]models.RevenuePoint, error) {
	if days <= 0 {
		days = defaultSeriesDays
	}
	since := s.now().UTC().AddDate(0, 0, -days)

	txs, err := s.store.ListTransactions(ctx, models.TransactionFilter{Since: since})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	points := make(map[string]*models.RevenuePoint)
	for _, tx := range txs {
		if tx.Type == models.TransactionRestock {
			continue
		}
		day := tx.CreatedAt.UTC().Format(dateLayout)
		pt, ok := points[day]
		if !ok {
			pt = &models.RevenuePoint{Date: day, Revenue: decimal.Zero, Wastage: decimal.Zero}
			points[day] = pt
		}
		if tx.Type == models.TransactionSale {
			pt.Revenue = pt.Revenue.Add(tx.TotalAmount)
		} else {
			pt.Wastage = pt.Wastage.Add(tx.TotalAmount)
		}
	}

	out := make([]models.RevenuePoint, 0, len(points))
	for _, pt := range points {
		pt.Revenue = pt.Revenue.Round(2)
		pt.Wastage = pt.Wastage.Round(2)
		pt.Net = pt.Revenue.Sub(pt.Wastage)
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// CategoryBreakdown summarizes stock held per category, valued at MRP.
func (s *Service) CategoryBreakdown(ctx context.Context) ([]models.CategoryBreakdown, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	byCategory := make(map[string]*models.CategoryBreakdown)
	for _, p := range products {
		row, ok := byCategory[p.Category]
		if !ok {
			row = &models.CategoryBreakdown{Category: p.Category, StockValue: decimal.Zero}
			byCategory[p.Category] = row
		}
		stock := s.stock.TotalStock(p.ID)
		row.ProductCount++
		row.TotalStock += stock
		row.StockValue = row.StockValue.Add(p.MRP.Mul(decimal.NewFromInt(int64(stock))))
	}

	out := make([]models.CategoryBreakdown, 0, len(byCategory))
	for _, row := range byCategory {
		row.StockValue = row.StockValue.Round(2)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// CategorySales aggregates every sale by category.
func (s *Service) CategorySales(ctx context.Context) ([]models.CategorySales, error) {
	txs, err := s.store.ListTransactions(ctx, models.TransactionFilter{Type: models.TransactionSale})
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	byCategory := make(map[string]*models.CategorySales)
	for _, tx := range txs {
		row, ok := byCategory[tx.Category]
		if !ok {
			row = &models.CategorySales{Category: tx.Category, TotalSales: decimal.Zero}
			byCategory[tx.Category] = row
		}
		row.TotalSales = row.TotalSales.Add(tx.TotalAmount)
		row.TotalQuantity += tx.Quantity
	}

	out := make([]models.CategorySales, 0, len(byCategory))
	for _, row := range byCategory {
		row.TotalSales = row.TotalSales.Round(2)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// GenerateDailyReport snapshots the KPIs, persists them and forwards a copy to
// the configured sink. A sink failure is logged; the snapshot stays saved.
func (s *Service) GenerateDailyReport(ctx context.Context) (models.DailyReport, error) {
	report, err := s.KPIs(ctx)
	if err != nil {
		return models.DailyReport{}, err
	}
	report.ID = s.newID()
	report.CreatedAt = s.now().UTC()

	if err := s.store.SaveDailyReport(ctx, report); err != nil {
		return models.DailyReport{}, fmt.Errorf("save daily report: %w", err)
	}

	if s.sink != nil {
		if err := s.sink.ExportDailyReport(ctx, report); err != nil {
			s.logger.Error("daily report export failed", zap.String("report_id", report.ID), zap.Error(err))
		}
	}

	s.logger.Info("daily report generated",
		zap.String("date", report.Date.Format(dateLayout)),
		zap.String("revenue", report.Revenue.StringFixed(2)),
		zap.String("wastage", report.WastageLoss.StringFixed(2)),
		zap.Int("low_stock", report.LowStockCount),
		zap.Int("expiring_soon", report.ExpiringSoon))
	return report, nil
}

// RecentReports lists persisted daily reports, newest first.
func (s *Service) RecentReports(ctx context.Context, limit int) ([]models.DailyReport, error) {
	if limit <= 0 {
		limit = defaultReportLimit
	}
	return s.store.ListDailyReports(ctx, limit)
}

func (s *Service) sumTransactions(ctx context.Context, t models.TransactionType) (decimal.Decimal, error) {
	txs, err := s.store.ListTransactions(ctx, models.TransactionFilter{Type: t})
	if err != nil {
		return decimal.Zero, fmt.Errorf("list %s transactions: %w", t, err)
	}
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.TotalAmount)
	}
	return total, nil
}
