package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/repository/memory"
	"github.com/mamadbah2/freshstock/internal/service/ledger"
	"github.com/mamadbah2/freshstock/internal/service/replenishment"
	"github.com/mamadbah2/freshstock/internal/service/transactions"
)

var t0 = time.Date(2024, time.August, 1, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return t0 }

type stubForecast struct {
	retrained []string
	all       int
}

func (s *stubForecast) Forecast(category string) []models.Prediction {
	return []models.Prediction{{Category: category, Month: 1, PredictedDemand: 10}}
}

func (s *stubForecast) Insights(category string) (models.Insight, error) {
	if category != "Dairy" {
		return models.Insight{}, models.ErrModelNotTrained
	}
	return models.Insight{Category: category}, nil
}

func (s *stubForecast) AllInsights() []models.Insight { return nil }

func (s *stubForecast) Retrain(category string) { s.retrained = append(s.retrained, category) }

func (s *stubForecast) RetrainAll(context.Context) error {
	s.all++
	return nil
}

type stubPlanner struct{ at time.Time }

func (s *stubPlanner) Evaluate(_ context.Context, now time.Time) (replenishment.Result, error) {
	s.at = now
	return replenishment.Result{Evaluated: 1}, nil
}

type signals struct {
	mu  sync.Mutex
	got []models.Signal
}

func (s *signals) Emit(sig models.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, sig)
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	forecast *stubForecast
	planner  *stubPlanner
	signals  *signals
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewSeededStore()
	l := ledger.New(nil, ledger.WithClock(clock))
	proc := transactions.NewProcessor(store, store, l, nil, transactions.WithClock(clock))
	f := &fixture{store: store, forecast: &stubForecast{}, planner: &stubPlanner{}, signals: &signals{}}
	f.svc = NewService(store, l, proc, f.forecast, f.planner, nil, WithClock(clock), WithEmitter(f.signals))

	for _, p := range []models.Product{
		{ID: "P", Name: "Milk", Category: "Dairy", MRP: decimal.RequireFromString("1.50"), MinStock: 10},
		{ID: "Q", Name: "Cola", Category: "Soft Drinks", MRP: decimal.RequireFromString("0.99"), MinStock: 2},
	} {
		require.NoError(t, f.svc.UpsertProduct(context.Background(), p))
	}
	return f
}

func (f *fixture) batch(t *testing.T, product string, qty, expiresIn int) models.Batch {
	t.Helper()
	b, err := f.svc.AddBatch(context.Background(), models.NewBatch{
		ProductID:  product,
		Quantity:   qty,
		CostPrice:  decimal.RequireFromString("0.40"),
		ExpiryDate: t0.AddDate(0, 0, expiresIn),
	})
	require.NoError(t, err)
	return b
}

func TestGetStockAlerts_BelowMinimum(t *testing.T) {
	f := newFixture(t)
	f.batch(t, "P", 8, 20)
	f.batch(t, "Q", 2, 20)

	alerts, err := f.svc.GetStockAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "P", alerts[0].ProductID)
	assert.Equal(t, 8, alerts[0].CurrentStock)
	assert.Equal(t, 10, alerts[0].MinStock)
}

func TestAddBatch_PersistsRestock(t *testing.T) {
	f := newFixture(t)
	b := f.batch(t, "P", 12, 9)

	assert.Equal(t, "BP-01", b.BatchNumber)
	assert.Equal(t, 12, b.Quantity)

	txs, err := f.svc.ListTransactions(context.Background(), models.TransactionFilter{Type: models.TransactionRestock})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, b.ID, *txs[0].BatchID)

	_, err = f.svc.AddBatch(context.Background(), models.NewBatch{ProductID: "nope", Quantity: 1, ExpiryDate: t0})
	assert.ErrorIs(t, err, models.ErrUnknownProduct)
}

func TestGetExpiryAlerts_Window(t *testing.T) {
	f := newFixture(t)
	f.batch(t, "P", 5, 30)
	soon := f.batch(t, "P", 5, 3)
	gone := f.batch(t, "Q", 5, -1)
	f.batch(t, "Q", 5, 15)

	alerts, err := f.svc.GetExpiryAlerts(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, gone.ID, alerts[0].BatchID)
	assert.Equal(t, models.ExpiryExpired, alerts[0].Status)
	assert.Equal(t, "Cola", alerts[0].ProductName)
	assert.Equal(t, soon.ID, alerts[1].BatchID)
	assert.Equal(t, models.ExpiryCritical, alerts[1].Status)

	alerts, err = f.svc.GetExpiryAlerts(context.Background(), 365)
	require.NoError(t, err)
	assert.Len(t, alerts, 4)
}

func TestDailyExpiryCheck_EmitsForNonFreshBatches(t *testing.T) {
	f := newFixture(t)
	f.batch(t, "P", 5, 30)
	f.batch(t, "P", 5, 3)
	f.batch(t, "Q", 5, 0)
	f.batch(t, "Q", 5, 12)

	summary, err := f.svc.DailyExpiryCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Checked)
	assert.Equal(t, 1, summary.Expired)
	assert.Equal(t, 1, summary.Critical)
	assert.Equal(t, 1, summary.Warning)
	assert.Equal(t, 3, summary.Alerts)

	require.Len(t, f.signals.got, 3)
	for _, sig := range f.signals.got {
		assert.Equal(t, models.SignalExpiryAlert, sig.Kind)
		require.NotNil(t, sig.Expiry)
		assert.NotEqual(t, models.ExpiryFresh, sig.Expiry.Status)
	}
}

func TestPulse(t *testing.T) {
	f := newFixture(t)
	f.batch(t, "P", 5, 4)

	pulse, err := f.svc.Pulse(context.Background(), "P")
	require.NoError(t, err)
	assert.True(t, pulse.HasDiscount)
	assert.Equal(t, "1.2", pulse.DiscountedPrice.String())

	_, err = f.svc.Pulse(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrUnknownProduct)
}

func TestUpsertSupplier_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.UpsertSupplier(ctx, models.Supplier{Category: "Stationery"})
	assert.ErrorIs(t, err, models.ErrInvalidSupplier)
	assert.NotErrorIs(t, err, models.ErrInvalidProduct)
	assert.ErrorIs(t, f.svc.UpsertSupplier(ctx, models.Supplier{Name: "Paper Mill"}), models.ErrInvalidSupplier)

	require.NoError(t, f.svc.UpsertSupplier(ctx, models.Supplier{Name: "Paper Mill", Category: "Stationery"}))
	sup, err := f.store.SupplierForCategory(ctx, "stationery")
	require.NoError(t, err)
	assert.Equal(t, "Paper Mill", sup.Name)
}

func TestUpsertProduct_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.UpsertProduct(ctx, models.Product{ID: " ", Category: "Dairy"}), models.ErrInvalidProduct)
	assert.ErrorIs(t, f.svc.UpsertProduct(ctx, models.Product{ID: "X"}), models.ErrInvalidProduct)
	assert.ErrorIs(t, f.svc.UpsertProduct(ctx, models.Product{ID: "X", Category: "Dairy", MinStock: -1}), models.ErrInvalidProduct)

	require.NoError(t, f.svc.UpsertProduct(ctx, models.Product{ID: " X ", Category: "Dairy"}))
	p, err := f.svc.GetProduct(ctx, "X")
	require.NoError(t, err)
	assert.Zero(t, p.TotalStock)

	dairy, err := f.svc.ListProducts(ctx, "dairy")
	require.NoError(t, err)
	assert.Len(t, dairy, 2)
}

func TestPurchaseOrderDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateDraft(ctx, models.PurchaseOrderDraft{ID: "D1", ProductID: "P", Quantity: 20, Status: models.DraftStatusDraft, CreatedAt: t0}))

	drafts, err := f.svc.ListPurchaseOrderDrafts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	_, err = f.svc.ListPurchaseOrderDrafts(ctx, "cancelled")
	assert.ErrorIs(t, err, models.ErrInvalidDraftTransition)

	_, err = f.svc.UpdateDraftStatus(ctx, "D1", "received")
	assert.ErrorIs(t, err, models.ErrInvalidDraftTransition)

	d, err := f.svc.UpdateDraftStatus(ctx, "D1", "SENT")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusSent, d.Status)
	assert.Equal(t, t0, d.UpdatedAt)

	sent, err := f.svc.ListPurchaseOrderDrafts(ctx, "sent")
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	_, err = f.svc.UpdateDraftStatus(ctx, "D9", "sent")
	assert.ErrorIs(t, err, models.ErrDraftNotFound)
}

func TestForecastPassThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Len(t, f.svc.GetSeasonalForecast("Dairy"), 1)
	_, err := f.svc.GetInsights("Unknown")
	assert.ErrorIs(t, err, models.ErrModelNotTrained)

	require.NoError(t, f.svc.Retrain(ctx, "Dairy"))
	require.NoError(t, f.svc.Retrain(ctx, ""))
	assert.Equal(t, []string{"Dairy"}, f.forecast.retrained)
	assert.Equal(t, 1, f.forecast.all)

	res, err := f.svc.PlanReplenishment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Equal(t, t0, f.planner.at)
}
