package transactions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/repository/memory"
	"github.com/mamadbah2/freshstock/internal/service/ledger"
)

var t0 = time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)

type recordingEmitter struct {
	mu      sync.Mutex
	signals []models.Signal
}

func (r *recordingEmitter) Emit(s models.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, s)
}

type countingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingObserver) Observe(category string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[category]++
}

type stubReplenisher struct {
	evaluated []string
}

func (s *stubReplenisher) EvaluateProduct(_ context.Context, productID string, _ time.Time) (*models.PurchaseOrderDraft, error) {
	s.evaluated = append(s.evaluated, productID)
	return nil, nil
}

type failingStore struct {
	*memory.Store
	fail bool
}

func (f *failingStore) RecordConsumption(ctx context.Context, allocs []models.Allocation, tx models.Transaction) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.RecordConsumption(ctx, allocs, tx)
}

type fixture struct {
	store     *memory.Store
	ledger    *ledger.Ledger
	proc      *Processor
	emitter   *recordingEmitter
	observer  *countingObserver
	replenish *stubReplenisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		ledger:    ledger.New(nil, ledger.WithClock(func() time.Time { return t0 })),
		emitter:   &recordingEmitter{},
		observer:  &countingObserver{},
		replenish: &stubReplenisher{},
	}
	require.NoError(t, f.store.UpsertProduct(context.Background(), models.Product{
		ID:       "P1",
		Name:     "Greek Yogurt",
		Category: "Dairy",
		MRP:      decimal.RequireFromString("2.50"),
		MinStock: 5,
	}))
	f.proc = NewProcessor(f.store, f.store, f.ledger, nil,
		WithEmitter(f.emitter),
		WithObserver(f.observer),
		WithReplenisher(f.replenish),
		WithClock(func() time.Time { return t0 }))
	return f
}

func (f *fixture) restock(t *testing.T, qty int, cost string, expiresIn int) models.Transaction {
	t.Helper()
	tx, err := f.proc.Record(context.Background(), models.TransactionRequest{
		ProductID:  "P1",
		Type:       models.TransactionRestock,
		Quantity:   qty,
		CostPrice:  decimal.RequireFromString(cost),
		ExpiryDate: t0.AddDate(0, 0, expiresIn),
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) transactions(t *testing.T) []models.Transaction {
	t.Helper()
	txs, err := f.store.ListTransactions(context.Background(), models.TransactionFilter{})
	require.NoError(t, err)
	return txs
}

func TestRecord_SaleDefaultsToMRP(t *testing.T) {
	f := newFixture(t)
	f.restock(t, 10, "1.20", 10)

	tx, err := f.proc.Record(context.Background(), models.TransactionRequest{ProductID: "P1", Type: models.TransactionSale, Quantity: 4})
	require.NoError(t, err)

	assert.Equal(t, "2.5", tx.UnitPrice.String())
	assert.Equal(t, "10", tx.TotalAmount.String())
	assert.Equal(t, "Dairy", tx.Category)
	require.Len(t, tx.Allocations, 1)
	assert.Equal(t, 6, f.ledger.TotalStock("P1"))
	assert.Equal(t, 1, f.observer.calls["Dairy"])
	assert.Equal(t, []string{"P1"}, f.replenish.evaluated)
	assert.Len(t, f.transactions(t), 2)
}

func TestRecord_SaleWithExplicitPrice(t *testing.T) {
	f := newFixture(t)
	f.restock(t, 10, "1.20", 10)

	price := decimal.RequireFromString("1.99")
	tx, err := f.proc.Record(context.Background(), models.TransactionRequest{ProductID: "P1", Type: models.TransactionSale, Quantity: 3, UnitPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, "5.97", tx.TotalAmount.String())
}

func TestRecord_StockAlertWhenBelowMinimum(t *testing.T) {
	f := newFixture(t)
	f.restock(t, 10, "1.00", 10)

	_, err := f.proc.Record(context.Background(), models.TransactionRequest{ProductID: "P1", Type: models.TransactionSale, Quantity: 5})
	require.NoError(t, err)
	assert.Empty(t, f.emitter.signals, "stock equal to minimum is not an alert")

	_, err = f.proc.Record(context.Background(), models.TransactionRequest{ProductID: "P1", Type: models.TransactionSale, Quantity: 1})
	require.NoError(t, err)

	require.Len(t, f.emitter.signals, 1)
	sig := f.emitter.signals[0]
	assert.Equal(t, models.SignalStockAlert, sig.Kind)
	require.NotNil(t, sig.Stock)
	assert.Equal(t, 4, sig.Stock.CurrentStock)
	assert.Equal(t, 5, sig.Stock.MinStock)
	assert.Equal(t, "P1", sig.Key())
}

func TestRecord_WastageValuedAtBatchCost(t *testing.T) {
	f := newFixture(t)
	f.restock(t, 5, "2.00", 20)
	f.restock(t, 3, "1.00", 4)

	tx, err := f.proc.Record(context.Background(), models.TransactionRequest{ProductID: "P1", Type: models.TransactionWastage, Quantity: 5, Notes: "spoiled"})
	require.NoError(t, err)

	require.Len(t, tx.Allocations, 2)
	assert.Equal(t, 3, tx.Allocations[0].Quantity, "earliest expiry goes first")
	assert.Equal(t, "7", tx.TotalAmount.String())
	assert.Equal(t, "1.4", tx.UnitPrice.String())
	assert.Nil(t, tx.BatchID)
	assert.Equal(t, 0, f.observer.calls["Dairy"], "wastage is not demand")
	assert.Empty(t, f.replenish.evaluated)
}

func TestRecord_WastageFromSpecificBatch(t *testing.T) {
	f := newFixture(t)
	f.restock(t, 5, "1.00", 4)
	late := f.restock(t, 5, "3.00", 30)

	tx, err := f.proc.Record(context.Background(), models.TransactionRequest{
		ProductID: "P1",
		Type:      models.TransactionWastage,
		Quantity:  2,
		BatchID:   late.BatchID,
	})
	require.NoError(t, err)
	require.NotNil(t, tx.BatchID)
	assert.Equal(t, *late.BatchID, *tx.BatchID)
	assert.Equal(t, "6", tx.TotalAmount.String())
}

func TestRecord_Restock(t *testing.T) {
	f := newFixture(t)

	tx := f.restock(t, 12, "0.75", 9)
	require.NotNil(t, tx.BatchID)
	assert.Equal(t, models.TransactionRestock, tx.Type)
	assert.Equal(t, "9", tx.TotalAmount.String())

	batches, err := f.store.LoadBatches(context.Background())
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "BP1-01", batches[0].BatchNumber)
	assert.Equal(t, 12, f.ledger.TotalStock("P1"))
}

func TestRecord_RejectionsCreateNoTransaction(t *testing.T) {
	f := newFixture(t)
	f.restock(t, 5, "1.00", 9)
	ctx := context.Background()

	cases := []struct {
		name string
		req  models.TransactionRequest
		want error
	}{
		{"zero quantity", models.TransactionRequest{ProductID: "P1", Type: models.TransactionSale}, models.ErrInvalidQuantity},
		{"negative quantity", models.TransactionRequest{ProductID: "P1", Type: models.TransactionWastage, Quantity: -2}, models.ErrInvalidQuantity},
		{"bad type", models.TransactionRequest{ProductID: "P1", Type: "refund", Quantity: 1}, models.ErrInvalidTransactionType},
		{"unknown product", models.TransactionRequest{ProductID: "nope", Type: models.TransactionSale, Quantity: 1}, models.ErrUnknownProduct},
		{"too much", models.TransactionRequest{ProductID: "P1", Type: models.TransactionSale, Quantity: 6}, models.ErrInsufficientStock},
		{"missing expiry", models.TransactionRequest{ProductID: "P1", Type: models.TransactionRestock, Quantity: 6}, models.ErrMissingExpiry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.proc.Record(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.Len(t, f.transactions(t), 1, "only the initial restock")
	assert.Equal(t, 5, f.ledger.TotalStock("P1"))
}

func TestRecord_StoreFailureLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t)
	store := &failingStore{Store: f.store}
	proc := NewProcessor(store, store, f.ledger, nil)

	f.restock(t, 5, "1.00", 9)
	store.fail = true

	_, err := proc.Record(context.Background(), models.TransactionRequest{ProductID: "P1", Type: models.TransactionSale, Quantity: 2})
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, 5, f.ledger.TotalStock("P1"))
	assert.Len(t, f.transactions(t), 1)
}

func TestRecord_ConservesStockUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	f.proc = NewProcessor(f.store, f.store, f.ledger, nil, WithClock(func() time.Time { return t0 }))
	for i := 0; i < 5; i++ {
		f.restock(t, 20, "1.00", 3+i)
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			typ := models.TransactionSale
			if i%3 == 0 {
				typ = models.TransactionWastage
			}
			_, err := f.proc.Record(context.Background(), models.TransactionRequest{ProductID: "P1", Type: typ, Quantity: 3})
			if err != nil {
				assert.ErrorIs(t, err, models.ErrInsufficientStock)
			}
		}(i)
	}
	wg.Wait()

	restocked, consumed := 0, 0
	for _, tx := range f.transactions(t) {
		switch tx.Type {
		case models.TransactionRestock:
			restocked += tx.Quantity
		default:
			consumed += tx.Quantity
		}
	}
	assert.Equal(t, 100, restocked)
	assert.Equal(t, restocked-consumed, f.ledger.TotalStock("P1"))

	persisted := 0
	batches, err := f.store.LoadBatches(context.Background())
	require.NoError(t, err)
	for _, b := range batches {
		persisted += b.Quantity
	}
	assert.Equal(t, f.ledger.TotalStock("P1"), persisted)
}
