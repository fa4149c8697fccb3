package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

var t0 = time.Date(2024, time.June, 3, 8, 0, 0, 0, time.UTC)

func TestCreateDraft_OneOpenDraftPerProduct(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.CreateDraft(ctx, models.PurchaseOrderDraft{ID: "d1", ProductID: "P1", Status: models.DraftStatusDraft, CreatedAt: t0}))

	err := s.CreateDraft(ctx, models.PurchaseOrderDraft{ID: "d2", ProductID: "P1", Status: models.DraftStatusDraft, CreatedAt: t0})
	assert.ErrorIs(t, err, models.ErrDuplicateDraft)

	open, err := s.HasOpenDraft(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, open)

	_, err = s.UpdateDraftStatus(ctx, "d1", models.DraftStatusSent, t0.Add(time.Hour))
	require.NoError(t, err)

	open, err = s.HasOpenDraft(ctx, "P1")
	require.NoError(t, err)
	assert.False(t, open, "a sent draft no longer blocks a new one")

	require.NoError(t, s.CreateDraft(ctx, models.PurchaseOrderDraft{ID: "d3", ProductID: "P1", Status: models.DraftStatusDraft, CreatedAt: t0.Add(2 * time.Hour)}))

	drafts, err := s.ListDrafts(ctx, models.DraftStatusDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "d3", drafts[0].ID)
}

func TestCreateDraft_ConcurrentCallersKeepUniqueness(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.CreateDraft(ctx, models.PurchaseOrderDraft{
				ID:        string(rune('a' + i)),
				ProductID: "P1",
				Status:    models.DraftStatusDraft,
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestUpdateDraftStatus_Transitions(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateDraft(ctx, models.PurchaseOrderDraft{ID: "d1", ProductID: "P1", Status: models.DraftStatusDraft}))

	_, err := s.UpdateDraftStatus(ctx, "d1", models.DraftStatusReceived, t0)
	assert.ErrorIs(t, err, models.ErrInvalidDraftTransition)

	d, err := s.UpdateDraftStatus(ctx, "d1", models.DraftStatusSent, t0)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusSent, d.Status)
	assert.Equal(t, t0, d.UpdatedAt)

	d, err = s.UpdateDraftStatus(ctx, "d1", models.DraftStatusReceived, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusReceived, d.Status)

	_, err = s.UpdateDraftStatus(ctx, "d1", models.DraftStatusSent, t0)
	assert.ErrorIs(t, err, models.ErrInvalidDraftTransition)

	_, err = s.UpdateDraftStatus(ctx, "missing", models.DraftStatusSent, t0)
	assert.ErrorIs(t, err, models.ErrDraftNotFound)
}

func TestMovements_PersistBatchesAndTransactions(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	batch := models.Batch{ID: 1, ProductID: "P1", Quantity: 10, ExpiryDate: t0.AddDate(0, 0, 5)}
	require.NoError(t, s.RecordRestock(ctx, batch, models.Transaction{ID: "t1", ProductID: "P1", Type: models.TransactionRestock, Quantity: 10, CreatedAt: t0}))
	assert.Error(t, s.RecordRestock(ctx, batch, models.Transaction{ID: "t1b"}))

	err := s.RecordConsumption(ctx,
		[]models.Allocation{{BatchID: 1, Quantity: 4, Remaining: 6}},
		models.Transaction{ID: "t2", ProductID: "P1", Type: models.TransactionSale, Quantity: 4, CreatedAt: t0.Add(time.Hour)})
	require.NoError(t, err)

	err = s.RecordConsumption(ctx,
		[]models.Allocation{{BatchID: 99, Quantity: 1}},
		models.Transaction{ID: "t3", ProductID: "P1", Type: models.TransactionSale, Quantity: 1})
	assert.ErrorIs(t, err, models.ErrUnknownBatch)

	batches, err := s.LoadBatches(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 6, batches[0].Quantity)

	txs, err := s.ListTransactions(ctx, models.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t2", txs[0].ID, "newest first")

	sales, err := s.ListTransactions(ctx, models.TransactionFilter{Type: models.TransactionSale})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "t2", sales[0].ID)

	limited, err := s.ListTransactions(ctx, models.TransactionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSeededStore_HasDefaultSuppliers(t *testing.T) {
	s := NewSeededStore()
	ctx := context.Background()

	sup, err := s.SupplierForCategory(ctx, "dairy")
	require.NoError(t, err)
	assert.Equal(t, "Daily Dairy Co.", sup.Name)

	_, err = s.SupplierForCategory(ctx, "Stationery")
	assert.ErrorIs(t, err, models.ErrSupplierNotFound)

	all, err := s.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(DefaultSuppliers))
}

func TestCatalog_UpsertAndLookup(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.GetProduct(ctx, "P1")
	assert.ErrorIs(t, err, models.ErrUnknownProduct)

	require.NoError(t, s.UpsertProduct(ctx, models.Product{ID: "P1", Name: "Milk", Category: "Dairy", MinStock: 5}))
	require.NoError(t, s.UpsertProduct(ctx, models.Product{ID: "P1", Name: "Whole Milk", Category: "Dairy", MinStock: 8}))

	p, err := s.GetProduct(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Whole Milk", p.Name)
	assert.Equal(t, 8, p.MinStock)
}
