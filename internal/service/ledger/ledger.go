// Package ledger keeps batch-level stock per product and consumes it in
// expiry order.
package ledger

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

// Change is the mutation handed to a Commit before it is applied in memory.
// Exactly one of Allocations (consumption) or Batch (restock) is set.
type Change struct {
	ProductID   string
	Purpose     models.Purpose
	Allocations []models.Allocation
	Batch       *models.Batch
}

// Commit persists a planned change while the product is locked. Returning an
// error aborts the operation and leaves every batch untouched.
type Commit func(ctx context.Context, change Change) error

// Ledger owns the batches of every product. Operations on one product are
// serialized; different products proceed in parallel.
type Ledger struct {
	mu     sync.RWMutex
	books  map[string]*book
	lastID atomic.Int64
	now    func() time.Time
	logger *zap.Logger
}

type book struct {
	mu      sync.Mutex
	batches map[int64]*models.Batch
	// active holds the non-empty batches sorted by consumption order.
	active []*models.Batch
	added  int
	total  int
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock used to stamp received batches.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New builds an empty ledger.
func New(logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		books:  make(map[string]*book),
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load restores previously persisted batches, typically once at startup.
func (l *Ledger) Load(batches []models.Batch) {
	for i := range batches {
		b := batches[i]
		bk := l.bookFor(b.ProductID)

		bk.mu.Lock()
		bk.batches[b.ID] = &b
		bk.added++
		if b.Quantity > 0 {
			bk.insert(&b)
			bk.total += b.Quantity
		}
		bk.mu.Unlock()

		for {
			last := l.lastID.Load()
			if b.ID <= last || l.lastID.CompareAndSwap(last, b.ID) {
				break
			}
		}
	}
	l.logger.Info("ledger restored", zap.Int("batches", len(batches)))
}

// AddBatch creates a batch that becomes consumable immediately.
func (l *Ledger) AddBatch(ctx context.Context, nb models.NewBatch, commit Commit) (models.Batch, error) {
	if nb.Quantity <= 0 {
		return models.Batch{}, models.ErrInvalidQuantity
	}
	if nb.ExpiryDate.IsZero() {
		return models.Batch{}, models.ErrMissingExpiry
	}

	bk := l.bookFor(nb.ProductID)
	bk.mu.Lock()
	defer bk.mu.Unlock()

	batch := models.Batch{
		ID:              l.lastID.Add(1),
		ProductID:       nb.ProductID,
		BatchNumber:     fmt.Sprintf("B%s-%02d", nb.ProductID, bk.added+1),
		Quantity:        nb.Quantity,
		CostPrice:       nb.CostPrice,
		ManufactureDate: nb.ManufactureDate,
		ExpiryDate:      nb.ExpiryDate,
		ReceivedAt:      l.now().UTC(),
	}

	if commit != nil {
		created := batch
		if err := commit(ctx, Change{ProductID: nb.ProductID, Batch: &created}); err != nil {
			return models.Batch{}, fmt.Errorf("commit batch: %w", err)
		}
	}

	stored := batch
	bk.batches[stored.ID] = &stored
	bk.insert(&stored)
	bk.added++
	bk.total += stored.Quantity

	l.logger.Debug("batch added",
		zap.String("product_id", stored.ProductID),
		zap.Int64("batch_id", stored.ID),
		zap.Int("quantity", stored.Quantity))

	return batch, nil
}

// Consume deducts quantity from the product's batches in consumption order.
// When the product holds less than quantity nothing is mutated and an
// *models.InsufficientStockError is returned.
func (l *Ledger) Consume(ctx context.Context, productID string, quantity int, purpose models.Purpose, commit Commit) ([]models.Allocation, error) {
	if quantity <= 0 {
		return nil, models.ErrInvalidQuantity
	}

	bk := l.bookFor(productID)
	bk.mu.Lock()
	defer bk.mu.Unlock()

	if bk.total < quantity {
		l.logger.Debug("consumption rejected",
			zap.String("product_id", productID),
			zap.Int("available", bk.total),
			zap.Int("requested", quantity))
		return nil, &models.InsufficientStockError{ProductID: productID, Available: bk.total, Requested: quantity}
	}

	plan := make([]models.Allocation, 0, 2)
	remaining := quantity
	for _, b := range bk.active {
		if remaining == 0 {
			break
		}
		take := min(b.Quantity, remaining)
		plan = append(plan, models.Allocation{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			Remaining:   b.Quantity - take,
			CostPrice:   b.CostPrice,
		})
		remaining -= take
	}

	if err := l.commit(ctx, commit, productID, purpose, plan); err != nil {
		return nil, err
	}

	for _, a := range plan {
		bk.batches[a.BatchID].Quantity = a.Remaining
	}
	drained := 0
	for drained < len(bk.active) && bk.active[drained].Quantity == 0 {
		drained++
	}
	bk.active = slices.Delete(bk.active, 0, drained)
	bk.total -= quantity

	return plan, nil
}

// ConsumeBatch deducts quantity from one specific batch, bypassing the
// consumption order. Used for manual corrections and targeted wastage.
func (l *Ledger) ConsumeBatch(ctx context.Context, productID string, batchID int64, quantity int, purpose models.Purpose, commit Commit) ([]models.Allocation, error) {
	if quantity <= 0 {
		return nil, models.ErrInvalidQuantity
	}

	bk := l.bookFor(productID)
	bk.mu.Lock()
	defer bk.mu.Unlock()

	b, ok := bk.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %d of product %s: %w", batchID, productID, models.ErrUnknownBatch)
	}
	if b.Quantity < quantity {
		return nil, &models.InsufficientStockError{ProductID: productID, Available: b.Quantity, Requested: quantity}
	}

	plan := []models.Allocation{{
		BatchID:     b.ID,
		BatchNumber: b.BatchNumber,
		Quantity:    quantity,
		Remaining:   b.Quantity - quantity,
		CostPrice:   b.CostPrice,
	}}

	if err := l.commit(ctx, commit, productID, purpose, plan); err != nil {
		return nil, err
	}

	b.Quantity -= quantity
	bk.total -= quantity
	if b.Quantity == 0 {
		bk.active = slices.DeleteFunc(bk.active, func(candidate *models.Batch) bool {
			return candidate.ID == b.ID
		})
	}

	return plan, nil
}

// TotalStock sums the remaining quantity across the product's batches.
func (l *Ledger) TotalStock(productID string) int {
	bk := l.lookup(productID)
	if bk == nil {
		return 0
	}
	bk.mu.Lock()
	defer bk.mu.Unlock()
	return bk.total
}

// Batches returns every batch of the product, exhausted ones included, in
// consumption order.
func (l *Ledger) Batches(productID string) []models.Batch {
	bk := l.lookup(productID)
	if bk == nil {
		return nil
	}
	bk.mu.Lock()
	defer bk.mu.Unlock()

	out := make([]models.Batch, 0, len(bk.batches))
	for _, b := range bk.batches {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConsumesBefore(out[j]) })
	return out
}

// ActiveBatches returns a copy of the non-empty batches of every product.
func (l *Ledger) ActiveBatches() []models.Batch {
	l.mu.RLock()
	books := make([]*book, 0, len(l.books))
	for _, bk := range l.books {
		books = append(books, bk)
	}
	l.mu.RUnlock()

	var out []models.Batch
	for _, bk := range books {
		bk.mu.Lock()
		for _, b := range bk.active {
			out = append(out, *b)
		}
		bk.mu.Unlock()
	}
	return out
}

// Products lists the ids of products that ever held a batch.
func (l *Ledger) Products() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.books))
	for id := range l.books {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *Ledger) commit(ctx context.Context, commit Commit, productID string, purpose models.Purpose, plan []models.Allocation) error {
	if commit == nil {
		return nil
	}
	change := Change{ProductID: productID, Purpose: purpose, Allocations: slices.Clone(plan)}
	if err := commit(ctx, change); err != nil {
		return fmt.Errorf("commit consumption: %w", err)
	}
	return nil
}

func (l *Ledger) lookup(productID string) *book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.books[productID]
}

func (l *Ledger) bookFor(productID string) *book {
	if bk := l.lookup(productID); bk != nil {
		return bk
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if bk, ok := l.books[productID]; ok {
		return bk
	}
	bk := &book{batches: make(map[int64]*models.Batch)}
	l.books[productID] = bk
	return bk
}

func (bk *book) insert(b *models.Batch) {
	idx := sort.Search(len(bk.active), func(i int) bool {
		return b.ConsumesBefore(*bk.active[i])
	})
	bk.active = slices.Insert(bk.active, idx, b)
}
