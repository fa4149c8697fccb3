package forecast

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/repository"
)

// History supplies training data.
type History interface {
	Categories(ctx context.Context) ([]string, error)
	Samples(ctx context.Context, category string) ([]models.Sample, error)
}

// StoreHistory combines an optional seed dataset with the recorded sales.
type StoreHistory struct {
	catalog   repository.Catalog
	movements repository.MovementStore

	mu   sync.RWMutex
	seed []models.Sample
}

// NewStoreHistory builds a history over the catalog and transaction log.
func NewStoreHistory(catalog repository.Catalog, movements repository.MovementStore) *StoreHistory {
	return &StoreHistory{catalog: catalog, movements: movements}
}

// SetSeed replaces the seed samples, typically loaded once from the sheet dataset.
func (h *StoreHistory) SetSeed(samples []models.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seed = append([]models.Sample(nil), samples...)
}

// Categories lists every category known to the catalog or the seed data.
func (h *StoreHistory) Categories(ctx context.Context) ([]string, error) {
	seen := map[string]string{}

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	for _, p := range products {
		if _, ok := seen[normalize(p.Category)]; !ok && p.Category != "" {
			seen[normalize(p.Category)] = p.Category
		}
	}

	h.mu.RLock()
	for _, s := range h.seed {
		if _, ok := seen[normalize(s.Category)]; !ok && s.Category != "" {
			seen[normalize(s.Category)] = s.Category
		}
	}
	h.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for _, name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Samples returns the seed rows of category followed by its monthly sale totals.
func (h *StoreHistory) Samples(ctx context.Context, category string) ([]models.Sample, error) {
	key := normalize(category)

	var out []models.Sample
	h.mu.RLock()
	for _, s := range h.seed {
		if normalize(s.Category) == key {
			out = append(out, s)
		}
	}
	h.mu.RUnlock()

	sales, err := h.movements.ListTransactions(ctx, models.TransactionFilter{Type: models.TransactionSale})
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	var matching []models.Transaction
	for _, tx := range sales {
		if normalize(tx.Category) == key {
			matching = append(matching, tx)
		}
	}

	return append(out, AggregateSales(matching)...), nil
}

// AggregateSales folds sale transactions into one sample per category and
// calendar month (year included), ordered chronologically.
func AggregateSales(txs []models.Transaction) []models.Sample {
	type bucket struct {
		category string
		year     int
		month    int
	}

	totals := map[bucket]*models.Sample{}
	var order []bucket
	for _, tx := range txs {
		if tx.Type != models.TransactionSale {
			continue
		}
		at := tx.CreatedAt.UTC()
		k := bucket{category: normalize(tx.Category), year: at.Year(), month: int(at.Month())}
		s, ok := totals[k]
		if !ok {
			s = &models.Sample{Category: tx.Category, Month: k.month}
			totals[k] = s
			order = append(order, k)
		}
		s.Quantity += float64(tx.Quantity)
		s.Observations++
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].category != order[j].category {
			return order[i].category < order[j].category
		}
		if order[i].year != order[j].year {
			return order[i].year < order[j].year
		}
		return order[i].month < order[j].month
	})

	out := make([]models.Sample, 0, len(order))
	for _, k := range order {
		out = append(out, *totals[k])
	}
	return out
}
