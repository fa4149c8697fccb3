// Package memory provides a process-local implementation of the repository
// contracts, used when no MongoDB URI is configured and in tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// DefaultSuppliers is the directory seeded when the store starts empty.
var DefaultSuppliers = []models.Supplier{
	{Name: "Fresh Farm Logistics", Category: "Fruits & Vegetables", Email: "orders@freshfarm.example"},
	{Name: "Daily Dairy Co.", Category: "Dairy", Email: "supply@dailydairy.example"},
	{Name: "Global Snacking Inc.", Category: "Snack Foods", Email: "sales@globalsnacking.example"},
	{Name: "Frozen Fast Foods", Category: "Frozen Foods", Email: "orders@frozenfast.example"},
	{Name: "Generic Grocers Ltd.", Category: "Baking Goods", Email: "bulk@genericgrocers.example"},
	{Name: "Household Essentials", Category: "Household", Email: "trade@household.example"},
	{Name: "Beverage Distributors", Category: "Soft Drinks", Email: "orders@bevdist.example"},
	{Name: "Canned Goods Supply", Category: "Canned", Email: "supply@cannedgoods.example"},
	{Name: "HealthPlus Hygiene", Category: "Health and Hygiene", Email: "b2b@healthplus.example"},
}

// Store keeps every collection in maps guarded by a single lock.
type Store struct {
	mu           sync.RWMutex
	products     map[string]models.Product
	suppliers    map[string]models.Supplier // keyed by lowercase category
	batches      map[int64]models.Batch
	transactions []models.Transaction
	drafts       map[string]models.PurchaseOrderDraft
	openDrafts   map[string]string // product id -> draft id
	reports      []models.DailyReport
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		products:   make(map[string]models.Product),
		suppliers:  make(map[string]models.Supplier),
		batches:    make(map[int64]models.Batch),
		drafts:     make(map[string]models.PurchaseOrderDraft),
		openDrafts: make(map[string]string),
	}
}

// NewSeededStore builds a store whose supplier directory holds DefaultSuppliers.
func NewSeededStore() *Store {
	s := NewStore()
	for i, sup := range DefaultSuppliers {
		sup.ID = fmt.Sprintf("SUP-%02d", i+1)
		s.suppliers[categoryKey(sup.Category)] = sup
	}
	return s
}

func categoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func (s *Store) GetProduct(_ context.Context, id string) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("product %s: %w", id, models.ErrUnknownProduct)
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpsertProduct(_ context.Context, product models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
	return nil
}

func (s *Store) SupplierForCategory(_ context.Context, category string) (models.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliers[categoryKey(category)]
	if !ok {
		return models.Supplier{}, fmt.Errorf("category %q: %w", category, models.ErrSupplierNotFound)
	}
	return sup, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]models.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		out = append(out, sup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *Store) UpsertSupplier(_ context.Context, supplier models.Supplier) error {
	if supplier.ID == "" {
		supplier.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers[categoryKey(supplier.Category)] = supplier
	return nil
}

func (s *Store) LoadBatches(_ context.Context) ([]models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) RecordRestock(_ context.Context, batch models.Batch, tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; exists {
		return fmt.Errorf("batch %d already stored", batch.ID)
	}
	s.batches[batch.ID] = batch
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *Store) RecordConsumption(_ context.Context, allocations []models.Allocation, tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range allocations {
		if _, ok := s.batches[a.BatchID]; !ok {
			return fmt.Errorf("batch %d: %w", a.BatchID, models.ErrUnknownBatch)
		}
	}
	for _, a := range allocations {
		b := s.batches[a.BatchID]
		b.Quantity = a.Remaining
		s.batches[a.BatchID] = b
	}
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if !filter.Matches(tx) {
			continue
		}
		out = append(out, tx)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateDraft(_ context.Context, draft models.PurchaseOrderDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if draft.Status == models.DraftStatusDraft {
		if _, open := s.openDrafts[draft.ProductID]; open {
			return fmt.Errorf("product %s: %w", draft.ProductID, models.ErrDuplicateDraft)
		}
		s.openDrafts[draft.ProductID] = draft.ID
	}
	s.drafts[draft.ID] = draft
	return nil
}

func (s *Store) HasOpenDraft(_ context.Context, productID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, open := s.openDrafts[productID]
	return open, nil
}

func (s *Store) ListDrafts(_ context.Context, status models.DraftStatus) ([]models.PurchaseOrderDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.PurchaseOrderDraft, 0, len(s.drafts))
	for _, d := range s.drafts {
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateDraftStatus(_ context.Context, id string, status models.DraftStatus, at time.Time) (models.PurchaseOrderDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return models.PurchaseOrderDraft{}, fmt.Errorf("draft %s: %w", id, models.ErrDraftNotFound)
	}
	if !d.Status.CanTransitionTo(status) {
		return models.PurchaseOrderDraft{}, fmt.Errorf("draft %s %s -> %s: %w", id, d.Status, status, models.ErrInvalidDraftTransition)
	}

	if d.Status == models.DraftStatusDraft {
		delete(s.openDrafts, d.ProductID)
	}
	d.Status = status
	d.UpdatedAt = at
	s.drafts[id] = d
	return d, nil
}

func (s *Store) SaveDailyReport(_ context.Context, report models.DailyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

func (s *Store) ListDailyReports(_ context.Context, limit int) ([]models.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.reports)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
