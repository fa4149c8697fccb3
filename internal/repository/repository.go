// Package repository declares the persistence contracts shared by the
// in-memory and MongoDB backends.
package repository

import (
	"context"
	"time"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

// Catalog stores product definitions.
type Catalog interface {
	// GetProduct returns models.ErrUnknownProduct when id is not registered.
	GetProduct(ctx context.Context, id string) (models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpsertProduct(ctx context.Context, product models.Product) error
}

// SupplierDirectory maps categories to their registered supplier.
type SupplierDirectory interface {
	// SupplierForCategory returns models.ErrSupplierNotFound when the category has none.
	SupplierForCategory(ctx context.Context, category string) (models.Supplier, error)
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
	UpsertSupplier(ctx context.Context, supplier models.Supplier) error
}

// MovementStore persists batches and the transactions that move them.
// Each Record call is atomic: either both parts are stored or neither.
type MovementStore interface {
	LoadBatches(ctx context.Context) ([]models.Batch, error)
	RecordRestock(ctx context.Context, batch models.Batch, tx models.Transaction) error
	RecordConsumption(ctx context.Context, allocations []models.Allocation, tx models.Transaction) error
	// ListTransactions returns matching transactions newest first.
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
}

// DraftStore holds purchase order drafts.
type DraftStore interface {
	// CreateDraft returns models.ErrDuplicateDraft when the product already has an open draft.
	CreateDraft(ctx context.Context, draft models.PurchaseOrderDraft) error
	HasOpenDraft(ctx context.Context, productID string) (bool, error)
	// ListDrafts returns every draft when status is empty.
	ListDrafts(ctx context.Context, status models.DraftStatus) ([]models.PurchaseOrderDraft, error)
	UpdateDraftStatus(ctx context.Context, id string, status models.DraftStatus, at time.Time) (models.PurchaseOrderDraft, error)
}

// ReportStore keeps the daily KPI snapshots.
type ReportStore interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
	ListDailyReports(ctx context.Context, limit int) ([]models.DailyReport, error)
}

// Store is the full persistence surface of the service.
type Store interface {
	Catalog
	SupplierDirectory
	MovementStore
	DraftStore
	ReportStore
}

// SampleSource yields historical demand observations used to seed forecasts.
type SampleSource interface {
	HistorySamples(ctx context.Context) ([]models.Sample, error)
}

// ReportSink receives a copy of every generated daily report.
type ReportSink interface {
	ExportDailyReport(ctx context.Context, report models.DailyReport) error
}
