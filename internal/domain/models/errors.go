package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuantity indicates a non-positive quantity on a mutating call.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrInsufficientStock indicates a consumption larger than the product's remaining stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnknownProduct indicates the referenced product is not in the catalog.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrUnknownBatch indicates the referenced batch does not exist for the product.
	ErrUnknownBatch = errors.New("unknown batch")
	// ErrInvalidTransactionType indicates a type outside sale, wastage and restock.
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	// ErrMissingExpiry indicates a restock without an expiry date.
	ErrMissingExpiry = errors.New("expiry date is required")
	// ErrModelNotTrained indicates a category with no samples and no fallback archetype.
	ErrModelNotTrained = errors.New("model not trained")
	// ErrDuplicateDraft indicates an open draft already exists for the product.
	ErrDuplicateDraft = errors.New("open purchase order draft already exists")
	// ErrDraftNotFound indicates the referenced purchase order draft does not exist.
	ErrDraftNotFound = errors.New("purchase order draft not found")
	// ErrInvalidDraftTransition indicates a status change outside draft -> sent -> received.
	ErrInvalidDraftTransition = errors.New("invalid purchase order status transition")
	// ErrSupplierNotFound indicates no supplier is registered for a category.
	ErrSupplierNotFound = errors.New("no supplier registered for category")
	// ErrInvalidProduct indicates a catalog entry without id or category, or with negative figures.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInvalidSupplier indicates a supplier without a name or a category.
	ErrInvalidSupplier = errors.New("invalid supplier")
)

// InsufficientStockError carries the figures behind a rejected consumption.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

// Is lets errors.Is match the ErrInsufficientStock sentinel.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
