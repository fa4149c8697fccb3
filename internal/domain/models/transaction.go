package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates the supported inventory movements.
type TransactionType string

const (
	TransactionSale    TransactionType = "sale"
	TransactionWastage TransactionType = "wastage"
	TransactionRestock TransactionType = "restock"
)

// ParseTransactionType normalizes free-form input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	normalized := strings.TrimSpace(strings.ToLower(value))

	switch TransactionType(normalized) {
	case TransactionSale, TransactionWastage, TransactionRestock:
		return TransactionType(normalized), nil
	default:
		return "", ErrInvalidTransactionType
	}
}

// Valid reports whether t is one of the fixed movement types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionSale, TransactionWastage, TransactionRestock:
		return true
	}
	return false
}

// Transaction is the immutable record of one inventory movement.
type Transaction struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	Category    string          `json:"category"`
	BatchID     *int64          `json:"batch_id,omitempty"`
	Type        TransactionType `json:"transaction_type"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Allocations []Allocation    `json:"allocations,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Notes       string          `json:"notes,omitempty"`
}

// TransactionRequest is the caller input of RecordTransaction.
type TransactionRequest struct {
	ProductID string
	Type      TransactionType
	Quantity  int
	UnitPrice *decimal.Decimal
	BatchID   *int64
	Notes     string

	// Restock only.
	CostPrice       decimal.Decimal
	ManufactureDate *time.Time
	ExpiryDate      time.Time
}

// TransactionFilter narrows transaction listings. Zero values mean no filter.
type TransactionFilter struct {
	Type      TransactionType
	ProductID string
	Since     time.Time
	Limit     int
}

// Matches reports whether tx satisfies the filter, ignoring Limit.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.ProductID != "" && tx.ProductID != f.ProductID {
		return false
	}
	if !f.Since.IsZero() && tx.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}
