package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Batch is the remaining quantity of one restock event, tied to one expiry date.
type Batch struct {
	ID              int64           `json:"id"`
	ProductID       string          `json:"product_id"`
	BatchNumber     string          `json:"batch_number"`
	Quantity        int             `json:"quantity"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	ManufactureDate *time.Time      `json:"manufacture_date,omitempty"`
	ExpiryDate      time.Time       `json:"expiry_date"`
	ReceivedAt      time.Time       `json:"received_at"`
}

// ConsumesBefore reports whether b is drained ahead of other: earliest expiry,
// then earliest receipt, then lowest id.
func (b Batch) ConsumesBefore(other Batch) bool {
	if !b.ExpiryDate.Equal(other.ExpiryDate) {
		return b.ExpiryDate.Before(other.ExpiryDate)
	}
	if !b.ReceivedAt.Equal(other.ReceivedAt) {
		return b.ReceivedAt.Before(other.ReceivedAt)
	}
	return b.ID < other.ID
}

// NewBatch holds the caller-provided attributes of a restock.
type NewBatch struct {
	ProductID       string
	Quantity        int
	CostPrice       decimal.Decimal
	ManufactureDate *time.Time
	ExpiryDate      time.Time
}

// Allocation is the amount taken from one batch by a consumption.
type Allocation struct {
	BatchID     int64           `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	Quantity    int             `json:"quantity"`
	Remaining   int             `json:"remaining"`
	CostPrice   decimal.Decimal `json:"cost_price"`
}

// Purpose labels why stock leaves the ledger.
type Purpose string

const (
	PurposeSale    Purpose = "sale"
	PurposeWastage Purpose = "wastage"
)

// ExpiryStatus is the derived freshness bucket of a batch.
type ExpiryStatus string

const (
	ExpiryExpired  ExpiryStatus = "expired"
	ExpiryCritical ExpiryStatus = "critical"
	ExpiryWarning  ExpiryStatus = "warning"
	ExpiryFresh    ExpiryStatus = "fresh"
)

// ExpiryAlert describes one non-empty batch and its current classification.
type ExpiryAlert struct {
	ProductID   string       `json:"product_id"`
	ProductName string       `json:"product_name,omitempty"`
	BatchID     int64        `json:"batch_id"`
	BatchNumber string       `json:"batch_number"`
	ExpiryDate  time.Time    `json:"expiry_date"`
	DaysLeft    int          `json:"days_left"`
	Quantity    int          `json:"quantity"`
	Status      ExpiryStatus `json:"status"`
}

// StockAlert describes a product whose stock fell below its minimum.
type StockAlert struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Category     string `json:"category"`
	CurrentStock int    `json:"current_stock"`
	MinStock     int    `json:"min_stock"`
}

// ExpiryCheck summarizes one daily expiry sweep.
type ExpiryCheck struct {
	CheckedAt time.Time `json:"checked_at"`
	Checked   int       `json:"batches_checked"`
	Expired   int       `json:"expired"`
	Critical  int       `json:"critical"`
	Warning   int       `json:"warning"`
	Alerts    int       `json:"alerts_emitted"`
}
