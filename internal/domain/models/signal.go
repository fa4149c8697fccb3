package models

import "time"

// SignalKind enumerates the signals handed to the notification collaborator.
type SignalKind string

const (
	SignalStockAlert   SignalKind = "stock_alert"
	SignalExpiryAlert  SignalKind = "expiry_alert"
	SignalDraftCreated SignalKind = "purchase_order_draft_created"
)

// Signal is one emitted notification. Exactly one payload field is set.
type Signal struct {
	Kind       SignalKind          `json:"kind"`
	OccurredAt time.Time           `json:"occurred_at"`
	Stock      *StockAlert         `json:"stock,omitempty"`
	Expiry     *ExpiryAlert        `json:"expiry,omitempty"`
	Draft      *PurchaseOrderDraft `json:"draft,omitempty"`
}

// Key returns the partition key of the signal, the product it concerns.
func (s Signal) Key() string {
	switch {
	case s.Stock != nil:
		return s.Stock.ProductID
	case s.Expiry != nil:
		return s.Expiry.ProductID
	case s.Draft != nil:
		return s.Draft.ProductID
	}
	return ""
}
