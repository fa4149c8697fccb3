package models

import "time"

// DraftStatus is the lifecycle state of a purchase order draft.
type DraftStatus string

const (
	DraftStatusDraft    DraftStatus = "draft"
	DraftStatusSent     DraftStatus = "sent"
	DraftStatusReceived DraftStatus = "received"
)

// ParseDraftStatus validates a status string.
func ParseDraftStatus(value string) (DraftStatus, error) {
	switch s := DraftStatus(value); s {
	case DraftStatusDraft, DraftStatusSent, DraftStatusReceived:
		return s, nil
	default:
		return "", ErrInvalidDraftTransition
	}
}

// CanTransitionTo reports whether next directly follows s in draft -> sent -> received.
func (s DraftStatus) CanTransitionTo(next DraftStatus) bool {
	switch s {
	case DraftStatusDraft:
		return next == DraftStatusSent
	case DraftStatusSent:
		return next == DraftStatusReceived
	default:
		return false
	}
}

// PurchaseOrderDraft is a human-reviewable restock recommendation.
type PurchaseOrderDraft struct {
	ID                    string      `json:"id"`
	SupplierID            string      `json:"supplier_id"`
	SupplierName          string      `json:"supplier_name"`
	ProductID             string      `json:"product_id"`
	Quantity              int         `json:"quantity"`
	Status                DraftStatus `json:"status"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
	PredictedStockoutDate *time.Time  `json:"predicted_stockout_date,omitempty"`
}
