package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyReport is the KPI snapshot persisted once per day.
type DailyReport struct {
	ID              string          `json:"id"`
	Date            time.Time       `json:"date"`
	TotalProducts   int             `json:"total_products"`
	ActiveBatches   int             `json:"active_batches"`
	StockValue      decimal.Decimal `json:"stock_value"`
	Revenue         decimal.Decimal `json:"revenue"`
	WastageLoss     decimal.Decimal `json:"wastage_loss"`
	ExpiringSoon    int             `json:"expiring_soon"`
	LowStockCount   int             `json:"low_stock_count"`
	OpenDraftsCount int             `json:"open_drafts_count"`
	CreatedAt       time.Time       `json:"created_at"`
}

// WastageSummary aggregates wastage for one category.
type WastageSummary struct {
	Category      string          `json:"category"`
	Incidents     int             `json:"incidents"`
	TotalQuantity int             `json:"total_quantity"`
	TotalLoss     decimal.Decimal `json:"total_loss"`
}

// RevenuePoint is one day of the revenue series.
type RevenuePoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Wastage decimal.Decimal `json:"wastage"`
	Net     decimal.Decimal `json:"net"`
}

// CategoryBreakdown summarizes stock held in one category.
type CategoryBreakdown struct {
	Category     string          `json:"category"`
	ProductCount int             `json:"product_count"`
	TotalStock   int             `json:"total_stock"`
	StockValue   decimal.Decimal `json:"stock_value"`
}

// PulseDiscount is the automatic markdown offered for near-expiry stock.
type PulseDiscount struct {
	ProductID         string          `json:"product_id"`
	ProductName       string          `json:"product_name"`
	OriginalPrice     decimal.Decimal `json:"original_price"`
	HasDiscount       bool            `json:"has_discount"`
	DiscountPercent   int             `json:"discount_pct"`
	DiscountedPrice   decimal.Decimal `json:"discounted_price"`
	NearExpiryBatches []ExpiryAlert   `json:"near_expiry_batches"`
}

// CategorySales aggregates sales for one category.
type CategorySales struct {
	Category      string          `json:"category"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalQuantity int             `json:"total_quantity"`
}
