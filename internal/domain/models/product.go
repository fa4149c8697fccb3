package models

import "github.com/shopspring/decimal"

// Product is the catalog entry every batch, transaction and draft refers to.
type Product struct {
	ID       string          `json:"id" binding:"required"`
	Name     string          `json:"name"`
	Category string          `json:"category" binding:"required"`
	MRP      decimal.Decimal `json:"mrp"`
	MinStock int             `json:"min_stock"`
}

// Supplier is the registered vendor for one category.
type Supplier struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// ProductStock is a catalog entry joined with its ledger state.
type ProductStock struct {
	Product
	TotalStock int     `json:"total_stock"`
	Batches    []Batch `json:"batches,omitempty"`
}
