package mongodb

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

// Money is stored as its decimal string so no precision is lost to BSON doubles.

type productDoc struct {
	ID       string `bson:"_id"`
	Name     string `bson:"name"`
	Category string `bson:"category"`
	MRP      string `bson:"mrp"`
	MinStock int    `bson:"min_stock"`
}

func newProductDoc(p models.Product) productDoc {
	return productDoc{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		MRP:      p.MRP.String(),
		MinStock: p.MinStock,
	}
}

func (d productDoc) model() models.Product {
	return models.Product{
		ID:       d.ID,
		Name:     d.Name,
		Category: d.Category,
		MRP:      parseDecimal(d.MRP),
		MinStock: d.MinStock,
	}
}

type supplierDoc struct {
	ID          string `bson:"_id"`
	Name        string `bson:"name"`
	Category    string `bson:"category"`
	CategoryKey string `bson:"category_key"`
	Email       string `bson:"email,omitempty"`
	Phone       string `bson:"phone,omitempty"`
}

func newSupplierDoc(s models.Supplier) supplierDoc {
	id := s.ID
	if id == "" {
		id = categoryKey(s.Category)
	}
	return supplierDoc{
		ID:          id,
		Name:        s.Name,
		Category:    s.Category,
		CategoryKey: categoryKey(s.Category),
		Email:       s.Email,
		Phone:       s.Phone,
	}
}

func (d supplierDoc) model() models.Supplier {
	return models.Supplier{
		ID:       d.ID,
		Name:     d.Name,
		Category: d.Category,
		Email:    d.Email,
		Phone:    d.Phone,
	}
}

type batchDoc struct {
	ID              int64      `bson:"_id"`
	ProductID       string     `bson:"product_id"`
	BatchNumber     string     `bson:"batch_number"`
	Quantity        int        `bson:"quantity"`
	CostPrice       string     `bson:"cost_price"`
	ManufactureDate *time.Time `bson:"manufacture_date,omitempty"`
	ExpiryDate      time.Time  `bson:"expiry_date"`
	ReceivedAt      time.Time  `bson:"received_at"`
}

func newBatchDoc(b models.Batch) batchDoc {
	return batchDoc{
		ID:              b.ID,
		ProductID:       b.ProductID,
		BatchNumber:     b.BatchNumber,
		Quantity:        b.Quantity,
		CostPrice:       b.CostPrice.String(),
		ManufactureDate: b.ManufactureDate,
		ExpiryDate:      b.ExpiryDate,
		ReceivedAt:      b.ReceivedAt,
	}
}

func (d batchDoc) model() models.Batch {
	return models.Batch{
		ID:              d.ID,
		ProductID:       d.ProductID,
		BatchNumber:     d.BatchNumber,
		Quantity:        d.Quantity,
		CostPrice:       parseDecimal(d.CostPrice),
		ManufactureDate: utcPtr(d.ManufactureDate),
		ExpiryDate:      d.ExpiryDate.UTC(),
		ReceivedAt:      d.ReceivedAt.UTC(),
	}
}

type allocationDoc struct {
	BatchID     int64  `bson:"batch_id"`
	BatchNumber string `bson:"batch_number"`
	Quantity    int    `bson:"quantity"`
	Remaining   int    `bson:"remaining"`
	CostPrice   string `bson:"cost_price"`
}

type transactionDoc struct {
	ID          string          `bson:"_id"`
	ProductID   string          `bson:"product_id"`
	Category    string          `bson:"category"`
	BatchID     *int64          `bson:"batch_id,omitempty"`
	Type        string          `bson:"type"`
	Quantity    int             `bson:"quantity"`
	UnitPrice   string          `bson:"unit_price"`
	TotalAmount string          `bson:"total_amount"`
	Allocations []allocationDoc `bson:"allocations,omitempty"`
	CreatedAt   time.Time       `bson:"created_at"`
	Notes       string          `bson:"notes,omitempty"`
}

func newTransactionDoc(tx models.Transaction) transactionDoc {
	allocs := make([]allocationDoc, 0, len(tx.Allocations))
	for _, a := range tx.Allocations {
		allocs = append(allocs, allocationDoc{
			BatchID:     a.BatchID,
			BatchNumber: a.BatchNumber,
			Quantity:    a.Quantity,
			Remaining:   a.Remaining,
			CostPrice:   a.CostPrice.String(),
		})
	}
	return transactionDoc{
		ID:          tx.ID,
		ProductID:   tx.ProductID,
		Category:    tx.Category,
		BatchID:     tx.BatchID,
		Type:        string(tx.Type),
		Quantity:    tx.Quantity,
		UnitPrice:   tx.UnitPrice.String(),
		TotalAmount: tx.TotalAmount.String(),
		Allocations: allocs,
		CreatedAt:   tx.CreatedAt,
		Notes:       tx.Notes,
	}
}

func (d transactionDoc) model() models.Transaction {
	var allocs []models.Allocation
	for _, a := range d.Allocations {
		allocs = append(allocs, models.Allocation{
			BatchID:     a.BatchID,
			BatchNumber: a.BatchNumber,
			Quantity:    a.Quantity,
			Remaining:   a.Remaining,
			CostPrice:   parseDecimal(a.CostPrice),
		})
	}
	return models.Transaction{
		ID:          d.ID,
		ProductID:   d.ProductID,
		Category:    d.Category,
		BatchID:     d.BatchID,
		Type:        models.TransactionType(d.Type),
		Quantity:    d.Quantity,
		UnitPrice:   parseDecimal(d.UnitPrice),
		TotalAmount: parseDecimal(d.TotalAmount),
		Allocations: allocs,
		CreatedAt:   d.CreatedAt.UTC(),
		Notes:       d.Notes,
	}
}

type draftDoc struct {
	ID                    string     `bson:"_id"`
	SupplierID            string     `bson:"supplier_id"`
	SupplierName          string     `bson:"supplier_name"`
	ProductID             string     `bson:"product_id"`
	Quantity              int        `bson:"quantity"`
	Status                string     `bson:"status"`
	CreatedAt             time.Time  `bson:"created_at"`
	UpdatedAt             time.Time  `bson:"updated_at"`
	PredictedStockoutDate *time.Time `bson:"predicted_stockout_date,omitempty"`
}

func newDraftDoc(d models.PurchaseOrderDraft) draftDoc {
	return draftDoc{
		ID:                    d.ID,
		SupplierID:            d.SupplierID,
		SupplierName:          d.SupplierName,
		ProductID:             d.ProductID,
		Quantity:              d.Quantity,
		Status:                string(d.Status),
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
		PredictedStockoutDate: d.PredictedStockoutDate,
	}
}

func (d draftDoc) model() models.PurchaseOrderDraft {
	return models.PurchaseOrderDraft{
		ID:                    d.ID,
		SupplierID:            d.SupplierID,
		SupplierName:          d.SupplierName,
		ProductID:             d.ProductID,
		Quantity:              d.Quantity,
		Status:                models.DraftStatus(d.Status),
		CreatedAt:             d.CreatedAt.UTC(),
		UpdatedAt:             d.UpdatedAt.UTC(),
		PredictedStockoutDate: utcPtr(d.PredictedStockoutDate),
	}
}

type reportDoc struct {
	ID              string    `bson:"_id"`
	Date            time.Time `bson:"date"`
	TotalProducts   int       `bson:"total_products"`
	ActiveBatches   int       `bson:"active_batches"`
	StockValue      string    `bson:"stock_value"`
	Revenue         string    `bson:"revenue"`
	WastageLoss     string    `bson:"wastage_loss"`
	ExpiringSoon    int       `bson:"expiring_soon"`
	LowStockCount   int       `bson:"low_stock_count"`
	OpenDraftsCount int       `bson:"open_drafts_count"`
	CreatedAt       time.Time `bson:"created_at"`
}

func newReportDoc(r models.DailyReport) reportDoc {
	return reportDoc{
		ID:              r.ID,
		Date:            r.Date,
		TotalProducts:   r.TotalProducts,
		ActiveBatches:   r.ActiveBatches,
		StockValue:      r.StockValue.String(),
		Revenue:         r.Revenue.String(),
		WastageLoss:     r.WastageLoss.String(),
		ExpiringSoon:    r.ExpiringSoon,
		LowStockCount:   r.LowStockCount,
		OpenDraftsCount: r.OpenDraftsCount,
		CreatedAt:       r.CreatedAt,
	}
}

func (d reportDoc) model() models.DailyReport {
	return models.DailyReport{
		ID:              d.ID,
		Date:            d.Date.UTC(),
		TotalProducts:   d.TotalProducts,
		ActiveBatches:   d.ActiveBatches,
		StockValue:      parseDecimal(d.StockValue),
		Revenue:         parseDecimal(d.Revenue),
		WastageLoss:     parseDecimal(d.WastageLoss),
		ExpiringSoon:    d.ExpiringSoon,
		LowStockCount:   d.LowStockCount,
		OpenDraftsCount: d.OpenDraftsCount,
		CreatedAt:       d.CreatedAt.UTC(),
	}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
