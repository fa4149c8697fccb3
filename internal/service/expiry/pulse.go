package expiry

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

const (
	pulseDiscountPercent = 20
	pulseWindowDays      = 7
)

// Pulse computes the flash markdown for a product: any non-empty batch with
// fewer than seven days left (and not yet expired) triggers a 20% discount.
func Pulse(now time.Time, product models.Product, batches []models.Batch) models.PulseDiscount {
	result := models.PulseDiscount{
		ProductID:         product.ID,
		ProductName:       product.Name,
		OriginalPrice:     product.MRP,
		DiscountedPrice:   product.MRP,
		NearExpiryBatches: []models.ExpiryAlert{},
	}

	for _, b := range batches {
		if b.Quantity <= 0 {
			continue
		}
		days := DaysUntil(now, b.ExpiryDate)
		if days > 0 && days < pulseWindowDays {
			result.NearExpiryBatches = append(result.NearExpiryBatches, Alert(now, product, b))
		}
	}

	if len(result.NearExpiryBatches) == 0 {
		return result
	}

	factor := decimal.NewFromInt(100 - pulseDiscountPercent).Div(decimal.NewFromInt(100))
	result.HasDiscount = true
	result.DiscountPercent = pulseDiscountPercent
	result.DiscountedPrice = product.MRP.Mul(factor).Round(2)
	return result
}
