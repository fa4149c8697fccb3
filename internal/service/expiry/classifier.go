// Package expiry classifies batches by the number of days left before they expire.
package expiry

import (
	"time"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

const (
	criticalDays = 7
	warningDays  = 15
)

// DaysUntil counts whole calendar days from now to expiry, both taken in UTC.
// The result is negative once the expiry date has passed.
func DaysUntil(now, expiry time.Time) int {
	return int(dateOf(expiry).Sub(dateOf(now)).Hours() / 24)
}

// Classify maps the time left before expiry to a status. It holds no state, so
// the result is always current for the supplied clock.
func Classify(now, expiry time.Time) models.ExpiryStatus {
	return StatusForDays(DaysUntil(now, expiry))
}

// StatusForDays buckets a days-until-expiry figure.
func StatusForDays(days int) models.ExpiryStatus {
	switch {
	case days <= 0:
		return models.ExpiryExpired
	case days <= criticalDays:
		return models.ExpiryCritical
	case days <= warningDays:
		return models.ExpiryWarning
	default:
		return models.ExpiryFresh
	}
}

// Alert builds the expiry alert view of a batch.
func Alert(now time.Time, product models.Product, batch models.Batch) models.ExpiryAlert {
	days := DaysUntil(now, batch.ExpiryDate)
	return models.ExpiryAlert{
		ProductID:   batch.ProductID,
		ProductName: product.Name,
		BatchID:     batch.ID,
		BatchNumber: batch.BatchNumber,
		ExpiryDate:  batch.ExpiryDate,
		DaysLeft:    days,
		Quantity:    batch.Quantity,
		Status:      StatusForDays(days),
	}
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
