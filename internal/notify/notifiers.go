package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/pkg/clients/whatsapp"
)

// LogNotifier writes every signal to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Notify(_ context.Context, signal models.Signal) error {
	n.logger.Info(Message(signal),
		zap.String("kind", string(signal.Kind)),
		zap.String("key", signal.Key()),
		zap.Time("occurred_at", signal.OccurredAt))
	return nil
}

// WhatsAppNotifier texts every signal to one recipient.
type WhatsAppNotifier struct {
	client    whatsapp.Sender
	recipient string
}

// NewWhatsAppNotifier builds a notifier sending to recipient through client.
func NewWhatsAppNotifier(client whatsapp.Sender, recipient string) *WhatsAppNotifier {
	return &WhatsAppNotifier{client: client, recipient: recipient}
}

func (n *WhatsAppNotifier) Name() string { return "whatsapp" }

func (n *WhatsAppNotifier) Notify(ctx context.Context, signal models.Signal) error {
	if _, err := n.client.SendAlert(ctx, n.recipient, Message(signal)); err != nil {
		return fmt.Errorf("whatsapp %s: %w", signal.Kind, err)
	}
	return nil
}

// Message renders signal as a short human-readable line.
func Message(signal models.Signal) string {
	switch {
	case signal.Stock != nil:
		s := signal.Stock
		return fmt.Sprintf("Low stock: %s (%s) has %d units left, minimum is %d.", label(s.ProductName, s.ProductID), s.Category, s.CurrentStock, s.MinStock)
	case signal.Expiry != nil:
		e := signal.Expiry
		if e.Status == models.ExpiryExpired {
			return fmt.Sprintf("Expired: batch %s of %s expired on %s, %d units to remove.", e.BatchNumber, label(e.ProductName, e.ProductID), e.ExpiryDate.Format("2006-01-02"), e.Quantity)
		}
		return fmt.Sprintf("Expiry %s: batch %s of %s expires in %d day(s) on %s, %d units left.", e.Status, e.BatchNumber, label(e.ProductName, e.ProductID), e.DaysLeft, e.ExpiryDate.Format("2006-01-02"), e.Quantity)
	case signal.Draft != nil:
		d := signal.Draft
		msg := fmt.Sprintf("Purchase order draft %s: %d units of %s from %s", d.ID, d.Quantity, d.ProductID, d.SupplierName)
		if d.PredictedStockoutDate != nil {
			msg += fmt.Sprintf(", stockout expected %s", d.PredictedStockoutDate.UTC().Format("2006-01-02 15:04 MST"))
		}
		return msg + "."
	}
	return string(signal.Kind)
}

func label(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
