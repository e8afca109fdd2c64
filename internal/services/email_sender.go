package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stackmartapp/stackmart/internal/email"
	"github.com/stackmartapp/stackmart/internal/logging"
	"github.com/stackmartapp/stackmart/internal/models"
)

// OrderEmailSender delivers customer notifications for order events.
// Sends are best effort: a failed email never fails the operation that
// triggered it.
type OrderEmailSender interface {
	OrderConfirmation(ctx context.Context, order *models.Order)
	OrderDelivered(ctx context.Context, order *models.Order)
	RefundProcessed(ctx context.Context, order *models.Order)
}

type noopOrderEmailSender struct{}

func (noopOrderEmailSender) OrderConfirmation(context.Context, *models.Order) {}
func (noopOrderEmailSender) OrderDelivered(context.Context, *models.Order)    {}
func (noopOrderEmailSender) RefundProcessed(context.Context, *models.Order)   {}

type providerOrderEmailSender struct {
	provider email.Provider
	logger   *slog.Logger
}

// NewOrderEmailSender returns a sender backed by the given provider, or a
// no-op sender when the provider is nil.
func NewOrderEmailSender(provider email.Provider, logger *slog.Logger) OrderEmailSender {
	if provider == nil {
		return noopOrderEmailSender{}
	}
	return &providerOrderEmailSender{provider: provider, logger: logger}
}

func (s *providerOrderEmailSender) OrderConfirmation(ctx context.Context, order *models.Order) {
	s.send(ctx, order, "order_confirmation", email.SendOrderConfirmation)
}

func (s *providerOrderEmailSender) OrderDelivered(ctx context.Context, order *models.Order) {
	s.send(ctx, order, "order_delivered", email.SendOrderDelivered)
}

func (s *providerOrderEmailSender) RefundProcessed(ctx context.Context, order *models.Order) {
	s.send(ctx, order, "refund_processed", email.SendRefundProcessed)
}

func (s *providerOrderEmailSender) send(ctx context.Context, order *models.Order, kind string, sendFn func(context.Context, email.Provider, *email.OrderInfo) error) {
	if order == nil || order.CustomerEmail == "" {
		return
	}
	if err := sendFn(ctx, s.provider, orderEmailInfo(order)); err != nil {
		logging.FromContext(ctx, s.logger).Warn("failed to send order email",
			"kind", kind, "order_id", order.ID, "error", err)
	}
}

func orderEmailInfo(order *models.Order) *email.OrderInfo {
	info := &email.OrderInfo{
		OrderID:       order.ID.String(),
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		PaymentMethod: string(order.PaymentMethod),
		OrderDate:     order.CreatedAt.Format("January 2, 2006"),
		Total:         formatMoney(order.Total),
		RefundReason:  order.RefundReason,
	}
	if order.RefundAmount != nil {
		info.RefundAmount = formatMoney(*order.RefundAmount)
	}
	for _, item := range order.Items {
		info.Items = append(info.Items, email.OrderItem{
			Name:       item.ProductName,
			Quantity:   item.Quantity,
			TotalPrice: formatMoney(item.Price * float64(item.Quantity)),
		})
	}
	return info
}

func formatMoney(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

type orderGetter interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// DeliveryNotifier bridges the fulfillment worker's delivered callback to
// the email sender.
type DeliveryNotifier struct {
	orders orderGetter
	sender OrderEmailSender
	logger *slog.Logger
}

func NewDeliveryNotifier(orders orderGetter, sender OrderEmailSender, logger *slog.Logger) *DeliveryNotifier {
	if sender == nil {
		sender = noopOrderEmailSender{}
	}
	return &DeliveryNotifier{orders: orders, sender: sender, logger: logger}
}

func (n *DeliveryNotifier) OrderDelivered(ctx context.Context, orderID uuid.UUID) {
	order, err := n.orders.GetByID(ctx, orderID)
	if err != nil {
		n.logger.Warn("failed to load delivered order for notification", "order_id", orderID, "error", err)
		return
	}
	n.sender.OrderDelivered(ctx, order)
}
