package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/stackmartapp/stackmart/internal/db"
	"github.com/stackmartapp/stackmart/internal/logging"
	"github.com/stackmartapp/stackmart/internal/models"
	"github.com/stackmartapp/stackmart/internal/observability"
)

// Identity is the resolved caller of a request: an authenticated user, an
// anonymous session, or both empty for unauthenticated traffic.
type Identity struct {
	UserID    *uuid.UUID
	IsAdmin   bool
	SessionID string
}

// CartKey returns the cart owner key for this identity.
func (id Identity) CartKey() db.CartKey {
	if id.UserID != nil {
		return db.CartKey{UserID: id.UserID}
	}
	return db.CartKey{SessionID: id.SessionID}
}

type orderStore interface {
	CreateCheckout(ctx context.Context, order *models.Order, cart db.CartKey) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListAll(ctx context.Context, limit int) ([]*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error)
	MarkProcessing(ctx context.Context, orderID uuid.UUID) error
	MarkDelivered(ctx context.Context, orderID uuid.UUID) error
	MarkReceived(ctx context.Context, orderID uuid.UUID) error
	MarkRefundRequested(ctx context.Context, orderID uuid.UUID, reason string) error
	MarkRefunded(ctx context.Context, orderID uuid.UUID, amount float64) error
	MarkCompleted(ctx context.Context, orderID uuid.UUID) error
	MarkCancelled(ctx context.Context, orderID uuid.UUID) error
	Delete(ctx context.Context, orderID uuid.UUID) error
}

type productReader interface {
	GetByID(ctx context.Context, productID string) (*models.Product, error)
}

type cartReader interface {
	List(ctx context.Context, key db.CartKey) ([]*models.CartItem, error)
}

// orderTracker is the slice of the fulfillment worker the service needs.
type orderTracker interface {
	Enqueue(orderID uuid.UUID)
	Track(orderID uuid.UUID) (models.OrderStatus, bool)
}

type OrderService struct {
	orders      orderStore
	products    productReader
	carts       cartReader
	tracker     orderTracker
	emailSender OrderEmailSender
	logger      *slog.Logger
}

func NewOrderService(orders orderStore, products productReader, carts cartReader, tracker orderTracker, emailSender OrderEmailSender, logger *slog.Logger) *OrderService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}

	return &OrderService{
		orders:      orders,
		products:    products,
		carts:       carts,
		tracker:     tracker,
		emailSender: emailSender,
		logger:      logger,
	}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type CheckoutInput struct {
	Identity        Identity
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	Total           float64
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Checkout prices the caller's cart against current product data, verifies
// the caller's total, and creates a pending_payment order. Stock is
// reserved and the cart cleared in the same transaction as the insert.
func (s *OrderService) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.checkout",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("Checkout"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.Count("order.checkout.received", 1)
	recordFailure := func(reason string) {
		meter.Count("order.checkout.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	cartKey := input.Identity.CartKey()
	if cartKey.Empty() {
		recordFailure("no_cart")
		return nil, ErrEmptyCart
	}
	cartItems, err := s.carts.List(ctx, cartKey)
	if err != nil {
		recordFailure("cart_load_failed")
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cartItems) == 0 {
		recordFailure("empty_cart")
		return nil, ErrEmptyCart
	}

	if err := validateCheckoutInput(input); err != nil {
		if errors.Is(err, ErrInvalidTotal) {
			recordFailure("invalid_total")
		} else {
			recordFailure("invalid_input")
		}
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          input.Identity.UserID,
		SessionID:       guestSession(input.Identity),
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerEmail:   strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
		CustomerPhone:   strings.TrimSpace(input.CustomerPhone),
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   models.PaymentMethod(input.PaymentMethod),
		Status:          models.StatusPendingPayment,
	}

	for _, cartItem := range cartItems {
		product, err := s.products.GetByID(ctx, cartItem.ProductID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				recordFailure("unknown_product")
				return nil, fmt.Errorf("cart references product %s: %w", cartItem.ProductID, db.ErrNotFound)
			}
			recordFailure("product_load_failed")
			return nil, fmt.Errorf("failed to load product %s: %w", cartItem.ProductID, err)
		}
		order.Items = append(order.Items, models.LineItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    cartItem.Quantity,
			Price:       product.Price,
			Category:    product.Category,
		})
	}
	order.Total = order.ItemTotal()

	if math.Abs(order.Total-input.Total) > 0.005 {
		recordFailure("total_mismatch")
		logger.Info("checkout total mismatch", "expected", order.Total, "got", input.Total)
		return nil, ErrInvalidTotal
	}

	if err := s.orders.CreateCheckout(ctx, order, cartKey); err != nil {
		var oos *db.OutOfStockError
		if errors.As(err, &oos) {
			recordFailure("out_of_stock")
			return nil, err
		}
		recordFailure("persist_failed")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	meter.Count("order.checkout.succeeded", 1)
	meter.Distribution("order.checkout.total", order.Total)
	logger.Info("order created", "order_id", order.ID, "total", order.Total, "payment_method", order.PaymentMethod)

	s.emailSender.OrderConfirmation(ctx, order)
	return order, nil
}

func validateCheckoutInput(input CheckoutInput) error {
	if strings.TrimSpace(input.CustomerName) == "" {
		return &InvalidInputError{Field: "customerName", Reason: "is required"}
	}
	if !emailPattern.MatchString(strings.TrimSpace(input.CustomerEmail)) {
		return &InvalidInputError{Field: "customerEmail", Reason: "must be a valid email address"}
	}
	addr := input.ShippingAddress
	if strings.TrimSpace(addr.Address) == "" || strings.TrimSpace(addr.City) == "" {
		return &InvalidInputError{Field: "shippingAddress", Reason: "address and city are required"}
	}
	if !models.PaymentMethod(input.PaymentMethod).Valid() {
		return &InvalidInputError{Field: "paymentMethod", Reason: "must be cod or online"}
	}
	if input.Total <= 0 {
		return ErrInvalidTotal
	}
	return nil
}

// Get returns an order. While the fulfillment worker holds the order one
// legal step ahead of the persisted row, the tracked status wins.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.tracker != nil {
		if tracked, ok := s.tracker.Track(order.ID); ok && tracked != order.Status && order.Status.CanTransitionTo(tracked) {
			order.Status = tracked
		}
	}
	return order, nil
}

// GetOwned returns an order after verifying the caller may see it.
func (s *OrderService) GetOwned(ctx context.Context, orderID uuid.UUID, identity Identity) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrderAccess(order, identity); err != nil {
		return nil, err
	}
	return order, nil
}

// GetForViewer returns an order to whoever placed it. User orders require
// the owning user, guest orders the session that checked out; holding the
// order id alone is not enough to read the customer snapshot.
func (s *OrderService) GetForViewer(ctx context.Context, orderID uuid.UUID, identity Identity) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if identity.IsAdmin {
		return order, nil
	}
	if order.UserID != nil {
		if err := authorizeOrderAccess(order, identity); err != nil {
			return nil, err
		}
		return order, nil
	}
	if order.SessionID == "" || identity.SessionID != order.SessionID {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListAll(ctx context.Context, limit int) ([]*models.Order, error) {
	return s.orders.ListAll(ctx, limit)
}

func (s *OrderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ConfirmPayment moves a pending order into processing and hands it to the
// fulfillment worker.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID uuid.UUID) error {
	span := sentry.StartSpan(
		ctx,
		"service.order.confirm_payment",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("ConfirmPayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if err := s.transition(ctx, orderID, models.StatusProcessing, s.orders.MarkProcessing); err != nil {
		return err
	}

	observability.MeterFromContext(ctx).Count("order.payment.confirmed", 1)
	s.loggerFromContext(ctx).Info("payment confirmed", "order_id", orderID)
	if s.tracker != nil {
		s.tracker.Enqueue(orderID)
	}
	return nil
}

// Cancel cancels a not-yet-delivered order on behalf of its owner and
// restores reserved stock.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, identity Identity) error {
	if _, err := s.loadOwned(ctx, orderID, identity); err != nil {
		return err
	}
	if err := s.transition(ctx, orderID, models.StatusCancelled, s.orders.MarkCancelled); err != nil {
		return err
	}
	observability.MeterFromContext(ctx).Count("order.cancelled", 1)
	s.loggerFromContext(ctx).Info("order cancelled", "order_id", orderID)
	return nil
}

// ConfirmReceipt records that the customer received a delivered order.
func (s *OrderService) ConfirmReceipt(ctx context.Context, orderID uuid.UUID, identity Identity) error {
	if _, err := s.loadOwned(ctx, orderID, identity); err != nil {
		return err
	}
	return s.transition(ctx, orderID, models.StatusReceived, s.orders.MarkReceived)
}

// RequestRefund opens a refund request on a received order. The reason is
// mandatory; a whitespace-only one does not count.
func (s *OrderService) RequestRefund(ctx context.Context, orderID uuid.UUID, identity Identity, reason string) error {
	if _, err := s.loadOwned(ctx, orderID, identity); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return &InvalidInputError{Field: "reason", Reason: "is required"}
	}
	err := s.transition(ctx, orderID, models.StatusRefundRequested, func(ctx context.Context, id uuid.UUID) error {
		return s.orders.MarkRefundRequested(ctx, id, reason)
	})
	if err != nil {
		return err
	}
	observability.MeterFromContext(ctx).Count("order.refund.requested", 1)
	return nil
}

// Refund issues a refund. A nil amount refunds the full order total. Stock
// is restored in the same transaction as the status change.
func (s *OrderService) Refund(ctx context.Context, orderID uuid.UUID, amount *float64) error {
	span := sentry.StartSpan(
		ctx,
		"service.order.refund",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("Refund"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	refundAmount := order.Total
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount <= 0 {
		return &InvalidInputError{Field: "refundAmount", Reason: "must be positive"}
	}
	if refundAmount > order.Total+0.005 {
		return &InvalidInputError{Field: "refundAmount", Reason: "exceeds order total"}
	}

	err = s.transition(ctx, orderID, models.StatusRefunded, func(ctx context.Context, id uuid.UUID) error {
		return s.orders.MarkRefunded(ctx, id, refundAmount)
	})
	if err != nil {
		return err
	}

	observability.MeterFromContext(ctx).Count("order.refunded", 1)
	observability.MeterFromContext(ctx).Distribution("order.refund.amount", refundAmount)
	s.loggerFromContext(ctx).Info("order refunded", "order_id", orderID, "amount", refundAmount)

	if refunded, getErr := s.orders.GetByID(ctx, orderID); getErr == nil {
		s.emailSender.RefundProcessed(ctx, refunded)
	}
	return nil
}

// ConfirmRefund is the customer acknowledging the refund arrived, closing
// the order.
func (s *OrderService) ConfirmRefund(ctx context.Context, orderID uuid.UUID, identity Identity) error {
	if _, err := s.loadOwned(ctx, orderID, identity); err != nil {
		return err
	}
	return s.transition(ctx, orderID, models.StatusCompleted, s.orders.MarkCompleted)
}

// SetStatus is the admin override. The target still has to be reachable
// from the order's current status; the guarded updates enforce that.
func (s *OrderService) SetStatus(ctx context.Context, orderID uuid.UUID, target models.OrderStatus) error {
	if !target.Valid() {
		return &InvalidInputError{Field: "status", Reason: "unknown status"}
	}

	switch target {
	case models.StatusProcessing:
		return s.ConfirmPayment(ctx, orderID)
	case models.StatusDelivered:
		return s.transition(ctx, orderID, target, s.orders.MarkDelivered)
	case models.StatusReceived:
		return s.transition(ctx, orderID, target, s.orders.MarkReceived)
	case models.StatusRefundRequested:
		return s.transition(ctx, orderID, target, func(ctx context.Context, id uuid.UUID) error {
			return s.orders.MarkRefundRequested(ctx, id, "")
		})
	case models.StatusRefunded:
		return s.Refund(ctx, orderID, nil)
	case models.StatusCompleted:
		return s.transition(ctx, orderID, target, s.orders.MarkCompleted)
	case models.StatusCancelled:
		return s.transition(ctx, orderID, target, s.orders.MarkCancelled)
	default:
		// No edge leads back into pending_payment.
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		return &InvalidTransitionError{OrderID: orderID, Current: order.Status, Requested: target}
	}
}

// Delete removes an order and its ratings. Admin only; intended for test
// orders and data cleanup, not part of the customer lifecycle.
func (s *OrderService) Delete(ctx context.Context, orderID uuid.UUID) error {
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return err
	}
	s.loggerFromContext(ctx).Info("order deleted", "order_id", orderID)
	return nil
}

// transition runs a guarded status update and, when the store refuses it,
// reports the order's actual status alongside the requested one.
func (s *OrderService) transition(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, fn func(context.Context, uuid.UUID) error) error {
	err := fn(ctx, orderID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrInvalidStatusTransition) {
		return err
	}

	order, getErr := s.orders.GetByID(ctx, orderID)
	if getErr != nil {
		if errors.Is(getErr, db.ErrNotFound) {
			return db.ErrNotFound
		}
		return err
	}
	return &InvalidTransitionError{OrderID: orderID, Current: order.Status, Requested: target}
}

func (s *OrderService) loadOwned(ctx context.Context, orderID uuid.UUID, identity Identity) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrderAccess(order, identity); err != nil {
		return nil, err
	}
	return order, nil
}

// guestSession returns the session id to stamp on a new order, empty for
// logged-in buyers.
func guestSession(identity Identity) string {
	if identity.UserID != nil {
		return ""
	}
	return identity.SessionID
}

func authorizeOrderAccess(order *models.Order, identity Identity) error {
	if identity.IsAdmin {
		return nil
	}
	if identity.UserID == nil {
		return ErrUnauthorized
	}
	if order.UserID == nil || *order.UserID != *identity.UserID {
		return ErrForbidden
	}
	return nil
}
