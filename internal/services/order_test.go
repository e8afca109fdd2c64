package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/stackmartapp/stackmart/internal/db"
	"github.com/stackmartapp/stackmart/internal/models"
)

type fakeOrderStore struct {
	orders map[uuid.UUID]*models.Order

	checkoutErr error
	lastCartKey db.CartKey
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[uuid.UUID]*models.Order)}
}

func (f *fakeOrderStore) CreateCheckout(_ context.Context, order *models.Order, cart db.CartKey) error {
	if f.checkoutErr != nil {
		return f.checkoutErr
	}
	f.lastCartKey = cart
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	clone := *order
	return &clone, nil
}

func (f *fakeOrderStore) ListAll(_ context.Context, _ int) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

// guarded mimics the conditional UPDATE: the change applies only when the
// current status allows the edge.
func (f *fakeOrderStore) guarded(orderID uuid.UUID, target models.OrderStatus, apply func(*models.Order)) error {
	order, ok := f.orders[orderID]
	if !ok {
		return db.ErrNotFound
	}
	if !order.Status.CanTransitionTo(target) {
		return db.ErrInvalidStatusTransition
	}
	order.Status = target
	if apply != nil {
		apply(order)
	}
	return nil
}

func (f *fakeOrderStore) MarkProcessing(_ context.Context, orderID uuid.UUID) error {
	return f.guarded(orderID, models.StatusProcessing, nil)
}

func (f *fakeOrderStore) MarkDelivered(_ context.Context, orderID uuid.UUID) error {
	return f.guarded(orderID, models.StatusDelivered, nil)
}

func (f *fakeOrderStore) MarkReceived(_ context.Context, orderID uuid.UUID) error {
	return f.guarded(orderID, models.StatusReceived, nil)
}

func (f *fakeOrderStore) MarkRefundRequested(_ context.Context, orderID uuid.UUID, reason string) error {
	return f.guarded(orderID, models.StatusRefundRequested, func(o *models.Order) { o.RefundReason = reason })
}

func (f *fakeOrderStore) MarkRefunded(_ context.Context, orderID uuid.UUID, amount float64) error {
	return f.guarded(orderID, models.StatusRefunded, func(o *models.Order) { o.RefundAmount = &amount })
}

func (f *fakeOrderStore) MarkCompleted(_ context.Context, orderID uuid.UUID) error {
	return f.guarded(orderID, models.StatusCompleted, nil)
}

func (f *fakeOrderStore) MarkCancelled(_ context.Context, orderID uuid.UUID) error {
	return f.guarded(orderID, models.StatusCancelled, nil)
}

func (f *fakeOrderStore) Delete(_ context.Context, orderID uuid.UUID) error {
	if _, ok := f.orders[orderID]; !ok {
		return db.ErrNotFound
	}
	delete(f.orders, orderID)
	return nil
}

type fakeProductReader struct {
	products map[string]*models.Product
}

func (f *fakeProductReader) GetByID(_ context.Context, productID string) (*models.Product, error) {
	product, ok := f.products[productID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return product, nil
}

type fakeCartReader struct {
	items []*models.CartItem
	err   error
}

func (f *fakeCartReader) List(_ context.Context, _ db.CartKey) ([]*models.CartItem, error) {
	return f.items, f.err
}

type fakeTracker struct {
	enqueued []uuid.UUID
	statuses map[uuid.UUID]models.OrderStatus
}

func (f *fakeTracker) Enqueue(orderID uuid.UUID) {
	f.enqueued = append(f.enqueued, orderID)
}

func (f *fakeTracker) Track(orderID uuid.UUID) (models.OrderStatus, bool) {
	status, ok := f.statuses[orderID]
	return status, ok
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCheckoutFixture() (*OrderService, *fakeOrderStore, *fakeTracker, CheckoutInput) {
	userID := uuid.New()
	store := newFakeOrderStore()
	products := &fakeProductReader{products: map[string]*models.Product{
		"p1": {ID: "p1", Name: "Laptop", Price: 999.99, Category: "electronics", Stock: 5},
		"p2": {ID: "p2", Name: "Mouse", Price: 19.99, Category: "electronics", Stock: 50},
	}}
	carts := &fakeCartReader{items: []*models.CartItem{
		{ID: uuid.New(), UserID: &userID, ProductID: "p1", Quantity: 1},
		{ID: uuid.New(), UserID: &userID, ProductID: "p2", Quantity: 2},
	}}
	tracker := &fakeTracker{statuses: make(map[uuid.UUID]models.OrderStatus)}
	svc := NewOrderService(store, products, carts, tracker, nil, discardLogger())

	input := CheckoutInput{
		Identity:      Identity{UserID: &userID},
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		ShippingAddress: models.ShippingAddress{
			Address: "1 Analytical Way",
			City:    "London",
			Country: "UK",
		},
		PaymentMethod: "online",
		Total:         1039.97,
	}
	return svc, store, tracker, input
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	t.Parallel()

	svc, store, _, input := newCheckoutFixture()

	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	if order.Status != models.StatusPendingPayment {
		t.Fatalf("Status = %s, want pending_payment", order.Status)
	}
	if order.Total != 1039.97 {
		t.Fatalf("Total = %v, want 1039.97", order.Total)
	}
	if len(order.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(order.Items))
	}
	if order.Items[0].ProductName != "Laptop" {
		t.Fatalf("Items[0].ProductName = %q, want Laptop", order.Items[0].ProductName)
	}
	if _, ok := store.orders[order.ID]; !ok {
		t.Fatalf("order not persisted")
	}
	if store.lastCartKey.UserID == nil {
		t.Fatalf("cart key missing user id")
	}
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	svc, _, _, input := newCheckoutFixture()
	svc.carts = &fakeCartReader{}

	if _, err := svc.Checkout(context.Background(), input); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("Checkout() error = %v, want ErrEmptyCart", err)
	}
}

func TestCheckoutValidatesInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*CheckoutInput)
		field  string
	}{
		{"missing name", func(in *CheckoutInput) { in.CustomerName = "  " }, "customerName"},
		{"bad email", func(in *CheckoutInput) { in.CustomerEmail = "not-an-email" }, "customerEmail"},
		{"missing address", func(in *CheckoutInput) { in.ShippingAddress.Address = "" }, "shippingAddress"},
		{"bad payment method", func(in *CheckoutInput) { in.PaymentMethod = "wire" }, "paymentMethod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _, _, input := newCheckoutFixture()
			tt.mutate(&input)

			_, err := svc.Checkout(context.Background(), input)
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("Checkout() error = %v, want InvalidInputError", err)
			}
			if invalid.Field != tt.field {
				t.Fatalf("Field = %q, want %q", invalid.Field, tt.field)
			}
		})
	}
}

func TestCheckoutRejectsNonPositiveTotal(t *testing.T) {
	t.Parallel()

	for _, total := range []float64{0, -10} {
		svc, _, _, input := newCheckoutFixture()
		input.Total = total

		if _, err := svc.Checkout(context.Background(), input); !errors.Is(err, ErrInvalidTotal) {
			t.Fatalf("Checkout(total=%v) error = %v, want ErrInvalidTotal", total, err)
		}
	}
}

func TestCheckoutRejectsMismatchedTotal(t *testing.T) {
	t.Parallel()

	svc, _, _, input := newCheckoutFixture()
	input.Total = 1039.90

	if _, err := svc.Checkout(context.Background(), input); !errors.Is(err, ErrInvalidTotal) {
		t.Fatalf("Checkout() error = %v, want ErrInvalidTotal", err)
	}
}

func TestCheckoutPropagatesOutOfStock(t *testing.T) {
	t.Parallel()

	svc, store, _, input := newCheckoutFixture()
	store.checkoutErr = &db.OutOfStockError{ProductID: "p1", ProductName: "Laptop", Requested: 1, Available: 0}

	_, err := svc.Checkout(context.Background(), input)
	var oos *db.OutOfStockError
	if !errors.As(err, &oos) {
		t.Fatalf("Checkout() error = %v, want OutOfStockError", err)
	}
	if oos.ProductID != "p1" {
		t.Fatalf("ProductID = %q, want p1", oos.ProductID)
	}
}

func TestConfirmPaymentEnqueuesOrder(t *testing.T) {
	t.Parallel()

	svc, store, tracker, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}

	if err := svc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("ConfirmPayment() error: %v", err)
	}
	if store.orders[order.ID].Status != models.StatusProcessing {
		t.Fatalf("Status = %s, want processing", store.orders[order.ID].Status)
	}
	if len(tracker.enqueued) != 1 || tracker.enqueued[0] != order.ID {
		t.Fatalf("enqueued = %v, want [%s]", tracker.enqueued, order.ID)
	}
}

func TestConfirmPaymentTwiceReportsTransition(t *testing.T) {
	t.Parallel()

	svc, _, _, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}

	if err := svc.ConfirmPayment(context.Background(), order.ID); err != nil {
		t.Fatalf("first ConfirmPayment() error: %v", err)
	}

	err = svc.ConfirmPayment(context.Background(), order.ID)
	var transition *InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("second ConfirmPayment() error = %v, want InvalidTransitionError", err)
	}
	if transition.Current != models.StatusProcessing || transition.Requested != models.StatusProcessing {
		t.Fatalf("transition = %s -> %s, want processing -> processing", transition.Current, transition.Requested)
	}
}

func TestCancelRequiresOwnership(t *testing.T) {
	t.Parallel()

	svc, _, _, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}

	stranger := uuid.New()
	err = svc.Cancel(context.Background(), order.ID, Identity{UserID: &stranger})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("Cancel() by stranger error = %v, want ErrForbidden", err)
	}

	err = svc.Cancel(context.Background(), order.ID, Identity{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Cancel() anonymous error = %v, want ErrUnauthorized", err)
	}

	if err := svc.Cancel(context.Background(), order.ID, input.Identity); err != nil {
		t.Fatalf("Cancel() by owner error: %v", err)
	}
}

func TestCancelDeliveredOrderIsRefused(t *testing.T) {
	t.Parallel()

	svc, store, _, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	store.orders[order.ID].Status = models.StatusDelivered

	err = svc.Cancel(context.Background(), order.ID, input.Identity)
	var transition *InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("Cancel() error = %v, want InvalidTransitionError", err)
	}
	if transition.Current != models.StatusDelivered {
		t.Fatalf("Current = %s, want delivered", transition.Current)
	}
}

func TestRefundDefaultsToFullTotal(t *testing.T) {
	t.Parallel()

	svc, store, _, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	store.orders[order.ID].Status = models.StatusReceived

	if err := svc.Refund(context.Background(), order.ID, nil); err != nil {
		t.Fatalf("Refund() error: %v", err)
	}

	refunded := store.orders[order.ID]
	if refunded.Status != models.StatusRefunded {
		t.Fatalf("Status = %s, want refunded", refunded.Status)
	}
	if refunded.RefundAmount == nil || *refunded.RefundAmount != order.Total {
		t.Fatalf("RefundAmount = %v, want %v", refunded.RefundAmount, order.Total)
	}
}

func TestRefundValidatesAmount(t *testing.T) {
	t.Parallel()

	svc, store, _, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	store.orders[order.ID].Status = models.StatusReceived

	tooMuch := order.Total + 10
	var invalid *InvalidInputError
	if err := svc.Refund(context.Background(), order.ID, &tooMuch); !errors.As(err, &invalid) {
		t.Fatalf("Refund(too much) error = %v, want InvalidInputError", err)
	}

	negative := -5.0
	if err := svc.Refund(context.Background(), order.ID, &negative); !errors.As(err, &invalid) {
		t.Fatalf("Refund(negative) error = %v, want InvalidInputError", err)
	}
}

func TestGetOverlaysTrackedStatus(t *testing.T) {
	t.Parallel()

	svc, store, tracker, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	store.orders[order.ID].Status = models.StatusProcessing
	tracker.statuses[order.ID] = models.StatusDelivered

	got, err := svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != models.StatusDelivered {
		t.Fatalf("Status = %s, want delivered overlay", got.Status)
	}
	if store.orders[order.ID].Status != models.StatusProcessing {
		t.Fatalf("persisted status changed by read")
	}
}

func TestGetIgnoresIllegalOverlay(t *testing.T) {
	t.Parallel()

	svc, store, tracker, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	store.orders[order.ID].Status = models.StatusCancelled
	tracker.statuses[order.ID] = models.StatusDelivered

	got, err := svc.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Fatalf("Status = %s, want cancelled", got.Status)
	}
}

func TestSetStatusRejectsUnknownAndPending(t *testing.T) {
	t.Parallel()

	svc, _, _, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}

	var invalid *InvalidInputError
	if err := svc.SetStatus(context.Background(), order.ID, "shipped"); !errors.As(err, &invalid) {
		t.Fatalf("SetStatus(shipped) error = %v, want InvalidInputError", err)
	}

	var transition *InvalidTransitionError
	if err := svc.SetStatus(context.Background(), order.ID, models.StatusPendingPayment); !errors.As(err, &transition) {
		t.Fatalf("SetStatus(pending_payment) error = %v, want InvalidTransitionError", err)
	}
}

func TestRequestRefundRecordsReason(t *testing.T) {
	t.Parallel()

	svc, store, _, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	store.orders[order.ID].Status = models.StatusReceived

	if err := svc.RequestRefund(context.Background(), order.ID, input.Identity, "  arrived damaged "); err != nil {
		t.Fatalf("RequestRefund() error: %v", err)
	}
	got := store.orders[order.ID]
	if got.Status != models.StatusRefundRequested {
		t.Fatalf("Status = %s, want refund_requested", got.Status)
	}
	if got.RefundReason != "arrived damaged" {
		t.Fatalf("RefundReason = %q, want trimmed reason", got.RefundReason)
	}
}

func TestRequestRefundRejectsBlankReason(t *testing.T) {
	t.Parallel()

	for _, reason := range []string{"", "   ", "\t\n"} {
		svc, store, _, input := newCheckoutFixture()
		order, err := svc.Checkout(context.Background(), input)
		if err != nil {
			t.Fatalf("Checkout() error: %v", err)
		}
		store.orders[order.ID].Status = models.StatusReceived

		err = svc.RequestRefund(context.Background(), order.ID, input.Identity, reason)
		var invalid *InvalidInputError
		if !errors.As(err, &invalid) {
			t.Fatalf("RequestRefund(%q) error = %v, want InvalidInputError", reason, err)
		}
		if invalid.Field != "reason" {
			t.Fatalf("Field = %q, want reason", invalid.Field)
		}
		if store.orders[order.ID].Status != models.StatusReceived {
			t.Fatalf("Status = %s, blank reason must not transition the order", store.orders[order.ID].Status)
		}
	}
}

func TestRequestRefundOnDeliveredOrderIsRefused(t *testing.T) {
	t.Parallel()

	svc, store, _, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	store.orders[order.ID].Status = models.StatusDelivered

	err = svc.RequestRefund(context.Background(), order.ID, input.Identity, "arrived damaged")
	var transition *InvalidTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("RequestRefund() error = %v, want InvalidTransitionError", err)
	}
	if transition.Current != models.StatusDelivered || transition.Requested != models.StatusRefundRequested {
		t.Fatalf("transition = %s -> %s, want delivered -> refund_requested", transition.Current, transition.Requested)
	}
	if store.orders[order.ID].Status != models.StatusDelivered {
		t.Fatalf("Status = %s, refused request must not change the order", store.orders[order.ID].Status)
	}
}

func TestGetForViewerScopesGuestOrders(t *testing.T) {
	t.Parallel()

	svc, _, _, input := newCheckoutFixture()
	guest := Identity{SessionID: "guest-1"}
	input.Identity = guest
	svc.carts = &fakeCartReader{items: []*models.CartItem{
		{ID: uuid.New(), SessionID: "guest-1", ProductID: "p2", Quantity: 1},
	}}
	input.Total = 19.99

	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	if order.SessionID != "guest-1" {
		t.Fatalf("SessionID = %q, want guest-1", order.SessionID)
	}

	if _, err := svc.GetForViewer(context.Background(), order.ID, guest); err != nil {
		t.Fatalf("GetForViewer() by creating session error: %v", err)
	}

	if _, err := svc.GetForViewer(context.Background(), order.ID, Identity{SessionID: "guest-2"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("GetForViewer() by other session error = %v, want ErrForbidden", err)
	}
	if _, err := svc.GetForViewer(context.Background(), order.ID, Identity{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("GetForViewer() anonymous error = %v, want ErrForbidden", err)
	}

	if _, err := svc.GetForViewer(context.Background(), order.ID, Identity{IsAdmin: true}); err != nil {
		t.Fatalf("GetForViewer() by admin error: %v", err)
	}
}

func TestGetForViewerScopesUserOrders(t *testing.T) {
	t.Parallel()

	svc, _, _, input := newCheckoutFixture()
	order, err := svc.Checkout(context.Background(), input)
	if err != nil {
		t.Fatalf("Checkout() error: %v", err)
	}
	if order.SessionID != "" {
		t.Fatalf("SessionID = %q, want empty for a logged-in buyer", order.SessionID)
	}

	if _, err := svc.GetForViewer(context.Background(), order.ID, input.Identity); err != nil {
		t.Fatalf("GetForViewer() by owner error: %v", err)
	}

	stranger := uuid.New()
	if _, err := svc.GetForViewer(context.Background(), order.ID, Identity{UserID: &stranger}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("GetForViewer() by stranger error = %v, want ErrForbidden", err)
	}
	if _, err := svc.GetForViewer(context.Background(), order.ID, Identity{SessionID: "guest-1"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("GetForViewer() by session error = %v, want ErrUnauthorized", err)
	}
}
