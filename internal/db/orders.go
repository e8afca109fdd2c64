package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackmartapp/stackmart/internal/models"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

// OutOfStockError reports which product could not cover the requested
// quantity.
type OutOfStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (%s): requested %d, available %d",
		e.ProductID, e.ProductName, e.Requested, e.Available)
}

// CartKey identifies whose cart to operate on: an authenticated user or an
// anonymous session.
type CartKey struct {
	UserID    *uuid.UUID
	SessionID string
}

func (k CartKey) Empty() bool {
	return k.UserID == nil && k.SessionID == ""
}

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, user_id, session_id, customer_name, customer_email, customer_phone,
	shipping_address, items, total, payment_method, status,
	refund_reason, refund_amount, refunded_at,
	created_at, paid_at, delivered_at, received_at`

// CreateCheckout atomically decrements stock for every line item, inserts
// the order in pending_payment, and clears the buyer's cart. Any
// insufficient stock aborts the whole transaction, so no partial decrement
// is ever visible.
func (s *OrderStore) CreateCheckout(ctx context.Context, order *Order, cart CartKey) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, item := range order.Items {
		tag, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
			item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var name string
			var available int
			err := tx.QueryRow(ctx, `SELECT name, stock FROM products WHERE id = $1`, item.ProductID).
				Scan(&name, &available)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("product %s: %w", item.ProductID, ErrNotFound)
			}
			if err != nil {
				return err
			}
			return &OutOfStockError{
				ProductID:   item.ProductID,
				ProductName: name,
				Requested:   item.Quantity,
				Available:   available,
			}
		}
	}

	var sessionID any
	if order.SessionID != "" {
		sessionID = order.SessionID
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, session_id, customer_name, customer_email, customer_phone,
			shipping_address, items, total, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		order.ID, order.UserID, sessionID, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		addressJSON, itemsJSON, order.Total, string(order.PaymentMethod), string(order.Status),
	).Scan(&order.CreatedAt)
	if err != nil {
		return err
	}

	if !cart.Empty() {
		if cart.UserID != nil {
			_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, *cart.UserID)
		} else {
			_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE session_id = $1`, cart.SessionID)
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return order, err
}

// ListAll returns orders newest first. A limit of 0 means no limit;
// NULLIF turns it into LIMIT NULL so the query stays a single statement.
func (s *OrderStore) ListAll(ctx context.Context, limit int) ([]*Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT NULLIF($1, 0)`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *OrderStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListByStatus is used to rebuild worker tracking after a restart.
func (s *OrderStore) ListByStatus(ctx context.Context, status OrderStatus) ([]*Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *OrderStore) MarkProcessing(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE orders
		SET status = $1, paid_at = NOW()
		WHERE id = $2 AND status = 'pending_payment'
	`
	tag, err := s.pool.Exec(ctx, query, StatusProcessing, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending_payment", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkDelivered(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE orders
		SET status = $1, delivered_at = NOW()
		WHERE id = $2 AND status = 'processing'
	`
	tag, err := s.pool.Exec(ctx, query, StatusDelivered, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected processing", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkReceived(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE orders
		SET status = $1, received_at = NOW()
		WHERE id = $2 AND status = 'delivered'
	`
	tag, err := s.pool.Exec(ctx, query, StatusReceived, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected delivered", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkRefundRequested(ctx context.Context, orderID uuid.UUID, reason string) error {
	query := `
		UPDATE orders
		SET status = $1, refund_reason = $3
		WHERE id = $2 AND status = 'received'
	`
	tag, err := s.pool.Exec(ctx, query, StatusRefundRequested, orderID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected received", ErrInvalidStatusTransition)
	}
	return nil
}

// MarkRefunded flips the order to refunded and restores stock for every
// line item in the same transaction. refunded_at is set once and never
// overwritten.
func (s *OrderStore) MarkRefunded(ctx context.Context, orderID uuid.UUID, amount float64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var itemsJSON []byte
	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $1, refund_amount = $3, refunded_at = COALESCE(refunded_at, NOW())
		WHERE id = $2 AND status IN ('received', 'refund_requested')
		RETURNING items`,
		StatusRefunded, orderID, amount,
	).Scan(&itemsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: expected received/refund_requested", ErrInvalidStatusTransition)
	}
	if err != nil {
		return err
	}

	if err := restoreStock(ctx, tx, itemsJSON); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *OrderStore) MarkCompleted(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE orders
		SET status = $1
		WHERE id = $2 AND status = 'refunded' AND refunded_at IS NOT NULL
	`
	tag, err := s.pool.Exec(ctx, query, StatusCompleted, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected refunded", ErrInvalidStatusTransition)
	}
	return nil
}

// MarkCancelled flips the order to cancelled and restores stock in the
// same transaction. Only pending_payment and processing orders can be
// cancelled.
func (s *OrderStore) MarkCancelled(ctx context.Context, orderID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var itemsJSON []byte
	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $1
		WHERE id = $2 AND status IN ('pending_payment', 'processing')
		RETURNING items`,
		StatusCancelled, orderID,
	).Scan(&itemsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: expected pending_payment/processing", ErrInvalidStatusTransition)
	}
	if err != nil {
		return err
	}

	if err := restoreStock(ctx, tx, itemsJSON); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *OrderStore) Delete(ctx context.Context, orderID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ratings WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	return tx.Commit(ctx)
}

// OrderTotals backs the admin stats endpoint.
type OrderTotals struct {
	Count   int
	Revenue float64
}

func (s *OrderStore) Totals(ctx context.Context) (OrderTotals, error) {
	var totals OrderTotals
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total), 0) FROM orders`).
		Scan(&totals.Count, &totals.Revenue)
	return totals, err
}

func (s *OrderStore) TotalsBetween(ctx context.Context, from, to time.Time) (OrderTotals, error) {
	var totals OrderTotals
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total), 0) FROM orders WHERE created_at >= $1 AND created_at < $2`,
		from, to).
		Scan(&totals.Count, &totals.Revenue)
	return totals, err
}

func restoreStock(ctx context.Context, tx pgx.Tx, itemsJSON []byte) error {
	var items []LineItem
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return err
	}
	for _, item := range items {
		// A product deleted since purchase leaves nothing to restore.
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock + $2 WHERE id = $1`,
			item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order        Order
		userID       pgtype.UUID
		sessionID    pgtype.Text
		addressJSON  []byte
		itemsJSON    []byte
		status       string
		method       string
		refundReason pgtype.Text
		refundAmount pgtype.Float8
		refundedAt   pgtype.Timestamptz
		paidAt       pgtype.Timestamptz
		deliveredAt  pgtype.Timestamptz
		receivedAt   pgtype.Timestamptz
	)

	err := row.Scan(&order.ID, &userID, &sessionID, &order.CustomerName, &order.CustomerEmail,
		&order.CustomerPhone, &addressJSON, &itemsJSON, &order.Total, &method, &status,
		&refundReason, &refundAmount, &refundedAt,
		&order.CreatedAt, &paidAt, &deliveredAt, &receivedAt)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		id := uuid.UUID(userID.Bytes)
		order.UserID = &id
	}
	if sessionID.Valid {
		order.SessionID = sessionID.String
	}
	if addressJSON != nil {
		if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
			return nil, err
		}
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, err
	}
	order.PaymentMethod = models.PaymentMethod(method)
	order.Status = OrderStatus(status)
	if refundReason.Valid {
		order.RefundReason = refundReason.String
	}
	if refundAmount.Valid {
		amount := refundAmount.Float64
		order.RefundAmount = &amount
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		order.RefundedAt = &t
	}
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		order.DeliveredAt = &t
	}
	if receivedAt.Valid {
		t := receivedAt.Time
		order.ReceivedAt = &t
	}

	return &order, nil
}

func collectOrders(rows pgx.Rows) ([]*Order, error) {
	var orders []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
