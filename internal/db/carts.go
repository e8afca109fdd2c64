package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CartStore struct {
	pool *pgxpool.Pool
}

func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

func (s *CartStore) List(ctx context.Context, key CartKey) ([]*CartItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, session_id, product_id, quantity FROM cart_items `+cartKeyClause(key),
		cartKeyArg(key))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*CartItem
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Add merges quantity into an existing line for the same product, else
// inserts a new one.
func (s *CartStore) Add(ctx context.Context, key CartKey, productID string, quantity int) (*CartItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, session_id, product_id, quantity FROM cart_items `+
			cartKeyClause(key)+` AND product_id = $2`,
		cartKeyArg(key), productID)
	existing, err := scanCartItem(row)
	if err == nil {
		existing.Quantity += quantity
		_, err = s.pool.Exec(ctx, `UPDATE cart_items SET quantity = $2 WHERE id = $1`,
			existing.ID, existing.Quantity)
		if err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	item := &CartItem{
		ID:        uuid.New(),
		UserID:    key.UserID,
		SessionID: key.SessionID,
		ProductID: productID,
		Quantity:  quantity,
	}
	var sessionID any
	if key.UserID == nil {
		sessionID = key.SessionID
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO cart_items (id, user_id, session_id, product_id, quantity) VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.UserID, sessionID, item.ProductID, item.Quantity)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CartStore) Remove(ctx context.Context, key CartKey, itemID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM cart_items `+cartKeyClause(key)+` AND id = $2`,
		cartKeyArg(key), itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart item %s: %w", itemID, ErrNotFound)
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context, key CartKey) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cart_items `+cartKeyClause(key), cartKeyArg(key))
	return err
}

func cartKeyClause(key CartKey) string {
	if key.UserID != nil {
		return `WHERE user_id = $1`
	}
	return `WHERE session_id = $1`
}

func cartKeyArg(key CartKey) any {
	if key.UserID != nil {
		return *key.UserID
	}
	return key.SessionID
}

func scanCartItem(row pgx.Row) (*CartItem, error) {
	var (
		item      CartItem
		userID    pgtype.UUID
		sessionID pgtype.Text
	)
	if err := row.Scan(&item.ID, &userID, &sessionID, &item.ProductID, &item.Quantity); err != nil {
		return nil, err
	}
	if userID.Valid {
		id := uuid.UUID(userID.Bytes)
		item.UserID = &id
	}
	if sessionID.Valid {
		item.SessionID = sessionID.String
	}
	return &item, nil
}
