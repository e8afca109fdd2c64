package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RatingStore struct {
	pool *pgxpool.Pool
}

func NewRatingStore(pool *pgxpool.Pool) *RatingStore {
	return &RatingStore{pool: pool}
}

// Upsert writes one row per (user, order, product); resubmitting the same
// tuple updates the score and review in place.
func (s *RatingStore) Upsert(ctx context.Context, rating *Rating) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO ratings (id, user_id, order_id, product_id, rating, review)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, order_id, product_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			review = EXCLUDED.review,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		rating.ID, rating.UserID, rating.OrderID, rating.ProductID, rating.Rating, rating.Review,
	).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt)
}

func (s *RatingStore) ListByProduct(ctx context.Context, productID string) ([]*Rating, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, order_id, product_id, rating, review, created_at, updated_at
		FROM ratings WHERE product_id = $1 ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRatings(rows)
}

func (s *RatingStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Rating, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, order_id, product_id, rating, review, created_at, updated_at
		FROM ratings WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRatings(rows)
}

func collectRatings(rows pgx.Rows) ([]*Rating, error) {
	var ratings []*Rating
	for rows.Next() {
		var rating Rating
		if err := rows.Scan(&rating.ID, &rating.UserID, &rating.OrderID, &rating.ProductID,
			&rating.Rating, &rating.Review, &rating.CreatedAt, &rating.UpdatedAt); err != nil {
			return nil, err
		}
		ratings = append(ratings, &rating)
	}
	return ratings, rows.Err()
}
