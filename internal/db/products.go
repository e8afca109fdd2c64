package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const productColumns = `id, name, description, price, category, brand, stock, image_url, rating, created_at`

func (s *ProductStore) GetByID(ctx context.Context, productID string) (*Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	return product, err
}

func (s *ProductStore) List(ctx context.Context) ([]*Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (s *ProductStore) Categories(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
}

func (s *ProductStore) Brands(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT brand FROM products WHERE brand <> '' ORDER BY brand`)
}

func (s *ProductStore) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

// Upsert inserts or replaces a product definition. Stock is overwritten,
// so it is meant for seeding and admin edits, not order flow.
func (s *ProductStore) Upsert(ctx context.Context, product *Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, description, price, category, brand, stock, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			category = EXCLUDED.category,
			brand = EXCLUDED.brand,
			stock = EXCLUDED.stock,
			image_url = EXCLUDED.image_url`,
		product.ID, product.Name, product.Description, product.Price,
		product.Category, product.Brand, product.Stock, product.ImageURL)
	return err
}

func (s *ProductStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	return count, err
}

// UpdateRating recomputes a product's aggregate rating from the ratings
// table.
func (s *ProductStore) UpdateRating(ctx context.Context, productID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE products
		SET rating = COALESCE((SELECT AVG(rating) FROM ratings WHERE product_id = $1), 0)
		WHERE id = $1`, productID)
	return err
}

func scanProduct(row pgx.Row) (*Product, error) {
	var product Product
	err := row.Scan(&product.ID, &product.Name, &product.Description, &product.Price,
		&product.Category, &product.Brand, &product.Stock, &product.ImageURL,
		&product.Rating, &product.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &product, nil
}
