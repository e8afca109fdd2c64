// seed loads a YAML product catalog into the database. Existing products
// are updated in place, so re-running it is safe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stackmartapp/stackmart/internal/db"
	"github.com/stackmartapp/stackmart/internal/models"
)

type catalogFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Price       float64 `yaml:"price"`
	Category    string  `yaml:"category"`
	Brand       string  `yaml:"brand"`
	Stock       int     `yaml:"stock"`
	ImageURL    string  `yaml:"imageUrl"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	file := flag.String("file", "seed/products.yaml", "path to the catalog YAML file")
	flag.Parse()

	if err := run(logger, *file); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, file string) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	var catalog catalogFile
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(catalog.Products) == 0 {
		return fmt.Errorf("catalog file contains no products")
	}
	for i, p := range catalog.Products {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("product %d: id and name are required", i)
		}
		if p.Price < 0 || p.Stock < 0 {
			return fmt.Errorf("product %s: price and stock must not be negative", p.ID)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	products := db.NewProductStore(pool)
	for _, p := range catalog.Products {
		if err := products.Upsert(ctx, &models.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Category:    p.Category,
			Brand:       p.Brand,
			Stock:       p.Stock,
			ImageURL:    p.ImageURL,
		}); err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
		}
		logger.Info("seeded product", "id", p.ID, "name", p.Name)
	}

	logger.Info("catalog seeded", "products", len(catalog.Products))
	return nil
}
