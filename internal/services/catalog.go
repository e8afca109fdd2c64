package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/stackmartapp/stackmart/internal/cache"
	"github.com/stackmartapp/stackmart/internal/logging"
	"github.com/stackmartapp/stackmart/internal/models"
)

const catalogCacheTTL = 5 * time.Minute

type productStore interface {
	GetByID(ctx context.Context, productID string) (*models.Product, error)
	List(ctx context.Context) ([]*models.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Brands(ctx context.Context) ([]string, error)
}

// ProductFilter narrows a catalog listing. Zero values match everything.
type ProductFilter struct {
	Category string
	Brand    string
	Search   string
}

// CatalogService serves product listings with a short read-side cache in
// front of the store. Cache failures fall through to the database.
type CatalogService struct {
	products productStore
	cache    cache.Provider
	logger   *slog.Logger
}

func NewCatalogService(products productStore, cacheProvider cache.Provider, logger *slog.Logger) *CatalogService {
	return &CatalogService{products: products, cache: cacheProvider, logger: logger}
}

func (s *CatalogService) Get(ctx context.Context, productID string) (*models.Product, error) {
	return s.products.GetByID(ctx, productID)
}

// List returns products matching the filter. The unfiltered listing is
// cached; filters are applied in memory on top of it.
func (s *CatalogService) List(ctx context.Context, filter ProductFilter) ([]*models.Product, error) {
	products, err := s.cachedProducts(ctx)
	if err != nil {
		return nil, err
	}
	return filterProducts(products, filter), nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	return s.cachedStrings(ctx, cache.CatalogKey("categories"), s.products.Categories)
}

func (s *CatalogService) Brands(ctx context.Context) ([]string, error) {
	return s.cachedStrings(ctx, cache.CatalogKey("brands"), s.products.Brands)
}

func (s *CatalogService) cachedProducts(ctx context.Context) ([]*models.Product, error) {
	key := cache.CatalogKey("products")
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var products []*models.Product
			if err := json.Unmarshal([]byte(raw), &products); err == nil {
				return products, nil
			}
			logging.FromContext(ctx, s.logger).Warn("discarding corrupt catalog cache entry", "key", key)
		}
	}

	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, products)
	return products, nil
}

func (s *CatalogService) cachedStrings(ctx context.Context, key string, load func(context.Context) ([]string, error)) ([]string, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var values []string
			if err := json.Unmarshal([]byte(raw), &values); err == nil {
				return values, nil
			}
		}
	}

	values, err := load(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, values)
	return values, nil
}

func (s *CatalogService) store(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), catalogCacheTTL); err != nil {
		logging.FromContext(ctx, s.logger).Warn("failed to populate catalog cache", "key", key, "error", err)
	}
}

func filterProducts(products []*models.Product, filter ProductFilter) []*models.Product {
	if filter.Category == "" && filter.Brand == "" && filter.Search == "" {
		return products
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]*models.Product, 0, len(products))
	for _, p := range products {
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if filter.Brand != "" && !strings.EqualFold(p.Brand, filter.Brand) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		out = append(out, p)
	}
	return out
}
