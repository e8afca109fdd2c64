package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/stackmartapp/stackmart/internal/cache"
	"github.com/stackmartapp/stackmart/internal/db"
	"github.com/stackmartapp/stackmart/internal/logging"
	"github.com/stackmartapp/stackmart/internal/models"
)

const (
	analyticsCacheTTL  = 5 * time.Minute
	analyticsMonths    = 6
	analyticsTopLimit  = 5
	analyticsWindowLen = 30 * 24 * time.Hour
)

type adminOrderStore interface {
	ListAll(ctx context.Context, limit int) ([]*models.Order, error)
	Totals(ctx context.Context) (db.OrderTotals, error)
	TotalsBetween(ctx context.Context, from, to time.Time) (db.OrderTotals, error)
}

type entityCounter interface {
	Count(ctx context.Context) (int, error)
}

// AdminService aggregates storefront numbers for the admin dashboard.
type AdminService struct {
	orders   adminOrderStore
	products entityCounter
	users    entityCounter
	cache    cache.Provider
	logger   *slog.Logger
	now      func() time.Time
}

func NewAdminService(orders adminOrderStore, products, users entityCounter, cacheProvider cache.Provider, logger *slog.Logger) *AdminService {
	return &AdminService{
		orders:   orders,
		products: products,
		users:    users,
		cache:    cacheProvider,
		logger:   logger,
		now:      time.Now,
	}
}

type Stats struct {
	TotalOrders    int            `json:"totalOrders"`
	TotalRevenue   float64        `json:"totalRevenue"`
	TotalProducts  int            `json:"totalProducts"`
	TotalUsers     int            `json:"totalUsers"`
	OrdersByStatus map[string]int `json:"ordersByStatus"`
}

func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	totals, err := s.orders.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load order totals: %w", err)
	}
	productCount, err := s.products.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	userCount, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	orders, err := s.orders.ListAll(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	byStatus := make(map[string]int)
	for _, order := range orders {
		byStatus[string(order.Status)]++
	}

	return &Stats{
		TotalOrders:    totals.Count,
		TotalRevenue:   totals.Revenue,
		TotalProducts:  productCount,
		TotalUsers:     userCount,
		OrdersByStatus: byStatus,
	}, nil
}

type MonthRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

type TopProduct struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Revenue     float64 `json:"revenue"`
}

type Analytics struct {
	OrdersLast30Days  int            `json:"ordersLast30Days"`
	OrdersPrev30Days  int            `json:"ordersPrev30Days"`
	RevenueLast30Days float64        `json:"revenueLast30Days"`
	RevenuePrev30Days float64        `json:"revenuePrev30Days"`
	MonthlyRevenue    []MonthRevenue `json:"monthlyRevenue"`
	TopProducts       []TopProduct   `json:"topProducts"`
}

// Analytics builds the dashboard trend view: a 30-day order and revenue
// window against the previous one, six months of revenue, and the
// best-selling products. Cancelled orders are excluded from all of it.
func (s *AdminService) Analytics(ctx context.Context) (*Analytics, error) {
	cacheKey := cache.AnalyticsKey("dashboard")
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached Analytics
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	now := s.now()
	current, err := s.orders.TotalsBetween(ctx, now.Add(-analyticsWindowLen), now)
	if err != nil {
		return nil, fmt.Errorf("failed to load current window: %w", err)
	}
	previous, err := s.orders.TotalsBetween(ctx, now.Add(-2*analyticsWindowLen), now.Add(-analyticsWindowLen))
	if err != nil {
		return nil, fmt.Errorf("failed to load previous window: %w", err)
	}

	orders, err := s.orders.ListAll(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	analytics := &Analytics{
		OrdersLast30Days:  current.Count,
		OrdersPrev30Days:  previous.Count,
		RevenueLast30Days: current.Revenue,
		RevenuePrev30Days: previous.Revenue,
		MonthlyRevenue:    monthlyRevenue(orders, now),
		TopProducts:       topProducts(orders, analyticsTopLimit),
	}

	if s.cache != nil {
		if raw, err := json.Marshal(analytics); err == nil {
			if err := s.cache.Set(ctx, cacheKey, string(raw), analyticsCacheTTL); err != nil {
				logging.FromContext(ctx, s.logger).Warn("failed to cache analytics", "error", err)
			}
		}
	}
	return analytics, nil
}

func monthlyRevenue(orders []*models.Order, now time.Time) []MonthRevenue {
	months := make([]MonthRevenue, analyticsMonths)
	index := make(map[string]int, analyticsMonths)
	for i := 0; i < analyticsMonths; i++ {
		m := now.AddDate(0, i-(analyticsMonths-1), 0)
		key := m.Format("2006-01")
		months[i] = MonthRevenue{Month: key}
		index[key] = i
	}

	for _, order := range orders {
		if order.Status == models.StatusCancelled {
			continue
		}
		i, ok := index[order.CreatedAt.Format("2006-01")]
		if !ok {
			continue
		}
		months[i].Revenue += order.Total
		months[i].Orders++
	}
	return months
}

func topProducts(orders []*models.Order, limit int) []TopProduct {
	byProduct := make(map[string]*TopProduct)
	for _, order := range orders {
		if order.Status == models.StatusCancelled {
			continue
		}
		for _, item := range order.Items {
			top, ok := byProduct[item.ProductID]
			if !ok {
				top = &TopProduct{ProductID: item.ProductID, ProductName: item.ProductName}
				byProduct[item.ProductID] = top
			}
			top.Quantity += item.Quantity
			top.Revenue += item.Price * float64(item.Quantity)
		}
	}

	out := make([]TopProduct, 0, len(byProduct))
	for _, top := range byProduct {
		out = append(out, *top)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
