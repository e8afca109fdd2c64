package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackmartapp/stackmart/internal/config"
	"github.com/stackmartapp/stackmart/internal/db"
	"github.com/stackmartapp/stackmart/internal/logging"
	"github.com/stackmartapp/stackmart/internal/models"
	"github.com/stackmartapp/stackmart/internal/services"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// cartStore is the slice of the cart store the handlers need.
type cartStore interface {
	List(ctx context.Context, key db.CartKey) ([]*models.CartItem, error)
	Add(ctx context.Context, key db.CartKey, productID string, quantity int) (*models.CartItem, error)
	Remove(ctx context.Context, key db.CartKey, itemID uuid.UUID) error
	Clear(ctx context.Context, key db.CartKey) error
}

// Handlers provides the HTTP request handlers for the storefront API.
type Handlers struct {
	config         *config.Config
	db             *pgxpool.Pool
	cartStore      cartStore
	catalogService *services.CatalogService
	orderService   *services.OrderService
	ratingService  *services.RatingService
	authService    *services.AuthService
	adminService   *services.AdminService
	logger         *slog.Logger
}

type Dependencies struct {
	Config         *config.Config
	DB             *pgxpool.Pool
	CartStore      cartStore
	CatalogService *services.CatalogService
	OrderService   *services.OrderService
	RatingService  *services.RatingService
	AuthService    *services.AuthService
	AdminService   *services.AdminService
	Logger         *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.CartStore == nil {
		return nil, fmt.Errorf("handlers dependencies: cartStore is required")
	}
	if deps.CatalogService == nil {
		return nil, fmt.Errorf("handlers dependencies: catalogService is required")
	}
	if deps.OrderService == nil {
		return nil, fmt.Errorf("handlers dependencies: orderService is required")
	}
	if deps.RatingService == nil {
		return nil, fmt.Errorf("handlers dependencies: ratingService is required")
	}
	if deps.AuthService == nil {
		return nil, fmt.Errorf("handlers dependencies: authService is required")
	}
	if deps.AdminService == nil {
		return nil, fmt.Errorf("handlers dependencies: adminService is required")
	}

	return &Handlers{
		config:         deps.Config,
		db:             deps.DB,
		cartStore:      deps.CartStore,
		catalogService: deps.CatalogService,
		orderService:   deps.OrderService,
		ratingService:  deps.RatingService,
		authService:    deps.AuthService,
		adminService:   deps.AdminService,
		logger:         logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			logger.Error("database health check failed", "error", err)
			http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

// decodeJSON reads a bounded JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
