package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/stackmartapp/stackmart/internal/config"
	"github.com/stackmartapp/stackmart/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.Identity)

	api.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	// Catalog
	api.HandleFunc("/products", h.ListProducts).Methods("GET").Name("products.list")
	api.HandleFunc("/products/{id}", h.GetProduct).Methods("GET").Name("products.get")
	api.HandleFunc("/products/{id}/ratings", h.ListProductRatings).Methods("GET").Name("products.ratings")
	api.HandleFunc("/categories", h.ListCategories).Methods("GET").Name("categories")
	api.HandleFunc("/brands", h.ListBrands).Methods("GET").Name("brands")

	// Cart - works for guests via the session header
	api.HandleFunc("/cart", h.GetCart).Methods("GET").Name("cart.get")
	api.HandleFunc("/cart", h.ClearCart).Methods("DELETE").Name("cart.clear")
	api.HandleFunc("/cart/add", h.AddToCart).Methods("POST").Name("cart.add")
	api.HandleFunc("/cart/remove", h.RemoveFromCart).Methods("POST").Name("cart.remove")

	// Auth
	api.HandleFunc("/auth/register", h.Register).Methods("POST").Name("auth.register")
	api.HandleFunc("/auth/login", h.Login).Methods("POST").Name("auth.login")

	// Orders
	api.HandleFunc("/checkout", h.Checkout).Methods("POST").Name("checkout")
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET").Name("orders.get")

	authed := api.NewRoute().Subrouter()
	authed.Use(h.RequireAuth)
	authed.HandleFunc("/auth/me", h.Me).Methods("GET").Name("auth.me")
	authed.HandleFunc("/user/orders", h.ListUserOrders).Methods("GET").Name("user.orders")
	authed.HandleFunc("/orders/{id}/confirm-receipt", h.ConfirmReceipt).Methods("POST").Name("orders.confirm_receipt")
	authed.HandleFunc("/orders/{id}/cancel", h.CancelOrder).Methods("POST").Name("orders.cancel")
	authed.HandleFunc("/orders/{id}/request-refund", h.RequestRefund).Methods("POST").Name("orders.request_refund")
	authed.HandleFunc("/orders/{id}/confirm-refund", h.ConfirmRefund).Methods("POST").Name("orders.confirm_refund")
	authed.HandleFunc("/orders/{id}/ratings", h.RateOrder).Methods("POST").Name("orders.rate")

	admin := api.NewRoute().Subrouter()
	admin.Use(h.RequireAdmin)
	admin.HandleFunc("/orders", h.AdminListOrders).Methods("GET").Name("admin.orders.list")
	admin.HandleFunc("/orders/{id}/confirm-payment", h.AdminConfirmPayment).Methods("POST").Name("admin.orders.confirm_payment")
	admin.HandleFunc("/orders/{id}/refund", h.AdminRefundOrder).Methods("POST").Name("admin.orders.refund")
	admin.HandleFunc("/orders/{id}/status", h.AdminSetOrderStatus).Methods("PUT").Name("admin.orders.status")
	admin.HandleFunc("/orders/{id}", h.AdminDeleteOrder).Methods("DELETE").Name("admin.orders.delete")
	admin.HandleFunc("/admin/stats", h.AdminStats).Methods("GET").Name("admin.stats")
	admin.HandleFunc("/admin/analytics", h.AdminAnalytics).Methods("GET").Name("admin.analytics")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"route not found"}}`))
	})

	return r
}
