package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/stackmartapp/stackmart/internal/logging"
	"github.com/stackmartapp/stackmart/internal/models"
)

type ratingStore interface {
	Upsert(ctx context.Context, rating *models.Rating) error
	ListByProduct(ctx context.Context, productID string) ([]*models.Rating, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Rating, error)
}

type productRatingUpdater interface {
	UpdateRating(ctx context.Context, productID string) error
}

// RatingService records product ratings tied to completed purchases.
type RatingService struct {
	ratings  ratingStore
	orders   orderGetter
	products productRatingUpdater
	logger   *slog.Logger
}

func NewRatingService(ratings ratingStore, orders orderGetter, products productRatingUpdater, logger *slog.Logger) *RatingService {
	return &RatingService{ratings: ratings, orders: orders, products: products, logger: logger}
}

type RateInput struct {
	OrderID   uuid.UUID
	ProductID string
	Rating    int
	Review    string
}

// Rate records a rating for a product the caller bought on the given
// order. Only received or fully closed orders can be rated, and only for
// products actually on them. Re-rating the same product updates in place.
func (s *RatingService) Rate(ctx context.Context, identity Identity, input RateInput) (*models.Rating, error) {
	if identity.UserID == nil {
		return nil, ErrUnauthorized
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, &InvalidInputError{Field: "rating", Reason: "must be between 1 and 5"}
	}

	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != *identity.UserID {
		return nil, ErrForbidden
	}
	if !ratable(order.Status) {
		return nil, &InvalidTransitionError{OrderID: order.ID, Current: order.Status, Requested: models.StatusReceived}
	}
	if !orderContainsProduct(order, input.ProductID) {
		return nil, &InvalidInputError{Field: "productId", Reason: "is not part of this order"}
	}

	rating := &models.Rating{
		ID:        uuid.New(),
		UserID:    *identity.UserID,
		OrderID:   input.OrderID,
		ProductID: input.ProductID,
		Rating:    input.Rating,
		Review:    strings.TrimSpace(input.Review),
	}
	if err := s.ratings.Upsert(ctx, rating); err != nil {
		return nil, fmt.Errorf("failed to save rating: %w", err)
	}

	if err := s.products.UpdateRating(ctx, input.ProductID); err != nil {
		logging.FromContext(ctx, s.logger).Warn("failed to refresh product rating average",
			"product_id", input.ProductID, "error", err)
	}
	return rating, nil
}

func (s *RatingService) ListByProduct(ctx context.Context, productID string) ([]*models.Rating, error) {
	return s.ratings.ListByProduct(ctx, productID)
}

func (s *RatingService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*models.Rating, error) {
	return s.ratings.ListByOrder(ctx, orderID)
}

// ratable: the customer has the goods, or had them before the order closed
// out through refund.
func ratable(status models.OrderStatus) bool {
	switch status {
	case models.StatusReceived, models.StatusRefundRequested, models.StatusRefunded, models.StatusCompleted:
		return true
	}
	return false
}

func orderContainsProduct(order *models.Order, productID string) bool {
	for _, item := range order.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}
