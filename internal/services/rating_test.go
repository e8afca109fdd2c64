package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/stackmartapp/stackmart/internal/models"
)

type fakeRatingStore struct {
	byKey map[string]*models.Rating
}

func newFakeRatingStore() *fakeRatingStore {
	return &fakeRatingStore{byKey: make(map[string]*models.Rating)}
}

func ratingKey(r *models.Rating) string {
	return r.UserID.String() + "/" + r.OrderID.String() + "/" + r.ProductID
}

func (f *fakeRatingStore) Upsert(_ context.Context, rating *models.Rating) error {
	f.byKey[ratingKey(rating)] = rating
	return nil
}

func (f *fakeRatingStore) ListByProduct(_ context.Context, productID string) ([]*models.Rating, error) {
	var out []*models.Rating
	for _, r := range f.byKey {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRatingStore) ListByOrder(_ context.Context, orderID uuid.UUID) ([]*models.Rating, error) {
	var out []*models.Rating
	for _, r := range f.byKey {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeProductUpdater struct {
	refreshed []string
}

func (f *fakeProductUpdater) UpdateRating(_ context.Context, productID string) error {
	f.refreshed = append(f.refreshed, productID)
	return nil
}

func newRatingFixture(status models.OrderStatus) (*RatingService, *fakeRatingStore, *fakeProductUpdater, Identity, *models.Order) {
	userID := uuid.New()
	order := &models.Order{
		ID:     uuid.New(),
		UserID: &userID,
		Status: status,
		Items: []models.LineItem{
			{ProductID: "p1", ProductName: "Laptop", Quantity: 1, Price: 999.99},
		},
	}
	orders := newFakeOrderStore()
	orders.orders[order.ID] = order

	ratings := newFakeRatingStore()
	products := &fakeProductUpdater{}
	svc := NewRatingService(ratings, orders, products, discardLogger())
	return svc, ratings, products, Identity{UserID: &userID}, order
}

func TestRateReceivedOrder(t *testing.T) {
	t.Parallel()

	svc, ratings, products, identity, order := newRatingFixture(models.StatusReceived)

	rating, err := svc.Rate(context.Background(), identity, RateInput{
		OrderID:   order.ID,
		ProductID: "p1",
		Rating:    5,
		Review:    " great machine ",
	})
	if err != nil {
		t.Fatalf("Rate() error: %v", err)
	}
	if rating.Review != "great machine" {
		t.Fatalf("Review = %q, want trimmed review", rating.Review)
	}
	if len(ratings.byKey) != 1 {
		t.Fatalf("stored ratings = %d, want 1", len(ratings.byKey))
	}
	if len(products.refreshed) != 1 || products.refreshed[0] != "p1" {
		t.Fatalf("refreshed = %v, want [p1]", products.refreshed)
	}
}

func TestRateUpdatesInPlace(t *testing.T) {
	t.Parallel()

	svc, ratings, _, identity, order := newRatingFixture(models.StatusCompleted)

	input := RateInput{OrderID: order.ID, ProductID: "p1", Rating: 2}
	if _, err := svc.Rate(context.Background(), identity, input); err != nil {
		t.Fatalf("first Rate() error: %v", err)
	}
	input.Rating = 4
	if _, err := svc.Rate(context.Background(), identity, input); err != nil {
		t.Fatalf("second Rate() error: %v", err)
	}

	if len(ratings.byKey) != 1 {
		t.Fatalf("stored ratings = %d, want 1 after re-rating", len(ratings.byKey))
	}
	for _, r := range ratings.byKey {
		if r.Rating != 4 {
			t.Fatalf("Rating = %d, want 4", r.Rating)
		}
	}
}

func TestRateGuards(t *testing.T) {
	t.Parallel()

	t.Run("anonymous", func(t *testing.T) {
		t.Parallel()
		svc, _, _, _, order := newRatingFixture(models.StatusReceived)
		_, err := svc.Rate(context.Background(), Identity{}, RateInput{OrderID: order.ID, ProductID: "p1", Rating: 3})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("not the buyer", func(t *testing.T) {
		t.Parallel()
		svc, _, _, _, order := newRatingFixture(models.StatusReceived)
		stranger := uuid.New()
		_, err := svc.Rate(context.Background(), Identity{UserID: &stranger}, RateInput{OrderID: order.ID, ProductID: "p1", Rating: 3})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("order not received yet", func(t *testing.T) {
		t.Parallel()
		svc, _, _, identity, order := newRatingFixture(models.StatusProcessing)
		_, err := svc.Rate(context.Background(), identity, RateInput{OrderID: order.ID, ProductID: "p1", Rating: 3})
		var transition *InvalidTransitionError
		if !errors.As(err, &transition) {
			t.Fatalf("error = %v, want InvalidTransitionError", err)
		}
	})

	t.Run("product not on order", func(t *testing.T) {
		t.Parallel()
		svc, _, _, identity, order := newRatingFixture(models.StatusReceived)
		_, err := svc.Rate(context.Background(), identity, RateInput{OrderID: order.ID, ProductID: "p9", Rating: 3})
		var invalid *InvalidInputError
		if !errors.As(err, &invalid) {
			t.Fatalf("error = %v, want InvalidInputError", err)
		}
	})

	t.Run("score out of range", func(t *testing.T) {
		t.Parallel()
		svc, _, _, identity, order := newRatingFixture(models.StatusReceived)
		for _, score := range []int{0, 6} {
			_, err := svc.Rate(context.Background(), identity, RateInput{OrderID: order.ID, ProductID: "p1", Rating: score})
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("Rate(%d) error = %v, want InvalidInputError", score, err)
			}
		}
	})
}
