package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating is one customer's score for one product on one order. The
// (user, order, product) tuple is unique; resubmitting updates in place.
type Rating struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	OrderID   uuid.UUID `json:"orderId"`
	ProductID string    `json:"productId"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
