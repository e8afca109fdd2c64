package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl"`
	Rating      float64   `json:"rating"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CartItem belongs to either an authenticated user or an anonymous
// session, never both.
type CartItem struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"userId"`
	SessionID string     `json:"sessionId,omitempty"`
	ProductID string     `json:"productId"`
	Quantity  int        `json:"quantity"`
}
