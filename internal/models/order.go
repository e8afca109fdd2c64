package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPendingPayment  OrderStatus = "pending_payment"
	StatusProcessing      OrderStatus = "processing"
	StatusDelivered       OrderStatus = "delivered"
	StatusReceived        OrderStatus = "received"
	StatusRefundRequested OrderStatus = "refund_requested"
	StatusRefunded        OrderStatus = "refunded"
	StatusCompleted       OrderStatus = "completed"
	StatusCancelled       OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentOnline
}

// transitions is the full set of legal status edges. Anything not listed
// here is rejected; cancelled and completed have no outgoing edges.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment:  {StatusProcessing, StatusCancelled},
	StatusProcessing:      {StatusDelivered, StatusCancelled},
	StatusDelivered:       {StatusReceived},
	StatusReceived:        {StatusRefundRequested, StatusRefunded},
	StatusRefundRequested: {StatusRefunded},
	StatusRefunded:        {StatusCompleted},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusProcessing, StatusDelivered, StatusReceived,
		StatusRefundRequested, StatusRefunded, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the edge s -> next is legal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist out of s.
func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

type ShippingAddress struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// LineItem is a snapshot of a product at purchase time. Later edits to the
// product never alter order history.
type LineItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Category    string  `json:"category,omitempty"`
}

type Order struct {
	ID     uuid.UUID  `json:"id"`
	UserID *uuid.UUID `json:"userId"`
	// SessionID ties a guest order to the anonymous session that placed
	// it. Never serialized; it is the read credential for guest orders.
	SessionID       string          `json:"-"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail"`
	CustomerPhone   string          `json:"customerPhone"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Items           []LineItem      `json:"items"`
	Total           float64         `json:"total"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Status          OrderStatus     `json:"status"`
	RefundReason    string          `json:"refundReason,omitempty"`
	RefundAmount    *float64        `json:"refundAmount,omitempty"`
	RefundedAt      *time.Time      `json:"refundedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	ReceivedAt      *time.Time      `json:"receivedAt,omitempty"`
}

// ItemTotal is the sum of price * quantity across line items, rounded to
// cents.
func (o *Order) ItemTotal() float64 {
	var cents int64
	for _, item := range o.Items {
		cents += int64(item.Price*100+0.5) * int64(item.Quantity)
	}
	return float64(cents) / 100
}
