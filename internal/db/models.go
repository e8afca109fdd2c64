package db

import "github.com/stackmartapp/stackmart/internal/models"

type Order = models.Order
type OrderStatus = models.OrderStatus
type LineItem = models.LineItem
type Product = models.Product
type CartItem = models.CartItem
type User = models.User
type Rating = models.Rating

const (
	StatusPendingPayment  = models.StatusPendingPayment
	StatusProcessing      = models.StatusProcessing
	StatusDelivered       = models.StatusDelivered
	StatusReceived        = models.StatusReceived
	StatusRefundRequested = models.StatusRefundRequested
	StatusRefunded        = models.StatusRefunded
	StatusCompleted       = models.StatusCompleted
	StatusCancelled       = models.StatusCancelled
)
