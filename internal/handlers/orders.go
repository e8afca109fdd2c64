package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/stackmartapp/stackmart/internal/models"
	"github.com/stackmartapp/stackmart/internal/services"
)

type checkoutRequest struct {
	CustomerName    string                 `json:"customerName"`
	CustomerEmail   string                 `json:"customerEmail"`
	CustomerPhone   string                 `json:"customerPhone"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	Total           float64                `json:"total"`
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondBadRequest(w, r, err.Error())
		return
	}

	order, err := h.orderService.Checkout(r.Context(), services.CheckoutInput{
		Identity:        identityFromContext(r.Context()),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Total:           req.Total,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, order)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	order, err := h.orderService.GetForViewer(r.Context(), orderID, identityFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity.UserID == nil {
		h.respondErrorCode(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	orders, err := h.orderService.ListForUser(r.Context(), *identity.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	h.respondJSON(w, r, http.StatusOK, orders)
}

func (h *Handlers) ConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	h.ownerTransition(w, r, h.orderService.ConfirmReceipt)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.ownerTransition(w, r, h.orderService.Cancel)
}

func (h *Handlers) ConfirmRefund(w http.ResponseWriter, r *http.Request) {
	h.ownerTransition(w, r, h.orderService.ConfirmRefund)
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) RequestRefund(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	var req refundRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.respondBadRequest(w, r, err.Error())
			return
		}
	}

	if err := h.orderService.RequestRefund(r.Context(), orderID, identityFromContext(r.Context()), req.Reason); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondUpdatedOrder(w, r, orderID)
}

type rateOrderRequest struct {
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Review    string `json:"review"`
}

func (h *Handlers) RateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	var req rateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondBadRequest(w, r, err.Error())
		return
	}

	rating, err := h.ratingService.Rate(r.Context(), identityFromContext(r.Context()), services.RateInput{
		OrderID:   orderID,
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Review:    req.Review,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, rating)
}

// ownerTransition runs a customer-side status change and echoes the
// updated order back.
func (h *Handlers) ownerTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID uuid.UUID, identity services.Identity) error) {
	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := fn(r.Context(), orderID, identityFromContext(r.Context())); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondUpdatedOrder(w, r, orderID)
}

func (h *Handlers) respondUpdatedOrder(w http.ResponseWriter, r *http.Request, orderID uuid.UUID) {
	order, err := h.orderService.Get(r.Context(), orderID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, order)
}

func (h *Handlers) orderIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondBadRequest(w, r, "order id must be a UUID")
		return uuid.Nil, false
	}
	return orderID, true
}
