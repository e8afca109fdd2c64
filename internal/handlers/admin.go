package handlers

import (
	"net/http"
	"strconv"

	"github.com/stackmartapp/stackmart/internal/models"
)

const defaultAdminOrderLimit = 200

func (h *Handlers) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultAdminOrderLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.respondBadRequest(w, r, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	orders, err := h.orderService.ListAll(r.Context(), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	h.respondJSON(w, r, http.StatusOK, orders)
}

func (h *Handlers) AdminConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.orderService.ConfirmPayment(r.Context(), orderID); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondUpdatedOrder(w, r, orderID)
}

type adminRefundRequest struct {
	Amount *float64 `json:"amount"`
}

func (h *Handlers) AdminRefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	var req adminRefundRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.respondBadRequest(w, r, err.Error())
			return
		}
	}

	if err := h.orderService.Refund(r.Context(), orderID, req.Amount); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondUpdatedOrder(w, r, orderID)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) AdminSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondBadRequest(w, r, err.Error())
		return
	}

	if err := h.orderService.SetStatus(r.Context(), orderID, models.OrderStatus(req.Status)); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondUpdatedOrder(w, r, orderID)
}

func (h *Handlers) AdminDeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.orderService.Delete(r.Context(), orderID); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Stats(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, stats)
}

func (h *Handlers) AdminAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.adminService.Analytics(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, analytics)
}
