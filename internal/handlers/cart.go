package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/stackmartapp/stackmart/internal/models"
)

type cartEntry struct {
	ID       uuid.UUID       `json:"id"`
	Quantity int             `json:"quantity"`
	Product  *models.Product `json:"product"`
}

type cartView struct {
	Items []cartEntry `json:"items"`
	Total float64     `json:"total"`
}

// GetCart returns the caller's cart with product details and a running
// total. Guests are keyed by the session header, users by their account.
func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	key := identity.CartKey()
	if key.Empty() {
		h.respondJSON(w, r, http.StatusOK, cartView{Items: []cartEntry{}})
		return
	}

	items, err := h.cartStore.List(r.Context(), key)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	view := cartView{Items: make([]cartEntry, 0, len(items))}
	for _, item := range items {
		product, err := h.catalogService.Get(r.Context(), item.ProductID)
		if err != nil {
			// A product removed from the catalog drops out of the cart view.
			h.loggerFromContext(r.Context()).Warn("cart references missing product",
				"product_id", item.ProductID, "error", err)
			continue
		}
		view.Items = append(view.Items, cartEntry{ID: item.ID, Quantity: item.Quantity, Product: product})
		view.Total += product.Price * float64(item.Quantity)
	}
	h.respondJSON(w, r, http.StatusOK, view)
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	key := identity.CartKey()
	if key.Empty() {
		h.respondBadRequest(w, r, "a session header or login is required")
		return
	}

	var req addToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondBadRequest(w, r, err.Error())
		return
	}
	if req.ProductID == "" {
		h.respondBadRequest(w, r, "productId is required")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	// Reject unknown products before touching the cart.
	if _, err := h.catalogService.Get(r.Context(), req.ProductID); err != nil {
		h.respondError(w, r, err)
		return
	}

	item, err := h.cartStore.Add(r.Context(), key, req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, item)
}

type removeFromCartRequest struct {
	ItemID uuid.UUID `json:"itemId"`
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	key := identity.CartKey()
	if key.Empty() {
		h.respondBadRequest(w, r, "a session header or login is required")
		return
	}

	var req removeFromCartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondBadRequest(w, r, err.Error())
		return
	}
	if req.ItemID == uuid.Nil {
		h.respondBadRequest(w, r, "itemId is required")
		return
	}

	if err := h.cartStore.Remove(r.Context(), key, req.ItemID); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	key := identity.CartKey()
	if key.Empty() {
		h.respondBadRequest(w, r, "a session header or login is required")
		return
	}

	if err := h.cartStore.Clear(r.Context(), key); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "cleared"})
}
