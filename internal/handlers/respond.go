package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stackmartapp/stackmart/internal/db"
	"github.com/stackmartapp/stackmart/internal/services"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (h *Handlers) respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.respondJSON(w, r, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// respondError maps domain errors onto the API's stable error codes.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidInput *services.InvalidInputError
		transition   *services.InvalidTransitionError
		outOfStock   *db.OutOfStockError
	)

	switch {
	case errors.As(err, &invalidInput):
		h.respondErrorCode(w, r, http.StatusBadRequest, "invalid_input", invalidInput.Error())
	case errors.Is(err, services.ErrInvalidTotal):
		h.respondErrorCode(w, r, http.StatusBadRequest, "invalid_total", "order total does not match cart")
	case errors.Is(err, services.ErrEmptyCart):
		h.respondErrorCode(w, r, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.As(err, &outOfStock):
		h.respondErrorCode(w, r, http.StatusConflict, "out_of_stock", outOfStock.Error())
	case errors.As(err, &transition):
		h.respondErrorCode(w, r, http.StatusConflict, "invalid_transition", transition.Error())
	case errors.Is(err, db.ErrInvalidStatusTransition):
		h.respondErrorCode(w, r, http.StatusConflict, "invalid_transition", "status change not allowed")
	case errors.Is(err, db.ErrNotFound):
		h.respondErrorCode(w, r, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, services.ErrForbidden):
		h.respondErrorCode(w, r, http.StatusForbidden, "forbidden", "you may not act on this resource")
	case errors.Is(err, services.ErrUnauthorized):
		h.respondErrorCode(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
	default:
		h.loggerFromContext(r.Context()).Error("request failed", "error", err)
		h.respondErrorCode(w, r, http.StatusInternalServerError, "persistence_failure", "something went wrong")
	}
}

func (h *Handlers) respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	h.respondErrorCode(w, r, http.StatusBadRequest, "invalid_input", message)
}
