package handlers

import (
	"net/http"

	"github.com/stackmartapp/stackmart/internal/models"
	"github.com/stackmartapp/stackmart/internal/services"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondBadRequest(w, r, err.Error())
		return
	}

	session, err := h.authService.Register(r.Context(), services.Credentials{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, sessionResponse{Token: session.Token, User: session.User})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondBadRequest(w, r, err.Error())
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, sessionResponse{Token: session.Token, User: session.User})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity.UserID == nil {
		h.respondErrorCode(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	user, err := h.authService.Me(r.Context(), *identity.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, user)
}
