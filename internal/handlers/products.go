package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stackmartapp/stackmart/internal/services"
)

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := services.ProductFilter{
		Category: query.Get("category"),
		Brand:    query.Get("brand"),
		Search:   query.Get("search"),
	}

	products, err := h.catalogService.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalogService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, product)
}

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.Categories(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, categories)
}

func (h *Handlers) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.catalogService.Brands(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, brands)
}

func (h *Handlers) ListProductRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.ratingService.ListByProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, ratings)
}
