package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/category"
)

type CategoryHandler struct {
	cache   *category.Cache
	timeout time.Duration
}

func NewCategoryHandler(cache *category.Cache, timeout time.Duration) *CategoryHandler {
	return &CategoryHandler{cache: cache, timeout: timeout}
}

func (h *CategoryHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	forest, err := h.cache.Forest(ctx)
	if err != nil {
		respondError(w, http.StatusBadGateway, "catalog_error", "failed to load categories")
		return
	}

	respondJSON(w, http.StatusOK, forest)
}
