package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/domain"
)

type CartHandler struct {
	manager *cart.Manager
	catalog cart.Catalog
	timeout time.Duration
}

func NewCartHandler(manager *cart.Manager, catalog cart.Catalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		manager: manager,
		catalog: catalog,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	VariantID int64 `json:"variant_id,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartLineDTO struct {
	Key      string               `json:"key"`
	Quantity int                  `json:"quantity"`
	Snapshot *domain.LineSnapshot `json:"snapshot,omitempty"`
}

type CartResponseDTO struct {
	Items []CartLineDTO `json:"items"`
	Count int           `json:"count"`
	Total string        `json:"total"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := sessionIDFromContext(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing session")
		return
	}

	store := h.manager.Store(ctx, sessionID)
	respondJSON(w, http.StatusOK, cartResponse(store))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := sessionIDFromContext(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing session")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.VariantID < 0 {
		respondError(w, http.StatusBadRequest, "invalid_variant_id", "variant_id must not be negative")
		return
	}

	prodSnap, variantSnap, err := h.lookupSnapshots(ctx, req.ProductID, req.VariantID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		respondError(w, http.StatusBadGateway, "catalog_error", "catalog lookup failed")
		return
	}

	store := h.manager.Store(ctx, sessionID)
	if err := store.AddLine(ctx, req.ProductID, req.VariantID, prodSnap, variantSnap); err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cartResponse(store))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := sessionIDFromContext(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing session")
		return
	}

	key, err := domain.ParseLineKey(chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_key", "malformed line key")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	store := h.manager.Store(ctx, sessionID)
	if err := store.SetQuantity(ctx, key.ProductID, key.VariantID, req.Quantity); err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(store))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := sessionIDFromContext(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing session")
		return
	}

	key, err := domain.ParseLineKey(chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_key", "malformed line key")
		return
	}

	store := h.manager.Store(ctx, sessionID)
	if err := store.SetQuantity(ctx, key.ProductID, key.VariantID, 0); err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(store))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := sessionIDFromContext(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing session")
		return
	}

	store := h.manager.Store(ctx, sessionID)
	if err := store.Clear(ctx); err != nil {
		respondError(w, http.StatusInternalServerError, "clear_failed", "failed to clear cart")
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(store))
}

// lookupSnapshots resolves the snapshot data AddLine caches. An unknown
// product yields a nil product snapshot, which the store rejects as
// unavailable.
func (h *CartHandler) lookupSnapshots(ctx context.Context, productID, variantID int64) (*domain.ProductSnapshot, *domain.VariantSnapshot, error) {
	prod, err := h.catalog.FetchProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	prodSnap := prod.Snapshot()

	if variantID == 0 {
		return &prodSnap, nil, nil
	}

	variant, err := h.catalog.FetchVariant(ctx, productID, variantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Unknown variant: let validation handle the product alone.
			return &prodSnap, nil, nil
		}
		return nil, nil, err
	}
	variantSnap := variant.Snapshot()
	return &prodSnap, &variantSnap, nil
}

func cartResponse(store *cart.Store) CartResponseDTO {
	lines := store.Lines()
	items := make([]CartLineDTO, 0, len(lines))
	for _, line := range lines {
		dto := CartLineDTO{Key: line.Key.String(), Quantity: line.Quantity}
		if snap, ok := store.SnapshotFor(line.Key); ok {
			dto.Snapshot = &snap
		}
		items = append(items, dto)
	}
	return CartResponseDTO{
		Items: items,
		Count: store.Count(),
		Total: store.Total().StringFixed(2),
	}
}

func handleCartError(w http.ResponseWriter, err error) {
	var rejection *cart.RejectionError
	if errors.As(err, &rejection) {
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "rejected",
			Code:    rejectionCode(rejection),
			Details: rejection.Message,
		})
		return
	}
	respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
}

func rejectionCode(rejection *cart.RejectionError) string {
	switch {
	case errors.Is(rejection, cart.ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(rejection, cart.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(rejection, cart.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(rejection, cart.ErrVariantRequired):
		return "variant_required"
	default:
		return "rejected"
	}
}
