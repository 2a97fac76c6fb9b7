package handler

import (
	"net/http"

	"petshop/internal/model"
	"petshop/internal/service"

	"github.com/rs/zerolog"
)

// CartHandler serves the caller's cart.
type CartHandler struct {
	service service.CartService
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// Get handles GET /api/cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.Get(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// AddItem handles POST /api/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.AddItemRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.AddItem(r.Context(), a.ID, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, cart)
}

// UpdateItem handles PATCH /api/cart/items/{itemId}.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	itemID, err := pathUUID(r, "itemId")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.UpdateItemRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.UpdateItem(r.Context(), a.ID, itemID, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// RemoveItem handles DELETE /api/cart/items/{itemId}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	itemID, err := pathUUID(r, "itemId")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), a.ID, itemID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// Clear handles DELETE /api/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.service.Clear(r.Context(), a.ID); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyCoupon handles POST /api/cart/coupon.
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.ApplyCouponRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	if req.Code == "" {
		writeError(w, r, model.NewValidationError("code is required"), h.logger)
		return
	}

	preview, err := h.service.ApplyCoupon(r.Context(), a.ID, req.Code)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// RemoveCoupon handles DELETE /api/cart/coupon.
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.RemoveCoupon(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
