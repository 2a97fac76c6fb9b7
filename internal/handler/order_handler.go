package handler

import (
	"net/http"

	"petshop/internal/model"
	"petshop/internal/service"

	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders requests.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.OrderRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), a.ID, &req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// Checkout handles POST /api/cart/checkout.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.CheckoutRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.Checkout(r.Context(), a.ID, &req, r.Header.Get(IdempotencyHeader))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// List handles GET /api/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	orders, err := h.service.ListOrders(r.Context(), a.ID, limit, offset)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	orderID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.GetOrder(r.Context(), a, orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Cancel handles POST /api/orders/{id}/cancel. The body is optional.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	orderID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.CancelOrderRequest
	if err := decode(r, &req, true); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.CancelOrder(r.Context(), a, orderID, req.Reason)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Advance handles POST /api/orders/{id}/status.
func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	orderID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.AdvanceOrderRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	order, err := h.service.AdvanceOrder(r.Context(), a, orderID, req.Status)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// Tracking handles GET /api/orders/{id}/tracking.
func (h *OrderHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	orderID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	tracking, err := h.service.GetTracking(r.Context(), a, orderID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, tracking)
}
