package handler

import (
	"net/http"

	"petshop/internal/model"
	"petshop/internal/service"

	"github.com/rs/zerolog"
)

// PaymentHandler serves intents, payments, refunds and stored instruments.
type PaymentHandler struct {
	payments service.PaymentService
	refunds  service.RefundService
	logger   zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(payments service.PaymentService, refunds service.RefundService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		refunds:  refunds,
		logger:   logger.With().Str("handler", "payment").Logger(),
	}
}

// CreateIntent handles POST /api/payments/intents.
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.CreateIntentRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	intent, err := h.payments.CreateIntent(r.Context(), a.ID, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// GetIntent handles GET /api/payments/intents/{id}.
func (h *PaymentHandler) GetIntent(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	intent, err := h.payments.GetIntent(r.Context(), a, id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

// ConfirmIntent handles POST /api/payments/intents/{id}/confirm.
func (h *PaymentHandler) ConfirmIntent(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.ConfirmIntentRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	payment, err := h.payments.Confirm(r.Context(), a.ID, id, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// CancelIntent handles POST /api/payments/intents/{id}/cancel.
func (h *PaymentHandler) CancelIntent(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	intent, err := h.payments.CancelIntent(r.Context(), a, id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

// GetPayment handles GET /api/payments/{id}.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	payment, err := h.payments.GetPayment(r.Context(), a, id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// Settle handles POST /api/payments/{id}/settle, the manual counterpart of
// the settlement consumer.
func (h *PaymentHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.SettlementRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	req.PaymentID = id

	payment, err := h.payments.Settle(r.Context(), req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// Refund handles POST /api/payments/{id}/refund. The refund settles
// asynchronously, hence 202.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.RefundRequest
	if err := decode(r, &req, true); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	refund, err := h.refunds.Refund(r.Context(), a, id, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, refund)
}

// ListRefunds handles GET /api/payments/{id}/refunds.
func (h *PaymentHandler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	refunds, err := h.refunds.ListRefunds(r.Context(), a, id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, refunds)
}

// AddInstrument handles POST /api/payments/instruments.
func (h *PaymentHandler) AddInstrument(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.AddInstrumentRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	instrument, err := h.payments.AddInstrument(r.Context(), a.ID, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, instrument)
}

// ListInstruments handles GET /api/payments/instruments.
func (h *PaymentHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	instruments, err := h.payments.ListInstruments(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, instruments)
}

// DeactivateInstrument handles DELETE /api/payments/instruments/{id}.
func (h *PaymentHandler) DeactivateInstrument(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.payments.DeactivateInstrument(r.Context(), a.ID, id); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
