package handler

import (
	"net/http"

	"petshop/internal/model"
	"petshop/internal/service"

	"github.com/rs/zerolog"
)

// LoyaltyHandler serves the points ledger.
type LoyaltyHandler struct {
	service service.LoyaltyService
	logger  zerolog.Logger
}

// NewLoyaltyHandler creates a new loyalty handler.
func NewLoyaltyHandler(service service.LoyaltyService, logger zerolog.Logger) *LoyaltyHandler {
	return &LoyaltyHandler{
		service: service,
		logger:  logger.With().Str("handler", "loyalty").Logger(),
	}
}

// GetAccount handles GET /api/loyalty.
func (h *LoyaltyHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	account, err := h.service.GetAccount(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ListTransactions handles GET /api/loyalty/transactions.
func (h *LoyaltyHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
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

	txs, err := h.service.ListTransactions(r.Context(), a.ID, limit, offset)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// Redeem handles POST /api/loyalty/redeem.
func (h *LoyaltyHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.RedeemRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	account, err := h.service.Redeem(r.Context(), a.ID, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Bonus handles POST /api/loyalty/bonus.
func (h *LoyaltyHandler) Bonus(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	var req model.BonusRequest
	if err := decode(r, &req, false); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	account, err := h.service.Bonus(r.Context(), a, &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
