package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"petshop/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPaymentHandler_ConfirmIntent(t *testing.T) {
	intentID := uuid.New()
	instrumentID := uuid.New()

	tests := []struct {
		name           string
		mockReturn     *model.Payment
		mockError      error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Approved",
			mockReturn:     &model.Payment{ID: uuid.New(), IntentID: intentID, Status: model.PaymentCompleted, Amount: decimal.RequireFromString("174.80")},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Intent expired",
			mockError:      model.ErrIntentExpired,
			expectedStatus: http.StatusGone,
			expectedCode:   model.ErrCodeIntentExpired,
		},
		{
			name:           "Someone else's intent",
			mockError:      model.ErrForbidden,
			expectedStatus: http.StatusForbidden,
			expectedCode:   model.ErrCodeForbidden,
		},
		{
			name:           "Already confirmed",
			mockError:      model.ErrInvalidIntentStatus,
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeInvalidIntentStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockPaymentService)
			svc.On("Confirm", mock.Anything, "user-1", intentID, mock.MatchedBy(func(req *model.ConfirmIntentRequest) bool {
				return req.InstrumentID == instrumentID && req.Installments == 3
			})).Return(tt.mockReturn, tt.mockError)
			h := NewPaymentHandler(svc, new(MockRefundService), zerolog.Nop())

			body := `{"instrumentId": "` + instrumentID.String() + `", "installments": 3}`
			w := serve(http.MethodPost, "/api/payments/intents/{id}/confirm", "/api/payments/intents/"+intentID.String()+"/confirm", body, &customer, h.ConfirmIntent)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				var resp model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedCode, resp.Error)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_Settle_UsesPathID(t *testing.T) {
	paymentID := uuid.New()
	svc := new(MockPaymentService)
	svc.On("Settle", mock.Anything, model.SettlementRequest{PaymentID: paymentID, Success: false, Reason: "boleto vencido"}).
		Return(&model.Payment{ID: paymentID, Status: model.PaymentFailed}, nil)
	h := NewPaymentHandler(svc, new(MockRefundService), zerolog.Nop())

	w := serve(http.MethodPost, "/api/payments/{id}/settle", "/api/payments/"+paymentID.String()+"/settle",
		`{"success": false, "reason": "boleto vencido"}`, &admin, h.Settle)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestPaymentHandler_Refund(t *testing.T) {
	paymentID := uuid.New()

	tests := []struct {
		name           string
		body           string
		matches        func(*model.RefundRequest) bool
		mockError      error
		expectedStatus int
	}{
		{
			name:           "Full refund without body",
			matches:        func(req *model.RefundRequest) bool { return req.Amount == nil },
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "Partial refund",
			body:           `{"amount": "50.00", "reason": "item danificado"}`,
			matches:        func(req *model.RefundRequest) bool { return req.Amount != nil && req.Amount.Equal(decimal.RequireFromString("50")) },
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "Exceeds balance",
			body:           `{"amount": "999.00"}`,
			matches:        func(req *model.RefundRequest) bool { return true },
			mockError:      model.ErrInvalidRefundAmount,
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refunds := new(MockRefundService)
			var ret *model.Refund
			if tt.mockError == nil {
				ret = &model.Refund{ID: uuid.New(), PaymentID: paymentID, Status: model.RefundPending}
			}
			refunds.On("Refund", mock.Anything, customer, paymentID, mock.MatchedBy(tt.matches)).Return(ret, tt.mockError)
			h := NewPaymentHandler(new(MockPaymentService), refunds, zerolog.Nop())

			w := serve(http.MethodPost, "/api/payments/{id}/refund", "/api/payments/"+paymentID.String()+"/refund", tt.body, &customer, h.Refund)

			assert.Equal(t, tt.expectedStatus, w.Code)
			refunds.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_Instruments(t *testing.T) {
	instrumentID := uuid.New()
	svc := new(MockPaymentService)
	svc.On("AddInstrument", mock.Anything, "user-1", &model.AddInstrumentRequest{Type: model.InstrumentCreditCard, Brand: "visa", Last4: "4242"}).
		Return(&model.PaymentInstrument{ID: instrumentID, Type: model.InstrumentCreditCard, Last4: "4242", Active: true}, nil)
	svc.On("ListInstruments", mock.Anything, "user-1").Return([]model.PaymentInstrument{{ID: instrumentID}}, nil)
	svc.On("DeactivateInstrument", mock.Anything, "user-1", instrumentID).Return(nil)
	h := NewPaymentHandler(svc, new(MockRefundService), zerolog.Nop())

	w := serve(http.MethodPost, "/api/payments/instruments", "/api/payments/instruments",
		`{"type": "credit_card", "label": "", "brand": "visa", "last4": "4242"}`, &customer, h.AddInstrument)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = serve(http.MethodGet, "/api/payments/instruments", "/api/payments/instruments", "", &customer, h.ListInstruments)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(http.MethodDelete, "/api/payments/instruments/{id}", "/api/payments/instruments/"+instrumentID.String(), "", &customer, h.DeactivateInstrument)
	assert.Equal(t, http.StatusNoContent, w.Code)

	svc.AssertExpectations(t)
}
