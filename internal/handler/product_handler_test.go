package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"petshop/internal/identity"
	"petshop/internal/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestProductHandler_GetAll(t *testing.T) {
	testProducts := []model.Product{
		{ID: "racao-premium", Name: "Ração Premium 15kg", Price: decimal.RequireFromString("79.90"), Category: "racao", Active: true},
		{ID: "petisco-frango", Name: "Petisco de Frango", Price: decimal.RequireFromString("14.90"), Category: "petiscos", Active: true},
	}

	tests := []struct {
		name           string
		queryParams    string
		mockReturn     []model.Product
		mockError      error
		expectedStatus int
		expectService  bool
		limit          int
		offset         int
	}{
		{
			name:           "Success with default pagination",
			mockReturn:     testProducts,
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Success with custom pagination",
			queryParams:    "?limit=5&offset=10",
			mockReturn:     testProducts,
			expectedStatus: http.StatusOK,
			expectService:  true,
			limit:          5,
			offset:         10,
		},
		{
			name:           "Invalid limit parameter",
			queryParams:    "?limit=invalid",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid offset parameter",
			queryParams:    "?offset=invalid",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Catalog unavailable",
			mockError:      model.ErrCatalogUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
			expectService:  true,
		},
		{
			name:           "Unexpected error",
			mockError:      errors.New("database error"),
			expectedStatus: http.StatusInternalServerError,
			expectService:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockProductService)
			if tt.expectService {
				svc.On("GetAll", mock.Anything, tt.limit, tt.offset).Return(tt.mockReturn, tt.mockError)
			}
			h := NewProductHandler(svc, zerolog.Nop())

			w := serve(http.MethodGet, "/api/products", "/api/products"+tt.queryParams, "", nil, h.GetAll)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var got []model.Product
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Len(t, got, len(testProducts))
			}
			if !tt.expectService {
				svc.AssertNotCalled(t, "GetAll", mock.Anything, mock.Anything, mock.Anything)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestProductHandler_GetByID(t *testing.T) {
	racao := &model.Product{ID: "racao-premium", Name: "Ração Premium 15kg", Price: decimal.RequireFromString("79.90"), Active: true}

	tests := []struct {
		name           string
		productID      string
		mockReturn     *model.Product
		mockError      error
		expectedStatus int
		expectedCode   string
	}{
		{name: "Found", productID: "racao-premium", mockReturn: racao, expectedStatus: http.StatusOK},
		{name: "Not found", productID: "nao-existe", mockError: model.ErrProductNotFound, expectedStatus: http.StatusNotFound, expectedCode: model.ErrCodeProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockProductService)
			svc.On("GetByID", mock.Anything, tt.productID).Return(tt.mockReturn, tt.mockError)
			h := NewProductHandler(svc, zerolog.Nop())

			w := serve(http.MethodGet, "/api/products/{id}", "/api/products/"+tt.productID, "", nil, h.GetByID)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				var body model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.expectedCode, body.Error)
			}
		})
	}
}

func TestProductHandler_AdjustStock(t *testing.T) {
	restocked := &model.Product{ID: "racao-premium", Name: "Ração Premium 15kg", Price: decimal.RequireFromString("79.90"), Stock: 30, Active: true}

	tests := []struct {
		name           string
		body           string
		as             *identity.Actor
		mockReq        *model.StockAdjustmentRequest
		mockReturn     *model.Product
		mockError      error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Restock",
			body:           `{"delta": 10, "reason": "reposição"}`,
			as:             &admin,
			mockReq:        &model.StockAdjustmentRequest{Delta: 10, Reason: "reposição"},
			mockReturn:     restocked,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Write-off below zero",
			body:           `{"delta": -100}`,
			as:             &admin,
			mockReq:        &model.StockAdjustmentRequest{Delta: -100},
			mockError:      model.ErrInsufficientStock,
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeInsufficientStock,
		},
		{
			name:           "Customer forbidden",
			body:           `{"delta": 10}`,
			as:             &customer,
			mockReq:        &model.StockAdjustmentRequest{Delta: 10},
			mockError:      model.ErrForbidden,
			expectedStatus: http.StatusForbidden,
			expectedCode:   model.ErrCodeForbidden,
		},
		{
			name:           "Invalid JSON",
			body:           `{"delta": "ten"}`,
			as:             &admin,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
		{
			name:           "Unauthenticated",
			body:           `{"delta": 10}`,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockProductService)
			if tt.mockReq != nil {
				svc.On("AdjustStock", mock.Anything, *tt.as, "racao-premium", tt.mockReq).Return(tt.mockReturn, tt.mockError)
			}
			h := NewProductHandler(svc, zerolog.Nop())

			w := serve(http.MethodPost, "/api/products/{id}/stock", "/api/products/racao-premium/stock", tt.body, tt.as, h.AdjustStock)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				var body model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.expectedCode, body.Error)
			}
			if tt.expectedStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"stock":30`)
			}
			if tt.mockReq == nil {
				svc.AssertNotCalled(t, "AdjustStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			svc.AssertExpectations(t)
		})
	}
}
