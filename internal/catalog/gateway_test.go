package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"petshop/internal/model"
	"petshop/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductRepository is a mock implementation of repository.ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Product), args.Error(1)
}

func (m *MockProductRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	return m.Called(ctx, id, delta).Error(0)
}

func (m *MockProductRepository) Reserve(ctx context.Context, lines []model.StockLine) error {
	return m.Called(ctx, lines).Error(0)
}

func (m *MockProductRepository) Release(ctx context.Context, lines []model.StockLine) error {
	return m.Called(ctx, lines).Error(0)
}

var _ repository.ProductRepository = (*MockProductRepository)(nil)

func TestGateway_GetProduct(t *testing.T) {
	ctx := context.Background()
	racao := &model.Product{ID: "racao-premium", Name: "Ração Premium", Price: decimal.RequireFromString("79.90"), Stock: 10, Active: true}

	tests := []struct {
		name      string
		setupMock func(*MockProductRepository)
		want      *model.Product
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(m *MockProductRepository) {
				m.On("GetByID", ctx, "racao-premium").Return(racao, nil)
			},
			want: racao,
		},
		{
			name: "missing product",
			setupMock: func(m *MockProductRepository) {
				m.On("GetByID", ctx, "racao-premium").Return(nil, nil)
			},
			wantErr: model.ErrProductNotFound,
		},
		{
			name: "database failure",
			setupMock: func(m *MockProductRepository) {
				m.On("GetByID", ctx, "racao-premium").Return(nil, errors.New("connection refused"))
			},
			wantErr: model.ErrCatalogUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockProductRepository)
			tt.setupMock(repo)
			gw := NewGateway(repo, Settings{}, zerolog.Nop())

			got, err := gw.GetProduct(ctx, "racao-premium")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestGateway_BusinessErrorsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepository)
	lines := []model.StockLine{{ProductID: "racao-premium", Quantity: 99}}
	repo.On("Reserve", ctx, lines).Return(model.ErrInsufficientStock)

	gw := NewGateway(repo, Settings{MaxFailures: 2, OpenTimeout: time.Minute}, zerolog.Nop())

	for i := 0; i < 5; i++ {
		err := gw.Reserve(ctx, lines)
		assert.ErrorIs(t, err, model.ErrInsufficientStock)
	}
	repo.AssertNumberOfCalls(t, "Reserve", 5)
}

func TestGateway_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProductRepository)
	repo.On("AdjustStock", ctx, "racao-premium", 1).Return(errors.New("timeout"))

	gw := NewGateway(repo, Settings{MaxFailures: 2, OpenTimeout: time.Minute}, zerolog.Nop())

	for i := 0; i < 4; i++ {
		err := gw.AdjustStock(ctx, "racao-premium", 1)
		assert.ErrorIs(t, err, model.ErrCatalogUnavailable)
	}
	repo.AssertNumberOfCalls(t, "AdjustStock", 2)
}

func TestGateway_WithinSharesBreaker(t *testing.T) {
	ctx := context.Background()
	failing := new(MockProductRepository)
	failing.On("Release", ctx, mock.Anything).Return(errors.New("timeout"))
	txRepo := new(MockProductRepository)

	gw := NewGateway(failing, Settings{MaxFailures: 1, OpenTimeout: time.Minute}, zerolog.Nop())
	require.ErrorIs(t, gw.Release(ctx, nil), model.ErrCatalogUnavailable)

	err := gw.Within(txRepo).Release(ctx, []model.StockLine{{ProductID: "x", Quantity: 1}})

	assert.ErrorIs(t, err, model.ErrCatalogUnavailable)
	txRepo.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}
