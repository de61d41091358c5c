package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	marketerrors "github.com/abgdnv/coinmarket/internal/errors"
	"github.com/abgdnv/coinmarket/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockOrderService is a testify mock of service.OrderService.
type mockOrderService struct {
	mock.Mock
}

func (m *mockOrderService) PlaceOrder(ctx context.Context, order service.PlaceOrderDto) (*service.PlaceOrderResultDto, error) {
	args := m.Called(ctx, order)
	res, _ := args.Get(0).(*service.PlaceOrderResultDto)
	return res, args.Error(1)
}

func (m *mockOrderService) PlaceSingleItemOrder(ctx context.Context, order service.SingleItemOrderDto) (*service.OrderLineDto, error) {
	args := m.Called(ctx, order)
	res, _ := args.Get(0).(*service.OrderLineDto)
	return res, args.Error(1)
}

func (m *mockOrderService) DeclineOrder(ctx context.Context, lineID uuid.UUID) (*service.OrderLineDto, error) {
	args := m.Called(ctx, lineID)
	res, _ := args.Get(0).(*service.OrderLineDto)
	return res, args.Error(1)
}

func (m *mockOrderService) DeliverOrder(ctx context.Context, lineID uuid.UUID) (*service.OrderLineDto, error) {
	args := m.Called(ctx, lineID)
	res, _ := args.Get(0).(*service.OrderLineDto)
	return res, args.Error(1)
}

func (m *mockOrderService) ListPendingOrders(ctx context.Context, shopID string) ([]service.OrderGroupDto, error) {
	args := m.Called(ctx, shopID)
	res, _ := args.Get(0).([]service.OrderGroupDto)
	return res, args.Error(1)
}

func (m *mockOrderService) ListDeliveredOrders(ctx context.Context, shopID string) ([]service.OrderLineDto, error) {
	args := m.Called(ctx, shopID)
	res, _ := args.Get(0).([]service.OrderLineDto)
	return res, args.Error(1)
}

func (m *mockOrderService) ListUnseenOrdersForAccount(ctx context.Context, accountID string) ([]service.UnseenOrderDto, error) {
	args := m.Called(ctx, accountID)
	res, _ := args.Get(0).([]service.UnseenOrderDto)
	return res, args.Error(1)
}

func (m *mockOrderService) MarkOrderViewed(ctx context.Context, orderID int32) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *mockOrderService) AccountMonthlyReport(ctx context.Context, accountID string, month, year int) ([]service.OrderLineDto, error) {
	args := m.Called(ctx, accountID, month, year)
	res, _ := args.Get(0).([]service.OrderLineDto)
	return res, args.Error(1)
}

func (m *mockOrderService) ShopMonthlyReport(ctx context.Context, shopID string, month, year int) ([]service.OrderLineDto, error) {
	args := m.Called(ctx, shopID, month, year)
	res, _ := args.Get(0).([]service.OrderLineDto)
	return res, args.Error(1)
}

func (m *mockOrderService) ShopRevenue(ctx context.Context, shopID string) (*service.RevenueDto, error) {
	args := m.Called(ctx, shopID)
	res, _ := args.Get(0).(*service.RevenueDto)
	return res, args.Error(1)
}

// mockCatalogService is a hand-written stub of service.CatalogService.
type mockCatalogService struct {
	account *service.AccountDto
	shop    *service.ShopDto
	product *service.ProductDto
	error   error
}

func (m *mockCatalogService) RegisterAccount(context.Context, service.AccountCreateDto) (*service.AccountDto, error) {
	return m.account, m.error
}

func (m *mockCatalogService) GetAccount(context.Context, string) (*service.AccountDto, error) {
	return m.account, m.error
}

func (m *mockCatalogService) AddCoins(context.Context, string, service.CoinsDto) (*service.AccountDto, error) {
	return m.account, m.error
}

func (m *mockCatalogService) CreateShop(context.Context, service.ShopCreateDto) (*service.ShopDto, error) {
	return m.shop, m.error
}

func (m *mockCatalogService) AddProduct(context.Context, string, service.ProductCreateDto) (*service.ProductDto, error) {
	return m.product, m.error
}

func (m *mockCatalogService) UpdateProduct(context.Context, string, string, service.ProductUpdateDto) (*service.ProductDto, error) {
	return m.product, m.error
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	ValidationErrors map[string]string `json:"validation_errors"`
}

func newRouter(orders service.OrderService, catalog service.CatalogService) *chi.Mux {
	h := NewHandler(orders, catalog, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func serve(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func Test_Handler_PlaceOrder(t *testing.T) {
	validBody := `{"account_id":"u-100","lines":[{"shop_id":"Acme","product_name":"Pen","quantity":3,"price":"5"}]}`
	result := &service.PlaceOrderResultDto{OrderID: 4821, Balance: decimal.NewFromInt(85), Total: decimal.NewFromInt(15)}

	testCases := []struct {
		name         string
		body         string
		serviceRes   *service.PlaceOrderResultDto
		serviceErr   error
		callsService bool
		expectedCode int
		expectedErr  string
		expectedKeys []string
	}{
		{
			name:         "Success",
			body:         validBody,
			serviceRes:   result,
			callsService: true,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "Fail - malformed json",
			body:         `{"account_id":`,
			expectedCode: http.StatusBadRequest,
			expectedErr:  "Invalid request body",
		},
		{
			name:         "Fail - validation",
			body:         `{"account_id":"","lines":[{"shop_id":"Acme","product_name":"Pen","quantity":0,"price":"-1"}]}`,
			expectedCode: http.StatusBadRequest,
			expectedKeys: []string{"AccountID", "Quantity", "Price"},
		},
		{
			name:         "Fail - insufficient funds",
			body:         validBody,
			serviceErr:   marketerrors.ErrInsufficientFunds,
			callsService: true,
			expectedCode: http.StatusUnprocessableEntity,
			expectedErr:  marketerrors.ErrInsufficientFunds.Error(),
		},
		{
			name:         "Fail - stock race",
			body:         validBody,
			serviceErr:   marketerrors.ErrStockChanged,
			callsService: true,
			expectedCode: http.StatusConflict,
		},
		{
			name:         "Fail - unknown product",
			body:         validBody,
			serviceErr:   marketerrors.ErrProductNotFound,
			callsService: true,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "Fail - internal error is hidden",
			body:         validBody,
			serviceErr:   errors.New("pq: connection refused"),
			callsService: true,
			expectedCode: http.StatusInternalServerError,
			expectedErr:  "Internal server error",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			orders := new(mockOrderService)
			if tc.callsService {
				orders.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(dto service.PlaceOrderDto) bool {
					return dto.AccountID == "u-100" && len(dto.Lines) == 1 && dto.Lines[0].Price.Equal(decimal.NewFromInt(5))
				})).Return(tc.serviceRes, tc.serviceErr).Once()
			}
			r := newRouter(orders, &mockCatalogService{})

			// when
			rr := serve(r, http.MethodPost, "/api/v1/orders", tc.body)

			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
			orders.AssertExpectations(t)
			switch {
			case tc.expectedKeys != nil:
				var resp ValidationErrorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				for _, k := range tc.expectedKeys {
					assert.Contains(t, resp.ValidationErrors, k)
				}
			case tc.expectedErr != "":
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tc.expectedErr, resp.Error)
			case tc.expectedCode == http.StatusCreated:
				var resp service.PlaceOrderResultDto
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, int32(4821), resp.OrderID)
				assert.True(t, resp.Balance.Equal(decimal.NewFromInt(85)))
			}
		})
	}
}

func Test_Handler_LineTransitions(t *testing.T) {
	lineID := uuid.New()
	line := &service.OrderLineDto{ID: lineID, Status: "Rejected"}

	testCases := []struct {
		name         string
		path         string
		method       string
		serviceErr   error
		expectedCode int
	}{
		{name: "decline success", method: "DeclineOrder", path: "/decline", expectedCode: http.StatusOK},
		{name: "decline not pending", method: "DeclineOrder", path: "/decline", serviceErr: marketerrors.ErrOrderLineNotPending, expectedCode: http.StatusConflict},
		{name: "decline unknown", method: "DeclineOrder", path: "/decline", serviceErr: marketerrors.ErrOrderLineNotFound, expectedCode: http.StatusNotFound},
		{name: "deliver success", method: "DeliverOrder", path: "/deliver", expectedCode: http.StatusOK},
		{name: "deliver unknown", method: "DeliverOrder", path: "/deliver", serviceErr: marketerrors.ErrOrderLineNotFound, expectedCode: http.StatusNotFound},
		{name: "deliver declined", method: "DeliverOrder", path: "/deliver", serviceErr: marketerrors.ErrOrderLineNotPending, expectedCode: http.StatusConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			orders := new(mockOrderService)
			var res *service.OrderLineDto
			if tc.serviceErr == nil {
				res = line
			}
			orders.On(tc.method, mock.Anything, lineID).Return(res, tc.serviceErr).Once()
			r := newRouter(orders, &mockCatalogService{})

			rr := serve(r, http.MethodPut, "/api/v1/orders/lines/"+lineID.String()+tc.path, "")

			assert.Equal(t, tc.expectedCode, rr.Code)
			orders.AssertExpectations(t)
		})
	}

	t.Run("invalid line id", func(t *testing.T) {
		orders := new(mockOrderService)
		r := newRouter(orders, &mockCatalogService{})

		rr := serve(r, http.MethodPut, "/api/v1/orders/lines/not-a-uuid/decline", "")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		orders.AssertNotCalled(t, "DeclineOrder", mock.Anything, mock.Anything)
	})
}

func Test_Handler_MarkOrderViewed(t *testing.T) {
	orders := new(mockOrderService)
	orders.On("MarkOrderViewed", mock.Anything, int32(4821)).Return(nil).Once()
	r := newRouter(orders, &mockCatalogService{})

	rr := serve(r, http.MethodPut, "/api/v1/orders/4821/viewed", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serve(r, http.MethodPut, "/api/v1/orders/abc/viewed", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	orders.AssertExpectations(t)
}

func Test_Handler_Reports(t *testing.T) {
	testCases := []struct {
		name         string
		target       string
		setup        func(m *mockOrderService)
		expectedCode int
	}{
		{
			name:   "account report",
			target: "/api/v1/accounts/u-100/report?month=1&year=2024",
			setup: func(m *mockOrderService) {
				m.On("AccountMonthlyReport", mock.Anything, "u-100", 1, 2024).Return([]service.OrderLineDto{{ProductName: "Pen"}}, nil).Once()
			},
			expectedCode: http.StatusOK,
		},
		{
			name:   "shop report",
			target: "/api/v1/shops/Acme/report?month=12&year=2023",
			setup: func(m *mockOrderService) {
				m.On("ShopMonthlyReport", mock.Anything, "Acme", 12, 2023).Return([]service.OrderLineDto{}, nil).Once()
			},
			expectedCode: http.StatusOK,
		},
		{name: "month out of range", target: "/api/v1/accounts/u-100/report?month=13&year=2024", expectedCode: http.StatusBadRequest},
		{name: "missing year", target: "/api/v1/shops/Acme/report?month=3", expectedCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			orders := new(mockOrderService)
			if tc.setup != nil {
				tc.setup(orders)
			}
			r := newRouter(orders, &mockCatalogService{})

			rr := serve(r, http.MethodGet, tc.target, "")

			assert.Equal(t, tc.expectedCode, rr.Code)
			orders.AssertExpectations(t)
		})
	}
}

func Test_Handler_Listings(t *testing.T) {
	orders := new(mockOrderService)
	orders.On("ListPendingOrders", mock.Anything, "Acme").Return([]service.OrderGroupDto{{OrderID: 1234}}, nil).Once()
	orders.On("ListDeliveredOrders", mock.Anything, "Acme").Return([]service.OrderLineDto{}, nil).Once()
	orders.On("ListUnseenOrdersForAccount", mock.Anything, "u-100").Return([]service.UnseenOrderDto{{OrderID: 1234}}, nil).Once()
	orders.On("ShopRevenue", mock.Anything, "Acme").Return(&service.RevenueDto{ShopID: "Acme", Total: decimal.RequireFromString("31.5")}, nil).Once()
	r := newRouter(orders, &mockCatalogService{})

	rr := serve(r, http.MethodGet, "/api/v1/shops/Acme/orders/pending", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"order_id":1234,"created_at":"","lines":null}]`, rr.Body.String())

	rr = serve(r, http.MethodGet, "/api/v1/shops/Acme/orders/delivered", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = serve(r, http.MethodGet, "/api/v1/accounts/u-100/orders/unseen", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(r, http.MethodGet, "/api/v1/shops/Acme/revenue", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"shop_id":"Acme","total":"31.5"}`, rr.Body.String())

	orders.AssertExpectations(t)
}

func Test_Handler_Catalog(t *testing.T) {
	testCases := []struct {
		name         string
		catalog      *mockCatalogService
		method       string
		target       string
		body         string
		expectedCode int
	}{
		{
			name:         "register account",
			catalog:      &mockCatalogService{account: &service.AccountDto{ID: "u-1"}},
			method:       http.MethodPost,
			target:       "/api/v1/accounts",
			body:         `{"id":"u-1","display_name":"Ann"}`,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "register duplicate account",
			catalog:      &mockCatalogService{error: marketerrors.ErrAccountExists},
			method:       http.MethodPost,
			target:       "/api/v1/accounts",
			body:         `{"id":"u-1","display_name":"Ann"}`,
			expectedCode: http.StatusConflict,
		},
		{
			name:         "get missing account",
			catalog:      &mockCatalogService{error: marketerrors.ErrAccountNotFound},
			method:       http.MethodGet,
			target:       "/api/v1/accounts/ghost",
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "add coins rejects zero",
			catalog:      &mockCatalogService{},
			method:       http.MethodPost,
			target:       "/api/v1/accounts/u-1/coins",
			body:         `{"amount":"0"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "add coins",
			catalog:      &mockCatalogService{account: &service.AccountDto{ID: "u-1", Coins: decimal.NewFromInt(10)}},
			method:       http.MethodPost,
			target:       "/api/v1/accounts/u-1/coins",
			body:         `{"amount":"10"}`,
			expectedCode: http.StatusOK,
		},
		{
			name:         "create shop with unsafe name",
			catalog:      &mockCatalogService{error: marketerrors.ErrInvalidShopName},
			method:       http.MethodPost,
			target:       "/api/v1/shops",
			body:         `{"name":"a/b","owner_name":"Bob"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "add product",
			catalog:      &mockCatalogService{product: &service.ProductDto{Name: "Pen"}},
			method:       http.MethodPost,
			target:       "/api/v1/shops/Acme/products",
			body:         `{"name":"Pen","price":"5","quantity":10,"category":"office"}`,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "update missing product",
			catalog:      &mockCatalogService{error: marketerrors.ErrProductNotFound},
			method:       http.MethodPut,
			target:       "/api/v1/shops/Acme/products/Ink",
			body:         `{"price":"1","quantity":1}`,
			expectedCode: http.StatusNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(new(mockOrderService), tc.catalog)

			rr := serve(r, tc.method, tc.target, tc.body)

			assert.Equal(t, tc.expectedCode, rr.Code, rr.Body.String())
		})
	}
}

func Test_Handler_HealthCheck(t *testing.T) {
	r := newRouter(new(mockOrderService), &mockCatalogService{})
	rr := serve(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
