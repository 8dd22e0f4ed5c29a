package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-service/internal/cep"
	"sales-service/internal/erp"
	"sales-service/internal/imagestore"
	"sales-service/internal/models"
	"sales-service/internal/service"
	"sales-service/internal/store"
)

type stubProducts struct {
	products  []erp.Product
	err       error
	priceList string
}

func (s *stubProducts) Products(ctx context.Context, priceListID string) ([]erp.Product, error) {
	s.priceList = priceListID
	return s.products, s.err
}

type stubCEP struct {
	addr *cep.Address
	err  error
}

func (s *stubCEP) Lookup(ctx context.Context, raw string) (*cep.Address, error) {
	return s.addr, s.err
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.SetupRoutes(router, "*")
	return router
}

// stubOrderStore backs a real OrderService with one seeded client.
type stubOrderStore struct {
	nextCode     int64
	orders       map[int64]*models.Order
	createdCount int
}

func newStubOrderStore() *stubOrderStore {
	return &stubOrderStore{orders: make(map[int64]*models.Order)}
}

func (s *stubOrderStore) NextOrderCode(ctx context.Context) (int64, error) {
	s.nextCode++
	return s.nextCode, nil
}

func (s *stubOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	s.createdCount++
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *stubOrderStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o, nil
}

func (s *stubOrderStore) ListOrders(ctx context.Context, kind models.OrderKind, status models.OrderStatus) ([]models.Order, error) {
	return nil, nil
}

func (s *stubOrderStore) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	return nil
}

func (s *stubOrderStore) SetERPResult(ctx context.Context, orderID int64, erpCode string, installments int) error {
	return nil
}

func (s *stubOrderStore) UpdateLineItemPrices(ctx context.Context, orderID int64, items []models.LineItem) error {
	return nil
}

func (s *stubOrderStore) AddOrderImages(ctx context.Context, orderID int64, images []models.OrderImage) error {
	return nil
}

func (s *stubOrderStore) ListOrderImages(ctx context.Context, orderID int64) ([]models.OrderImage, error) {
	return nil, nil
}

func (s *stubOrderStore) ClearOrderImages(ctx context.Context, orderID int64) error {
	return nil
}

func (s *stubOrderStore) GetClientByID(ctx context.Context, id int64) (*models.Client, error) {
	if id != 1 {
		return nil, store.ErrNotFound
	}
	return &models.Client{ID: 1, Name: "Joana Prado", Document: "123.456.789-00"}, nil
}

type stubERP struct{}

func (stubERP) SubmitOrder(ctx context.Context, order *erp.SalesOrder) (string, error) {
	return "erp-1", nil
}

func (stubERP) ConfirmationCode(ctx context.Context, erpID string) (string, error) {
	return "LV100", nil
}

type stubPublisher struct{}

func (stubPublisher) PublishOrderLifecycle(ctx context.Context, event *models.OrderLifecycleEvent) error {
	return nil
}

func newBudgetHandler(t *testing.T) (*Handler, *stubOrderStore) {
	t.Helper()
	images, err := imagestore.NewFSStore(t.TempDir(), "http://localhost/files")
	require.NoError(t, err)

	st := newStubOrderStore()
	orders := service.NewOrderService(st, stubERP{}, images, stubPublisher{}, time.Second)
	return NewHandler(orders, nil, nil, &stubProducts{}, &stubCEP{}, "test"), st
}

func budgetBody(items string) *bytes.Buffer {
	return bytes.NewBufferString(`{
		"client_id": 1,
		"items": ` + items + `,
		"delivery_address": {"cep": "01310100", "city": "São Paulo", "state": "SP"},
		"billing_address": {"cep": "01310100", "city": "São Paulo", "state": "SP"}
	}`)
}

func TestHealthCheck(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{}, &stubCEP{}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestListProducts(t *testing.T) {
	stub := &stubProducts{
		products: []erp.Product{
			{ID: "101", Name: "Camiseta", Price: decimal.NewFromFloat(39.9)},
		},
	}
	h := NewHandler(nil, nil, nil, stub, &stubCEP{}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/products?price_list=7", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, "7", stub.priceList)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool          `json:"success"`
		Data    []erp.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Camiseta", resp.Data[0].Name)
}

func TestListProductsUpstreamFailure(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{
		err: &erp.APIError{Status: http.StatusServiceUnavailable, Body: "maintenance"},
	}, &stubCEP{}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/products", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "upstream")
}

func TestLookupCEP(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{}, &stubCEP{
		addr: &cep.Address{CEP: "01001-000", Street: "Praça da Sé", City: "São Paulo", State: "SP"},
	}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/cep/01001000", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Praça da Sé")
}

func TestLookupCEPInvalid(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{}, &stubCEP{err: cep.ErrInvalidCEP}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/cep/abc", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLookupCEPNotFound(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{}, &stubCEP{err: cep.ErrNotFound}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/cep/99999999", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrdersRejectsUnknownKind(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{}, &stubCEP{}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/orders?kind=INVOICE", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOrdersRejectsBadStatus(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{}, &stubCEP{}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/orders?status=42", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPathIDValidation(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{}, &stubCEP{}, "test")
	router := newTestRouter(h)

	for _, id := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/orders/"+id, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "id %q", id)
	}
}

func TestCreateBudget(t *testing.T) {
	h, st := newBudgetHandler(t)
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	body := budgetBody(`[{"product_id": "p-1", "name": "Cadeira", "quantity": 2, "net_unit_price": "100"}]`)
	req := httptest.NewRequest(http.MethodPost, "/v1/budgets", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, st.createdCount)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			OrderID   int64  `json:"order_id"`
			OrderCode string `json:"order_code"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.Data.OrderID)
	assert.Equal(t, "QUOTE", resp.Data.Status)
}

func TestCreateBudgetRejectsEmptyItems(t *testing.T) {
	h, st := newBudgetHandler(t)
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/budgets", budgetBody(`[]`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Binding rejects the empty array before anything is persisted.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, st.createdCount)
}

func TestSubmitOrderRejectsEmptyItems(t *testing.T) {
	h, st := newBudgetHandler(t)
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", budgetBody(`[]`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, st.createdCount)
}

func TestUpdateClientRejectsEmptyBody(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{}, &stubCEP{}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/v1/clients/1", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransitionStatusRejectsEmptyBody(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{}, &stubCEP{}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/v1/orders/1/status", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnvelopeShape(t *testing.T) {
	h := NewHandler(nil, nil, nil, &stubProducts{}, &stubCEP{err: cep.ErrNotFound}, "test")
	router := newTestRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/cep/00000000", nil)
	router.ServeHTTP(w, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}
