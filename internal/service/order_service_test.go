package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-service/internal/erp"
	"sales-service/internal/imagestore"
	"sales-service/internal/models"
	"sales-service/internal/store"
)

// fakeStore is an in-memory OrderStore / ClientStore / PriceListStore.
type fakeStore struct {
	nextCode   int64
	orders     map[int64]*models.Order
	images     map[int64][]models.OrderImage
	clients    map[int64]*models.Client
	priceLists map[int64]*models.PriceList
	nextID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:     make(map[int64]*models.Order),
		images:     make(map[int64][]models.OrderImage),
		clients:    make(map[int64]*models.Client),
		priceLists: make(map[int64]*models.PriceList),
	}
}

func (f *fakeStore) NextOrderCode(ctx context.Context) (int64, error) {
	f.nextCode++
	return f.nextCode, nil
}

func (f *fakeStore) CreateOrder(ctx context.Context, order *models.Order) error {
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order not found: %d: %w", id, store.ErrNotFound)
	}
	cp := *o
	cp.ImageURLs = nil
	for _, img := range f.images[id] {
		cp.ImageURLs = append(cp.ImageURLs, img.URL)
	}
	return &cp, nil
}

func (f *fakeStore) ListOrders(ctx context.Context, kind models.OrderKind, status models.OrderStatus) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.Kind == kind && (status == 0 || o.Status == status) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	o, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %d: %w", orderID, store.ErrNotFound)
	}
	o.Status = status
	return nil
}

func (f *fakeStore) SetERPResult(ctx context.Context, orderID int64, erpCode string, installments int) error {
	o := f.orders[orderID]
	o.ERPCode = erpCode
	o.Installments = installments
	return nil
}

func (f *fakeStore) UpdateLineItemPrices(ctx context.Context, orderID int64, items []models.LineItem) error {
	o := f.orders[orderID]
	for _, upd := range items {
		for i := range o.Items {
			if o.Items[i].ID == upd.ID {
				o.Items[i].GrossUnitPrice = upd.GrossUnitPrice
				o.Items[i].NetUnitPrice = upd.NetUnitPrice
			}
		}
	}
	return nil
}

func (f *fakeStore) AddOrderImages(ctx context.Context, orderID int64, images []models.OrderImage) error {
	f.images[orderID] = append(f.images[orderID], images...)
	return nil
}

func (f *fakeStore) ListOrderImages(ctx context.Context, orderID int64) ([]models.OrderImage, error) {
	return f.images[orderID], nil
}

func (f *fakeStore) ClearOrderImages(ctx context.Context, orderID int64) error {
	delete(f.images, orderID)
	return nil
}

func (f *fakeStore) CreateClient(ctx context.Context, client *models.Client) error {
	f.nextID++
	client.ID = f.nextID
	cp := *client
	f.clients[client.ID] = &cp
	return nil
}

func (f *fakeStore) GetClientByID(ctx context.Context, id int64) (*models.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return nil, fmt.Errorf("client not found: %d: %w", id, store.ErrNotFound)
	}
	return c, nil
}

func (f *fakeStore) ListClients(ctx context.Context) ([]models.Client, error) {
	var out []models.Client
	for _, c := range f.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) UpdateClient(ctx context.Context, client *models.Client) error {
	f.clients[client.ID] = client
	return nil
}

func (f *fakeStore) DeleteClient(ctx context.Context, id int64) error {
	delete(f.clients, id)
	return nil
}

func (f *fakeStore) ClientExistsByEmailOrDocument(ctx context.Context, email, document string) (bool, error) {
	for _, c := range f.clients {
		if c.Email == email || c.Document == document {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreatePriceList(ctx context.Context, list *models.PriceList) error {
	f.nextID++
	list.ID = f.nextID
	cp := *list
	f.priceLists[list.ID] = &cp
	return nil
}

func (f *fakeStore) GetPriceListByID(ctx context.Context, id int64) (*models.PriceList, error) {
	l, ok := f.priceLists[id]
	if !ok {
		return nil, fmt.Errorf("price list not found: %d: %w", id, store.ErrNotFound)
	}
	return l, nil
}

func (f *fakeStore) ListPriceLists(ctx context.Context) ([]models.PriceList, error) {
	var out []models.PriceList
	for _, l := range f.priceLists {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeStore) UpdatePriceList(ctx context.Context, list *models.PriceList) error {
	f.priceLists[list.ID] = list
	return nil
}

func (f *fakeStore) DeletePriceList(ctx context.Context, id int64) error {
	delete(f.priceLists, id)
	return nil
}

func (f *fakeStore) ClientNamesReferencing(ctx context.Context, priceListID int64) ([]string, error) {
	var names []string
	for _, c := range f.clients {
		if c.PriceListID == priceListID {
			names = append(names, c.Name)
		}
	}
	return names, nil
}

// fakeERP scripts the Hiper responses.
type fakeERP struct {
	submitErr   error
	erpID       string
	code        string
	codeErr     error
	submitCalls int
}

func (f *fakeERP) SubmitOrder(ctx context.Context, order *erp.SalesOrder) (string, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.erpID, nil
}

func (f *fakeERP) ConfirmationCode(ctx context.Context, erpID string) (string, error) {
	if f.codeErr != nil {
		return "", f.codeErr
	}
	return f.code, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	lifecycle []*models.OrderLifecycleEvent
	clients   []*models.ClientCreatedEvent
}

func (f *fakePublisher) PublishOrderLifecycle(ctx context.Context, event *models.OrderLifecycleEvent) error {
	f.lifecycle = append(f.lifecycle, event)
	return nil
}

func (f *fakePublisher) PublishClientCreated(ctx context.Context, event *models.ClientCreatedEvent) error {
	f.clients = append(f.clients, event)
	return nil
}

func newTestOrderService(t *testing.T, st *fakeStore, erpClient ERPClient, pub *fakePublisher) (*OrderService, imagestore.Store) {
	t.Helper()
	images, err := imagestore.NewFSStore(t.TempDir(), "http://localhost/files")
	require.NoError(t, err)
	return NewOrderService(st, erpClient, images, pub, 2*time.Second), images
}

func seedClient(st *fakeStore) *models.Client {
	client := &models.Client{
		Name:     "Joana Prado",
		Email:    "joana@example.com.br",
		Document: "123.456.789-00",
	}
	_ = st.CreateClient(context.Background(), client)
	return client
}

func budgetRequest(clientID int64) *CreateOrderRequest {
	return &CreateOrderRequest{
		ClientID: clientID,
		Items: []LineItemRequest{
			{ProductID: "p-1", Name: "Cadeira", Quantity: 2, NetUnitPrice: decimal.NewFromInt(100), GrossUnitPrice: decimal.NewFromInt(120)},
		},
		DeliveryAddress: models.Address{CEP: "01310100", City: "São Paulo", State: "SP"},
		BillingAddress:  models.Address{CEP: "01310100", City: "São Paulo", State: "SP"},
	}
}

func TestCreateBudgetAllocatesSequentialCodes(t *testing.T) {
	st := newFakeStore()
	client := seedClient(st)
	pub := &fakePublisher{}
	svc, _ := newTestOrderService(t, st, &fakeERP{}, pub)

	ctx := context.Background()

	var prev int64
	for i := 0; i < 3; i++ {
		resp, err := svc.CreateBudget(ctx, budgetRequest(client.ID))
		require.NoError(t, err)
		assert.Greater(t, resp.OrderID, prev)
		assert.Equal(t, models.StatusQuote.String(), resp.Status)
		prev = resp.OrderID
	}

	require.Len(t, pub.lifecycle, 3)
	assert.Equal(t, models.EventTypeBudgetCreated, pub.lifecycle[0].EventType)
	assert.Equal(t, client.Name, pub.lifecycle[0].ClientName)
}

func TestCreateBudgetUnknownClient(t *testing.T) {
	st := newFakeStore()
	svc, _ := newTestOrderService(t, st, &fakeERP{}, &fakePublisher{})

	_, err := svc.CreateBudget(context.Background(), budgetRequest(99))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmitOrderRecordsERPCode(t *testing.T) {
	st := newFakeStore()
	client := seedClient(st)
	pub := &fakePublisher{}
	svc, _ := newTestOrderService(t, st, &fakeERP{erpID: "erp-9", code: "LV900"}, pub)

	resp, err := svc.SubmitOrder(context.Background(), budgetRequest(client.ID))
	require.NoError(t, err)
	assert.Equal(t, "LV900", resp.OrderCode)

	order, err := svc.GetOrder(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "LV900", order.ERPCode)
	assert.Equal(t, models.StatusProposalSent, order.Status)
}

func TestSubmitOrderFallsBackToLocalCode(t *testing.T) {
	st := newFakeStore()
	client := seedClient(st)
	svc, _ := newTestOrderService(t, st,
		&fakeERP{erpID: "erp-9", codeErr: erp.ErrNoConfirmation}, &fakePublisher{})

	resp, err := svc.SubmitOrder(context.Background(), budgetRequest(client.ID))
	require.NoError(t, err)

	// order_code is never left empty.
	assert.Equal(t, fmt.Sprintf("LV%d", resp.OrderID), resp.OrderCode)

	order, err := svc.GetOrder(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ERPCode)
}

func TestSubmitOrderUpstreamFailure(t *testing.T) {
	st := newFakeStore()
	client := seedClient(st)
	svc, _ := newTestOrderService(t, st,
		&fakeERP{submitErr: errors.New("connection refused")}, &fakePublisher{})

	_, err := svc.SubmitOrder(context.Background(), budgetRequest(client.ID))
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestTransitionStatusValidatesTable(t *testing.T) {
	st := newFakeStore()
	client := seedClient(st)
	pub := &fakePublisher{}
	svc, _ := newTestOrderService(t, st, &fakeERP{}, pub)

	ctx := context.Background()
	resp, err := svc.CreateBudget(ctx, budgetRequest(client.ID))
	require.NoError(t, err)

	// Quote -> Accepted skips ProposalSent and must be rejected.
	_, err = svc.TransitionStatus(ctx, resp.OrderID, models.StatusAccepted)
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, models.StatusQuote, illegal.From)

	order, err := svc.TransitionStatus(ctx, resp.OrderID, models.StatusProposalSent)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProposalSent, order.Status)

	_, err = svc.TransitionStatus(ctx, resp.OrderID, models.StatusAccepted)
	require.NoError(t, err)
}

func TestCancelCascadeDeletesImages(t *testing.T) {
	st := newFakeStore()
	client := seedClient(st)
	svc, images := newTestOrderService(t, st, &fakeERP{}, &fakePublisher{})

	ctx := context.Background()
	resp, err := svc.CreateBudget(ctx, budgetRequest(client.ID))
	require.NoError(t, err)

	urls, err := svc.AttachImages(ctx, resp.OrderID, []ImageUpload{
		{Filename: "frente.png", Data: strings.NewReader("a")},
		{Filename: "verso.png", Data: strings.NewReader("b")},
	})
	require.NoError(t, err)
	require.Len(t, urls, 2)

	order, err := svc.TransitionStatus(ctx, resp.OrderID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Empty(t, order.ImageURLs)

	names, err := images.List(ctx, "imagens/")
	require.NoError(t, err)
	for _, name := range names {
		assert.NotContains(t, name, fmt.Sprintf("order_%d", resp.OrderID))
	}

	got, err := svc.GetOrder(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Empty(t, got.ImageURLs)
}

func TestCancelCascadeSparesOrdersWithSharedIDDigits(t *testing.T) {
	st := newFakeStore()
	client := seedClient(st)
	svc, images := newTestOrderService(t, st, &fakeERP{}, &fakePublisher{})

	ctx := context.Background()
	first, err := svc.CreateBudget(ctx, budgetRequest(client.ID))
	require.NoError(t, err)
	require.Equal(t, int64(1), first.OrderID)

	// Force the next allocation to an ID that has the first one as a
	// prefix of its digits.
	st.nextCode = 11
	second, err := svc.CreateBudget(ctx, budgetRequest(client.ID))
	require.NoError(t, err)
	require.Equal(t, int64(12), second.OrderID)

	_, err = svc.AttachImages(ctx, first.OrderID, []ImageUpload{
		{Filename: "a.png", Data: strings.NewReader("a")},
	})
	require.NoError(t, err)
	urls, err := svc.AttachImages(ctx, second.OrderID, []ImageUpload{
		{Filename: "b.png", Data: strings.NewReader("b")},
	})
	require.NoError(t, err)
	require.Len(t, urls, 1)

	_, err = svc.TransitionStatus(ctx, first.OrderID, models.StatusCancelled)
	require.NoError(t, err)

	kept, err := svc.GetOrder(ctx, second.OrderID)
	require.NoError(t, err)
	assert.Equal(t, urls, kept.ImageURLs)

	names, err := images.List(ctx, "imagens/")
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Contains(t, names[0], "_order_12")
}

func TestPriceEditsLockedAfterSubmission(t *testing.T) {
	st := newFakeStore()
	client := seedClient(st)
	svc, _ := newTestOrderService(t, st, &fakeERP{}, &fakePublisher{})

	ctx := context.Background()
	resp, err := svc.CreateBudget(ctx, budgetRequest(client.ID))
	require.NoError(t, err)

	_, err = svc.UpdateLineItemPrices(ctx, resp.OrderID, []PriceUpdate{
		{ItemID: 1, NetUnitPrice: decimal.NewFromInt(90), GrossUnitPrice: decimal.NewFromInt(110)},
	})
	require.NoError(t, err)

	_, err = svc.TransitionStatus(ctx, resp.OrderID, models.StatusProposalSent)
	require.NoError(t, err)

	_, err = svc.UpdateLineItemPrices(ctx, resp.OrderID, []PriceUpdate{
		{ItemID: 1, NetUnitPrice: decimal.NewFromInt(1)},
	})
	assert.ErrorIs(t, err, ErrPriceLocked)
}

func TestAttachImagesBounds(t *testing.T) {
	st := newFakeStore()
	client := seedClient(st)
	svc, _ := newTestOrderService(t, st, &fakeERP{}, &fakePublisher{})

	ctx := context.Background()
	resp, err := svc.CreateBudget(ctx, budgetRequest(client.ID))
	require.NoError(t, err)

	uploads := make([]ImageUpload, 6)
	for i := range uploads {
		uploads[i] = ImageUpload{Filename: fmt.Sprintf("f%d.png", i), Data: strings.NewReader("x")}
	}

	_, err = svc.AttachImages(ctx, resp.OrderID, uploads)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.AttachImages(ctx, resp.OrderID, nil)
	assert.ErrorIs(t, err, ErrValidation)
}
