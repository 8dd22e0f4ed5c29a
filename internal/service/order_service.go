package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sales-service/internal/erp"
	"sales-service/internal/imagestore"
	"sales-service/internal/models"
	"sales-service/internal/pdf"
	"sales-service/internal/util"
)

// OrderStore is the persistence capability the order service needs.
type OrderStore interface {
	NextOrderCode(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, kind models.OrderKind, status models.OrderStatus) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error
	SetERPResult(ctx context.Context, orderID int64, erpCode string, installments int) error
	UpdateLineItemPrices(ctx context.Context, orderID int64, items []models.LineItem) error
	AddOrderImages(ctx context.Context, orderID int64, images []models.OrderImage) error
	ListOrderImages(ctx context.Context, orderID int64) ([]models.OrderImage, error)
	ClearOrderImages(ctx context.Context, orderID int64) error
	GetClientByID(ctx context.Context, id int64) (*models.Client, error)
}

// ERPClient is the Hiper capability the order service needs.
type ERPClient interface {
	SubmitOrder(ctx context.Context, order *erp.SalesOrder) (string, error)
	ConfirmationCode(ctx context.Context, erpID string) (string, error)
}

// LifecyclePublisher publishes order lifecycle events.
type LifecyclePublisher interface {
	PublishOrderLifecycle(ctx context.Context, event *models.OrderLifecycleEvent) error
}

// OrderService handles the budget/order lifecycle.
type OrderService struct {
	store       OrderStore
	erp         ERPClient
	images      imagestore.Store
	events      LifecyclePublisher
	syncTimeout time.Duration
	logger      *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	erpClient ERPClient,
	images imagestore.Store,
	events LifecyclePublisher,
	syncTimeout time.Duration,
) *OrderService {
	return &OrderService{
		store:       store,
		erp:         erpClient,
		images:      images,
		events:      events,
		syncTimeout: syncTimeout,
		logger:      util.GetLogger(),
	}
}

// LineItemRequest is one product line in a submission.
type LineItemRequest struct {
	ProductID         string          `json:"product_id" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	Quantity          int             `json:"quantity" binding:"required,min=1"`
	GrossUnitPrice    decimal.Decimal `json:"gross_unit_price"`
	NetUnitPrice      decimal.Decimal `json:"net_unit_price"`
	SelectedVariation string          `json:"selected_variation"`
}

// CreateOrderRequest is the payload for budget creation and order
// submission. An empty items array fails binding before persistence.
type CreateOrderRequest struct {
	ClientID        int64             `json:"client_id" binding:"required"`
	Items           []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress models.Address    `json:"delivery_address" binding:"required"`
	BillingAddress  models.Address    `json:"billing_address" binding:"required"`
	ProposalDetails string            `json:"proposal_details"`
	Installments    int               `json:"installments"`
}

// CreateOrderResponse is returned after budget creation or order
// submission.
type CreateOrderResponse struct {
	OrderID   int64  `json:"order_id"`
	OrderCode string `json:"order_code"`
	Status    string `json:"status"`
}

func (s *OrderService) buildOrder(ctx context.Context, req *CreateOrderRequest, kind models.OrderKind, status models.OrderStatus) (*models.Order, error) {
	if _, err := s.store.GetClientByID(ctx, req.ClientID); err != nil {
		return nil, err
	}

	code, err := s.store.NextOrderCode(ctx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              code,
		Kind:            kind,
		ClientID:        req.ClientID,
		Status:          status,
		DeliveryAddress: req.DeliveryAddress,
		BillingAddress:  req.BillingAddress,
		ProposalDetails: req.ProposalDetails,
		Installments:    req.Installments,
	}

	total := decimal.Zero
	for _, item := range req.Items {
		li := models.LineItem{
			ProductID:         item.ProductID,
			Name:              item.Name,
			Quantity:          item.Quantity,
			GrossUnitPrice:    item.GrossUnitPrice,
			NetUnitPrice:      item.NetUnitPrice,
			SelectedVariation: item.SelectedVariation,
		}
		total = total.Add(li.LineTotal())
		order.Items = append(order.Items, li)
	}
	order.TotalValue = total

	return order, nil
}

// CreateBudget persists a new quote. No ERP call happens on this path.
func (s *OrderService) CreateBudget(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateBudget")
	defer span.End()

	order, err := s.buildOrder(ctx, req, models.KindBudget, models.StatusQuote)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create budget: %w", err)
	}

	util.BudgetsCreatedTotal.Inc()
	s.logger.Info("Budget created",
		zap.Int64("order_id", order.ID),
		zap.Int64("client_id", order.ClientID))

	s.publishLifecycle(ctx, order)

	return &CreateOrderResponse{
		OrderID:   order.ID,
		OrderCode: localCode(order.ID),
		Status:    order.Status.String(),
	}, nil
}

// SubmitOrder persists a sales order and synchronizes it with the ERP.
// The order is saved before the ERP call; an ERP failure surfaces as an
// upstream error while the persisted order keeps its local code.
func (s *OrderService) SubmitOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SubmitOrder")
	defer span.End()

	order, err := s.buildOrder(ctx, req, models.KindOrder, models.StatusProposalSent)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	client, err := s.store.GetClientByID(ctx, order.ClientID)
	if err != nil {
		return nil, err
	}

	erpCode, err := s.syncWithERP(ctx, order, client)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("erp_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if err := s.store.SetERPResult(ctx, order.ID, erpCode, order.Installments); err != nil {
		return nil, fmt.Errorf("failed to record erp result: %w", err)
	}
	order.ERPCode = erpCode

	util.OrdersSubmittedTotal.Inc()
	s.logger.Info("Order submitted",
		zap.Int64("order_id", order.ID),
		zap.String("erp_code", erpCode))

	s.publishLifecycle(ctx, order)

	return &CreateOrderResponse{
		OrderID:   order.ID,
		OrderCode: erpCode,
		Status:    order.Status.String(),
	}, nil
}

// syncWithERP submits the order and waits for the confirmation code.
// When the ERP never reports one before the deadline, the locally
// allocated code is used so order_code is never left empty.
func (s *OrderService) syncWithERP(ctx context.Context, order *models.Order, client *models.Client) (string, error) {
	items := make([]erp.OrderItem, 0, len(order.Items))
	for _, li := range order.Items {
		items = append(items, erp.OrderItem{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			UnitPrice: li.NetUnitPrice,
		})
	}

	erpID, err := s.erp.SubmitOrder(ctx, &erp.SalesOrder{
		ClientDocument: client.Document,
		ClientName:     client.Name,
		Items:          items,
		TotalValue:     order.TotalValue,
		Observations:   order.ProposalDetails,
	})
	if err != nil {
		return "", err
	}

	pollCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	code, err := s.erp.ConfirmationCode(pollCtx, erpID)
	if err != nil {
		util.ERPSyncFallbacksTotal.Inc()
		s.logger.Warn("ERP confirmation code unavailable, using local code",
			zap.Int64("order_id", order.ID),
			zap.String("erp_id", erpID),
			zap.Error(err))
		return localCode(order.ID), nil
	}

	return code, nil
}

func localCode(orderID int64) string {
	return fmt.Sprintf("LV%d", orderID)
}

// TransitionStatus moves an order through its lifecycle. Illegal moves
// are rejected. Cancelling also removes every stored image of the order.
func (s *OrderService) TransitionStatus(ctx context.Context, orderID int64, next models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.TransitionStatus")
	defer span.End()

	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %d", ErrValidation, next)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Status, next) {
		util.IllegalTransitionsTotal.Inc()
		return nil, &IllegalTransitionError{From: order.Status, To: next}
	}

	if next == models.StatusCancelled {
		if err := s.cancelCascade(ctx, orderID); err != nil {
			return nil, err
		}
		util.OrdersCancelledTotal.Inc()
	}

	if err := s.store.UpdateOrderStatus(ctx, orderID, next); err != nil {
		return nil, err
	}

	util.StatusTransitionsTotal.WithLabelValues(order.Status.String(), next.String()).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", order.Status.String()),
		zap.String("to", next.String()))

	order.Status = next
	if next == models.StatusCancelled {
		order.ImageURLs = []string{}
	}

	s.publishLifecycle(ctx, order)
	return order, nil
}

// cancelCascade deletes every stored object attached to the order and
// clears the image records. Deletion goes by the recorded object names,
// never by name matching, so orders whose IDs share digits are safe.
func (s *OrderService) cancelCascade(ctx context.Context, orderID int64) error {
	images, err := s.store.ListOrderImages(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to list order images: %w", err)
	}

	for _, img := range images {
		if err := s.images.Delete(ctx, img.ObjectName); err != nil {
			return fmt.Errorf("failed to delete order image %s: %w", img.ObjectName, err)
		}
	}

	if err := s.store.ClearOrderImages(ctx, orderID); err != nil {
		return fmt.Errorf("failed to clear image records: %w", err)
	}

	s.logger.Info("Cancelled order cleanup",
		zap.Int64("order_id", orderID),
		zap.Int("objects_removed", len(images)))
	return nil
}

// PriceUpdate carries new prices for one existing line item.
type PriceUpdate struct {
	ItemID         int64           `json:"item_id" binding:"required"`
	GrossUnitPrice decimal.Decimal `json:"gross_unit_price"`
	NetUnitPrice   decimal.Decimal `json:"net_unit_price"`
}

// UpdateLineItemPrices edits item prices. Allowed only while the order
// is still a quote; afterwards prices are locked.
func (s *OrderService) UpdateLineItemPrices(ctx context.Context, orderID int64, updates []PriceUpdate) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateLineItemPrices")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != models.StatusQuote {
		return nil, ErrPriceLocked
	}

	items := make([]models.LineItem, 0, len(updates))
	for _, u := range updates {
		items = append(items, models.LineItem{
			ID:             u.ItemID,
			GrossUnitPrice: u.GrossUnitPrice,
			NetUnitPrice:   u.NetUnitPrice,
		})
	}

	if err := s.store.UpdateLineItemPrices(ctx, orderID, items); err != nil {
		return nil, err
	}

	return s.store.GetOrderByID(ctx, orderID)
}

// ImageUpload is one file to attach to an order.
type ImageUpload struct {
	Filename string
	Data     io.Reader
}

const maxUploadsPerRequest = 5

// AttachImages stores up to five images in parallel and records their
// URLs on the order.
func (s *OrderService) AttachImages(ctx context.Context, orderID int64, uploads []ImageUpload) ([]string, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AttachImages")
	defer span.End()

	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files provided", ErrValidation)
	}
	if len(uploads) > maxUploadsPerRequest {
		return nil, fmt.Errorf("%w: at most %d files per request", ErrValidation, maxUploadsPerRequest)
	}

	if _, err := s.store.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}

	type result struct {
		image models.OrderImage
		err   error
	}

	results := make([]result, len(uploads))
	sem := make(chan struct{}, maxUploadsPerRequest)
	done := make(chan int, len(uploads))

	for i, up := range uploads {
		go func(i int, up ImageUpload) {
			sem <- struct{}{}
			defer func() {
				<-sem
				done <- i
			}()

			name := fmt.Sprintf("imagens/%d_%s_order_%d",
				time.Now().UnixNano(), up.Filename, orderID)
			url, err := s.images.Put(ctx, name, up.Data)
			results[i] = result{
				image: models.OrderImage{OrderID: orderID, ObjectName: name, URL: url},
				err:   err,
			}
		}(i, up)
	}

	for range uploads {
		<-done
	}

	images := make([]models.OrderImage, 0, len(uploads))
	for _, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("failed to store image: %w", r.err)
		}
		images = append(images, r.image)
	}

	if err := s.store.AddOrderImages(ctx, orderID, images); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, img.URL)
	}
	return urls, nil
}

// ProposalPDF renders the proposal document for an order and keeps a
// copy in object storage.
func (s *OrderService) ProposalPDF(ctx context.Context, orderID int64) ([]byte, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ProposalPDF")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	client, err := s.store.GetClientByID(ctx, order.ClientID)
	if err != nil {
		return nil, err
	}

	out, err := pdf.Render(order, client)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("pedidos/pedido_%d_%d.pdf", orderID, time.Now().Unix())
	if _, err := s.images.Put(ctx, name, bytes.NewReader(out)); err != nil {
		s.logger.Warn("Failed to archive proposal pdf",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}

	return out, nil
}

// GetOrder retrieves an order with items and image URLs.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.store.GetOrderByID(ctx, orderID)
}

// ListOrders retrieves orders of one kind, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, kind models.OrderKind, status models.OrderStatus) ([]models.Order, error) {
	return s.store.ListOrders(ctx, kind, status)
}

// publishLifecycle emits the notification event for the order's current
// status. Publish failures are logged and never block the caller.
func (s *OrderService) publishLifecycle(ctx context.Context, order *models.Order) {
	eventType := models.EventTypeForStatus(order.Status)
	if eventType == "" {
		return
	}

	var clientName string
	if client, err := s.store.GetClientByID(ctx, order.ClientID); err == nil {
		clientName = client.Name
	}

	event := &models.OrderLifecycleEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		OrderID:    order.ID,
		ClientID:   order.ClientID,
		ClientName: clientName,
		Status:     order.Status,
		TotalValue: order.TotalValue.StringFixed(2),
	}

	if err := s.events.PublishOrderLifecycle(ctx, event); err != nil {
		s.logger.Error("Failed to publish lifecycle event",
			zap.Int64("order_id", order.ID),
			zap.String("event", eventType),
			zap.Error(err))
	}
}
