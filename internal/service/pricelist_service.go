package service

import (
	"context"

	"go.uber.org/zap"

	"sales-service/internal/models"
	"sales-service/internal/util"
)

// PriceListStore is the persistence capability the price-list service
// needs.
type PriceListStore interface {
	CreatePriceList(ctx context.Context, list *models.PriceList) error
	GetPriceListByID(ctx context.Context, id int64) (*models.PriceList, error)
	ListPriceLists(ctx context.Context) ([]models.PriceList, error)
	UpdatePriceList(ctx context.Context, list *models.PriceList) error
	DeletePriceList(ctx context.Context, id int64) error
	ClientNamesReferencing(ctx context.Context, priceListID int64) ([]string, error)
}

// PriceListService handles price-list maintenance.
type PriceListService struct {
	store  PriceListStore
	logger *zap.Logger
}

// NewPriceListService creates a new price list service
func NewPriceListService(store PriceListStore) *PriceListService {
	return &PriceListService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Create persists a new price list with its items.
func (s *PriceListService) Create(ctx context.Context, list *models.PriceList) error {
	return s.store.CreatePriceList(ctx, list)
}

// Get retrieves a price list with items.
func (s *PriceListService) Get(ctx context.Context, id int64) (*models.PriceList, error) {
	return s.store.GetPriceListByID(ctx, id)
}

// List retrieves all price lists.
func (s *PriceListService) List(ctx context.Context) ([]models.PriceList, error) {
	return s.store.ListPriceLists(ctx)
}

// Update rewrites a price list and its items.
func (s *PriceListService) Update(ctx context.Context, list *models.PriceList) error {
	return s.store.UpdatePriceList(ctx, list)
}

// Delete removes a price list. Deletion is blocked while any client
// still references it; the returned error names those clients.
func (s *PriceListService) Delete(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "PriceListService.Delete")
	defer span.End()

	names, err := s.store.ClientNamesReferencing(ctx, id)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return &PriceListInUseError{Clients: names}
	}

	if err := s.store.DeletePriceList(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Price list deleted", zap.Int64("price_list_id", id))
	return nil
}
