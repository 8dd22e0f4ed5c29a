package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sales-service/internal/models"
	"sales-service/internal/util"
)

// ClientStore is the persistence capability the client service needs.
type ClientStore interface {
	CreateClient(ctx context.Context, client *models.Client) error
	GetClientByID(ctx context.Context, id int64) (*models.Client, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	UpdateClient(ctx context.Context, client *models.Client) error
	DeleteClient(ctx context.Context, id int64) error
	ClientExistsByEmailOrDocument(ctx context.Context, email, document string) (bool, error)
}

// ClientPublisher publishes client events.
type ClientPublisher interface {
	PublishClientCreated(ctx context.Context, event *models.ClientCreatedEvent) error
}

// ClientService handles client registration and maintenance.
type ClientService struct {
	store  ClientStore
	events ClientPublisher
	logger *zap.Logger
}

// NewClientService creates a new client service
func NewClientService(store ClientStore, events ClientPublisher) *ClientService {
	return &ClientService{
		store:  store,
		events: events,
		logger: util.GetLogger(),
	}
}

// CreateClientRequest is the payload for client registration.
type CreateClientRequest struct {
	Name        string         `json:"name" binding:"required"`
	Email       string         `json:"email" binding:"required,email"`
	Document    string         `json:"document" binding:"required"`
	Phone       string         `json:"phone"`
	Address     models.Address `json:"address"`
	PriceListID int64          `json:"price_list_id"`
}

// Create registers a new client. A duplicate email or document aborts
// before anything is written, so no side effects leak on conflict.
func (s *ClientService) Create(ctx context.Context, req *CreateClientRequest) (*models.Client, error) {
	ctx, span := util.StartSpan(ctx, "ClientService.Create")
	defer span.End()

	exists, err := s.store.ClientExistsByEmailOrDocument(ctx, req.Email, req.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicates: %w", err)
	}
	if exists {
		return nil, ErrDuplicateClient
	}

	client := &models.Client{
		Name:        req.Name,
		Email:       req.Email,
		Document:    req.Document,
		Phone:       req.Phone,
		Address:     req.Address,
		PriceListID: req.PriceListID,
	}

	if err := s.store.CreateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.logger.Info("Client created",
		zap.Int64("client_id", client.ID),
		zap.String("name", client.Name))

	event := &models.ClientCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeClientCreated,
			Timestamp: time.Now(),
		},
		ClientID: client.ID,
		Name:     client.Name,
		Email:    client.Email,
		Phone:    client.Phone,
	}
	if err := s.events.PublishClientCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish ClientCreated event", zap.Error(err))
	}

	return client, nil
}

// Get retrieves a client by ID.
func (s *ClientService) Get(ctx context.Context, id int64) (*models.Client, error) {
	return s.store.GetClientByID(ctx, id)
}

// List retrieves all clients.
func (s *ClientService) List(ctx context.Context) ([]models.Client, error) {
	return s.store.ListClients(ctx)
}

// Update rewrites a client's fields.
func (s *ClientService) Update(ctx context.Context, client *models.Client) error {
	return s.store.UpdateClient(ctx, client)
}

// Delete removes a client. Orders referencing it are untouched.
func (s *ClientService) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteClient(ctx, id)
}
