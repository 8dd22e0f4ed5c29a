package store

import (
	"context"
	"database/sql"
	"fmt"

	"sales-service/internal/models"
)

type clientRow struct {
	ID          int64        `db:"id"`
	Name        string       `db:"name"`
	Email       string       `db:"email"`
	Document    string       `db:"document"`
	Phone       string       `db:"phone"`
	PriceListID int64        `db:"price_list_id"`
	CreatedAt   sql.NullTime `db:"created_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`

	CEP          string `db:"cep"`
	Street       string `db:"street"`
	Number       string `db:"number"`
	Complement   string `db:"complement"`
	Neighborhood string `db:"neighborhood"`
	City         string `db:"city"`
	State        string `db:"state"`
}

func (r *clientRow) toModel() *models.Client {
	c := &models.Client{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		Document:    r.Document,
		Phone:       r.Phone,
		PriceListID: r.PriceListID,
		Address: models.Address{
			CEP:          r.CEP,
			Street:       r.Street,
			Number:       r.Number,
			Complement:   r.Complement,
			Neighborhood: r.Neighborhood,
			City:         r.City,
			State:        r.State,
		},
	}
	if r.CreatedAt.Valid {
		c.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		c.UpdatedAt = r.UpdatedAt.Time
	}
	return c
}

// CreateClient persists a new client.
func (s *Store) CreateClient(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (
			name, email, document, phone, price_list_id,
			cep, street, number, complement, neighborhood, city, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	a := client.Address
	return s.db.QueryRowxContext(ctx, query,
		client.Name, client.Email, client.Document, client.Phone, client.PriceListID,
		a.CEP, a.Street, a.Number, a.Complement, a.Neighborhood, a.City, a.State,
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
}

// GetClientByID retrieves a client by ID
func (s *Store) GetClientByID(ctx context.Context, id int64) (*models.Client, error) {
	var row clientRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM clients WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("client not found: %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// ListClients retrieves all clients
func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	var rows []clientRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM clients ORDER BY name"); err != nil {
		return nil, err
	}
	clients := make([]models.Client, 0, len(rows))
	for i := range rows {
		clients = append(clients, *rows[i].toModel())
	}
	return clients, nil
}

// UpdateClient rewrites a client's mutable fields.
func (s *Store) UpdateClient(ctx context.Context, client *models.Client) error {
	query := `
		UPDATE clients SET
			name = $1, email = $2, document = $3, phone = $4, price_list_id = $5,
			cep = $6, street = $7, number = $8, complement = $9,
			neighborhood = $10, city = $11, state = $12, updated_at = NOW()
		WHERE id = $13`

	a := client.Address
	res, err := s.db.ExecContext(ctx, query,
		client.Name, client.Email, client.Document, client.Phone, client.PriceListID,
		a.CEP, a.Street, a.Number, a.Complement, a.Neighborhood, a.City, a.State,
		client.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("client not found: %d: %w", client.ID, ErrNotFound)
	}
	return nil
}

// DeleteClient removes a client. Orders keep their client_id; the
// reference is weak and nothing cascades.
func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM clients WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("client not found: %d: %w", id, ErrNotFound)
	}
	return nil
}

// ClientExistsByEmailOrDocument reports whether any client already uses
// the given email or CPF/CNPJ.
func (s *Store) ClientExistsByEmailOrDocument(ctx context.Context, email, document string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM clients WHERE email = $1 OR document = $2)",
		email, document)
	return exists, err
}
