package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"sales-service/internal/models"
)

// orderRow flattens the two address blocks into columns.
type orderRow struct {
	ID              int64              `db:"id"`
	Kind            models.OrderKind   `db:"kind"`
	ClientID        int64              `db:"client_id"`
	Status          models.OrderStatus `db:"status"`
	TotalValue      decimal.Decimal    `db:"total_value"`
	ProposalDetails string             `db:"proposal_details"`
	ERPCode         string             `db:"erp_code"`
	Installments    int                `db:"installments"`
	CreatedAt       sql.NullTime       `db:"created_at"`
	UpdatedAt       sql.NullTime       `db:"updated_at"`

	DeliveryCEP          string `db:"delivery_cep"`
	DeliveryStreet       string `db:"delivery_street"`
	DeliveryNumber       string `db:"delivery_number"`
	DeliveryComplement   string `db:"delivery_complement"`
	DeliveryNeighborhood string `db:"delivery_neighborhood"`
	DeliveryCity         string `db:"delivery_city"`
	DeliveryState        string `db:"delivery_state"`

	BillingCEP          string `db:"billing_cep"`
	BillingStreet       string `db:"billing_street"`
	BillingNumber       string `db:"billing_number"`
	BillingComplement   string `db:"billing_complement"`
	BillingNeighborhood string `db:"billing_neighborhood"`
	BillingCity         string `db:"billing_city"`
	BillingState        string `db:"billing_state"`
}

func (r *orderRow) toModel() *models.Order {
	o := &models.Order{
		ID:              r.ID,
		Kind:            r.Kind,
		ClientID:        r.ClientID,
		Status:          r.Status,
		TotalValue:      r.TotalValue,
		ProposalDetails: r.ProposalDetails,
		ERPCode:         r.ERPCode,
		Installments:    r.Installments,
		DeliveryAddress: models.Address{
			CEP:          r.DeliveryCEP,
			Street:       r.DeliveryStreet,
			Number:       r.DeliveryNumber,
			Complement:   r.DeliveryComplement,
			Neighborhood: r.DeliveryNeighborhood,
			City:         r.DeliveryCity,
			State:        r.DeliveryState,
		},
		BillingAddress: models.Address{
			CEP:          r.BillingCEP,
			Street:       r.BillingStreet,
			Number:       r.BillingNumber,
			Complement:   r.BillingComplement,
			Neighborhood: r.BillingNeighborhood,
			City:         r.BillingCity,
			State:        r.BillingState,
		},
	}
	if r.CreatedAt.Valid {
		o.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		o.UpdatedAt = r.UpdatedAt.Time
	}
	return o
}

// CreateOrder persists an order and its items in a single transaction.
// The caller supplies the pre-allocated sequential ID.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (
			id, kind, client_id, status, total_value, proposal_details,
			erp_code, installments,
			delivery_cep, delivery_street, delivery_number, delivery_complement,
			delivery_neighborhood, delivery_city, delivery_state,
			billing_cep, billing_street, billing_number, billing_complement,
			billing_neighborhood, billing_city, billing_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22)
		RETURNING created_at, updated_at`

	d := order.DeliveryAddress
	b := order.BillingAddress
	row := tx.QueryRowxContext(ctx, query,
		order.ID, order.Kind, order.ClientID, order.Status, order.TotalValue,
		order.ProposalDetails, order.ERPCode, order.Installments,
		d.CEP, d.Street, d.Number, d.Complement, d.Neighborhood, d.City, d.State,
		b.CEP, b.Street, b.Number, b.Complement, b.Neighborhood, b.City, b.State)
	if err := row.Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (
			order_id, product_id, name, quantity,
			gross_unit_price, net_unit_price, selected_variation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := tx.QueryRowxContext(ctx, itemQuery,
			item.OrderID, item.ProductID, item.Name, item.Quantity,
			item.GrossUnitPrice, item.NetUnitPrice, item.SelectedVariation,
		).Scan(&item.ID); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its items and image URLs.
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	order := row.toModel()

	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", id); err != nil {
		return nil, err
	}

	images, err := s.ListOrderImages(ctx, id)
	if err != nil {
		return nil, err
	}
	order.ImageURLs = make([]string, 0, len(images))
	for _, img := range images {
		order.ImageURLs = append(order.ImageURLs, img.URL)
	}

	return order, nil
}

// ListOrders retrieves orders of one kind, optionally filtered by status
// (pass 0 for all statuses). Items are not loaded.
func (s *Store) ListOrders(ctx context.Context, kind models.OrderKind, status models.OrderStatus) ([]models.Order, error) {
	var rows []orderRow
	var err error
	if status == 0 {
		err = s.db.SelectContext(ctx, &rows,
			"SELECT * FROM orders WHERE kind = $1 ORDER BY created_at DESC", kind)
	} else {
		err = s.db.SelectContext(ctx, &rows,
			"SELECT * FROM orders WHERE kind = $1 AND status = $2 ORDER BY created_at DESC", kind, status)
	}
	if err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, *rows[i].toModel())
	}
	return orders, nil
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order not found: %d: %w", orderID, ErrNotFound)
	}
	return nil
}

// SetERPResult records the ERP confirmation code and payment installments.
func (s *Store) SetERPResult(ctx context.Context, orderID int64, erpCode string, installments int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET erp_code = $1, installments = $2, updated_at = NOW() WHERE id = $3",
		erpCode, installments, orderID)
	return err
}

// UpdateLineItemPrices rewrites prices for items of one order.
func (s *Store) UpdateLineItemPrices(ctx context.Context, orderID int64, items []models.LineItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		res, err := tx.ExecContext(ctx,
			`UPDATE order_items SET gross_unit_price = $1, net_unit_price = $2
			 WHERE id = $3 AND order_id = $4`,
			item.GrossUnitPrice, item.NetUnitPrice, item.ID, orderID)
		if err != nil {
			return fmt.Errorf("failed to update item %d: %w", item.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("order item not found: %d: %w", item.ID, ErrNotFound)
		}
	}

	var total decimal.Decimal
	if err := tx.GetContext(ctx, &total,
		"SELECT COALESCE(SUM(net_unit_price * quantity), 0) FROM order_items WHERE order_id = $1",
		orderID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET total_value = $1, updated_at = NOW() WHERE id = $2",
		total, orderID); err != nil {
		return err
	}

	return tx.Commit()
}

// AddOrderImages appends stored image objects to an order.
func (s *Store) AddOrderImages(ctx context.Context, orderID int64, images []models.OrderImage) error {
	for i := range images {
		images[i].OrderID = orderID
		if err := s.db.QueryRowxContext(ctx,
			"INSERT INTO order_images (order_id, object_name, url) VALUES ($1, $2, $3) RETURNING id",
			orderID, images[i].ObjectName, images[i].URL,
		).Scan(&images[i].ID); err != nil {
			return fmt.Errorf("failed to insert order image: %w", err)
		}
	}
	return nil
}

// ListOrderImages retrieves all stored objects for an order.
func (s *Store) ListOrderImages(ctx context.Context, orderID int64) ([]models.OrderImage, error) {
	var images []models.OrderImage
	err := s.db.SelectContext(ctx, &images,
		"SELECT * FROM order_images WHERE order_id = $1 ORDER BY id", orderID)
	return images, err
}

// ClearOrderImages removes all image records for an order.
func (s *Store) ClearOrderImages(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM order_images WHERE order_id = $1", orderID)
	return err
}
