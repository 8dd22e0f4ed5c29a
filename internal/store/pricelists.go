package store

import (
	"context"
	"database/sql"
	"fmt"

	"sales-service/internal/models"
)

// CreatePriceList persists a price list and its items in one transaction.
func (s *Store) CreatePriceList(ctx context.Context, list *models.PriceList) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.QueryRowxContext(ctx,
		"INSERT INTO price_lists (name) VALUES ($1) RETURNING id, created_at, updated_at",
		list.Name,
	).Scan(&list.ID, &list.CreatedAt, &list.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert price list: %w", err)
	}

	for i := range list.Items {
		item := &list.Items[i]
		item.PriceListID = list.ID
		if err := tx.QueryRowxContext(ctx,
			"INSERT INTO price_list_items (price_list_id, product_id, name, price) VALUES ($1, $2, $3, $4) RETURNING id",
			item.PriceListID, item.ProductID, item.Name, item.Price,
		).Scan(&item.ID); err != nil {
			return fmt.Errorf("failed to insert price list item: %w", err)
		}
	}

	return tx.Commit()
}

// GetPriceListByID retrieves a price list with its items.
func (s *Store) GetPriceListByID(ctx context.Context, id int64) (*models.PriceList, error) {
	var list models.PriceList
	err := s.db.GetContext(ctx, &list, "SELECT * FROM price_lists WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("price list not found: %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.SelectContext(ctx, &list.Items,
		"SELECT * FROM price_list_items WHERE price_list_id = $1 ORDER BY name", id); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListPriceLists retrieves all price lists without items.
func (s *Store) ListPriceLists(ctx context.Context) ([]models.PriceList, error) {
	var lists []models.PriceList
	err := s.db.SelectContext(ctx, &lists, "SELECT * FROM price_lists ORDER BY name")
	return lists, err
}

// UpdatePriceList rewrites a price list's name and replaces its items.
func (s *Store) UpdatePriceList(ctx context.Context, list *models.PriceList) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE price_lists SET name = $1, updated_at = NOW() WHERE id = $2",
		list.Name, list.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("price list not found: %d: %w", list.ID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM price_list_items WHERE price_list_id = $1", list.ID); err != nil {
		return err
	}

	for i := range list.Items {
		item := &list.Items[i]
		item.PriceListID = list.ID
		if err := tx.QueryRowxContext(ctx,
			"INSERT INTO price_list_items (price_list_id, product_id, name, price) VALUES ($1, $2, $3, $4) RETURNING id",
			item.PriceListID, item.ProductID, item.Name, item.Price,
		).Scan(&item.ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeletePriceList removes a price list and its items. Callers must check
// for referencing clients first; the store does not re-check.
func (s *Store) DeletePriceList(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM price_list_items WHERE price_list_id = $1", id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM price_lists WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("price list not found: %d: %w", id, ErrNotFound)
	}

	return tx.Commit()
}

// ClientNamesReferencing returns the names of clients whose price list is
// the given one.
func (s *Store) ClientNamesReferencing(ctx context.Context, priceListID int64) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names,
		"SELECT name FROM clients WHERE price_list_id = $1 ORDER BY name", priceListID)
	return names, err
}
