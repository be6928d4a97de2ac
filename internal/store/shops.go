package store

import (
	"context"
	"database/sql"

	"github.com/chinmaymk2005/my-local-shop/internal/apperr"
	"github.com/chinmaymk2005/my-local-shop/internal/models"
)

// GetShopByID retrieves a shop by ID
func (s *Store) GetShopByID(ctx context.Context, id int64) (*models.Shop, error) {
	var shop models.Shop
	err := s.db.GetContext(ctx, &shop, "SELECT * FROM shops WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("shop %d does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// GetShopByOwnerID retrieves the shop owned by a user. Each user owns at
// most one shop.
func (s *Store) GetShopByOwnerID(ctx context.Context, ownerID int64) (*models.Shop, error) {
	var shop models.Shop
	err := s.db.GetContext(ctx, &shop, "SELECT * FROM shops WHERE owner_id = $1", ownerID)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("no shop registered for owner %d", ownerID)
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

// GetActiveShops retrieves all active shops for proximity search
func (s *Store) GetActiveShops(ctx context.Context) ([]models.Shop, error) {
	var shops []models.Shop
	err := s.db.SelectContext(ctx, &shops,
		"SELECT * FROM shops WHERE is_active = true ORDER BY id")
	return shops, err
}
