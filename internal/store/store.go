package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/chinmaymk2005/my-local-shop/internal/apperr"
	"github.com/chinmaymk2005/my-local-shop/internal/models"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("product %d does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetProductByShopAndName retrieves a shop's product by case-insensitive name
func (s *Store) GetProductByShopAndName(ctx context.Context, shopID int64, name string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE shop_id = $1 AND lower(name) = lower($2)", shopID, name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct creates a new product listing
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (shop_id, name, category, price, quantity, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, product, query,
		product.ShopID, product.Name, product.Category, product.Price,
		product.Quantity, product.IsAvailable)
}

// UpdateProduct updates price, quantity, category and availability of a listing
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products
		 SET category = $1, price = $2, quantity = $3, is_available = $4, updated_at = NOW()
		 WHERE id = $5`,
		product.Category, product.Price, product.Quantity, product.IsAvailable, product.ID)
	return err
}

// ReserveStockTx atomically checks and decrements product stock within a
// transaction (FOR UPDATE lock). Two concurrent reservations on the same
// product serialize on the row lock, so both can never pass the check
// against a stale read.
func (s *Store) ReserveStockTx(ctx context.Context, productID int64, quantity int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var product models.Product
	err = tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", productID)
	if err == sql.ErrNoRows {
		return apperr.NotFound("product %d does not exist", productID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock product row: %w", err)
	}

	if !product.IsAvailable {
		return apperr.Unavailable("product %d is not available", productID)
	}
	if product.Quantity < quantity {
		return apperr.Unavailable("insufficient stock for product %d: available=%d, requested=%d",
			productID, product.Quantity, quantity)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE products SET quantity = quantity - $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	return tx.Commit()
}

// ReleaseStock credits quantity back to a product unconditionally. Used as
// the inline compensation when an order write fails right after its
// reservation; the caller runs it exactly once.
func (s *Store) ReleaseStock(ctx context.Context, productID int64, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	return err
}

// ReleaseStockForOrder credits quantity back to a product, at most once per
// order. The stock_releases ledger row is the idempotency guard: only the
// call that inserts it performs the credit.
func (s *Store) ReleaseStockForOrder(ctx context.Context, orderID, productID int64, quantity int) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO stock_releases (order_id) VALUES ($1) ON CONFLICT (order_id) DO NOTHING",
		orderID)
	if err != nil {
		return false, fmt.Errorf("failed to record stock release: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE products SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	if err != nil {
		return false, fmt.Errorf("failed to release stock: %w", err)
	}

	return true, tx.Commit()
}
