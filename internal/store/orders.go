package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chinmaymk2005/my-local-shop/internal/apperr"
	"github.com/chinmaymk2005/my-local-shop/internal/models"
)

// CreateOrderWithItems persists an order and its line items in one
// transaction. Either everything lands or nothing does; the caller treats a
// failure here as the signal to release its inventory reservation.
func (s *Store) CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (customer_id, shop_id, total_amount, fulfillment_mode,
		                    convenience_window, status, confirmation_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err = tx.GetContext(ctx, order, query,
		order.CustomerID, order.ShopID, order.TotalAmount, order.FulfillmentMode,
		order.ConvenienceWindow, order.Status, order.ConfirmationDeadline)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err = tx.GetContext(ctx, &items[i].ID,
			`INSERT INTO order_items (order_id, product_id, name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			items[i].OrderID, items[i].ProductID, items[i].Name,
			items[i].Quantity, items[i].UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order %d does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// MarkOrderConfirmed stamps the confirm decision. The WHERE clause is the
// database-level guard that an order leaves `incomplete` exactly once, even
// if a caller slipped past the in-process lock.
func (s *Store) MarkOrderConfirmed(ctx context.Context, orderID int64, status string, inTime bool, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, confirmed_in_time = $2, confirmed_at = $3
		 WHERE id = $4 AND status = $5`,
		status, inTime, at, orderID, models.OrderStatusIncomplete)
	if err != nil {
		return err
	}
	return requireTransition(res, orderID)
}

// MarkOrderExpired moves a still-incomplete order to unconfirmed when the
// deadline elapses without a confirmation. confirmed_at stays null: nobody
// confirmed anything.
func (s *Store) MarkOrderExpired(ctx context.Context, orderID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, confirmed_in_time = false
		 WHERE id = $2 AND status = $3`,
		models.OrderStatusUnconfirmed, orderID, models.OrderStatusIncomplete)
	if err != nil {
		return err
	}
	return requireTransition(res, orderID)
}

// MarkOrderCompleted stamps completion; only confirmed orders qualify.
func (s *Store) MarkOrderCompleted(ctx context.Context, orderID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`,
		models.OrderStatusCompleted, at, orderID, models.OrderStatusConfirmed)
	if err != nil {
		return err
	}
	return requireTransition(res, orderID)
}

// MarkOrderCancelled cancels an order still in a cancellable state.
func (s *Store) MarkOrderCancelled(ctx context.Context, orderID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND status IN ($3, $4)`,
		models.OrderStatusCancelled, orderID,
		models.OrderStatusIncomplete, models.OrderStatusConfirmed)
	if err != nil {
		return err
	}
	return requireTransition(res, orderID)
}

func requireTransition(res sql.Result, orderID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.InvalidState("order %d is not in a state permitting this transition", orderID)
	}
	return nil
}

// GetOrdersByCustomerID retrieves a customer's orders, newest first
func (s *Store) GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}

// GetOrdersByShopID retrieves a shop's orders, newest first
func (s *Store) GetOrdersByShopID(ctx context.Context, shopID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE shop_id = $1 ORDER BY created_at DESC", shopID)
	return orders, err
}

// GetIncompleteOrders returns all orders still awaiting confirmation, used
// to re-arm deadline timers after a restart.
func (s *Store) GetIncompleteOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE status = $1", models.OrderStatusIncomplete)
	return orders, err
}
