package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/chinmaymk2005/my-local-shop/config"
	"github.com/chinmaymk2005/my-local-shop/internal/apperr"
	"github.com/chinmaymk2005/my-local-shop/internal/models"
	"github.com/chinmaymk2005/my-local-shop/internal/util"
)

// OrderStore is the persistence surface the order lifecycle needs.
type OrderStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetShopByID(ctx context.Context, id int64) (*models.Shop, error)
	GetShopByOwnerID(ctx context.Context, ownerID int64) (*models.Shop, error)
	CreateOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	MarkOrderConfirmed(ctx context.Context, orderID int64, status string, inTime bool, at time.Time) error
	MarkOrderExpired(ctx context.Context, orderID int64) error
	MarkOrderCompleted(ctx context.Context, orderID int64, at time.Time) error
	MarkOrderCancelled(ctx context.Context, orderID int64) error
	GetOrdersByCustomerID(ctx context.Context, customerID int64) ([]models.Order, error)
	GetOrdersByShopID(ctx context.Context, shopID int64) ([]models.Order, error)
	GetIncompleteOrders(ctx context.Context) ([]models.Order, error)
}

// Inventory is the ledger the lifecycle reserves against.
type Inventory interface {
	Reserve(ctx context.Context, productID int64, quantity int) (bool, error)
	Release(ctx context.Context, productID int64, quantity int) error
	ReleaseForOrder(ctx context.Context, orderID, productID int64, quantity int) (bool, error)
}

// DeadlineTimers is the scheduler surface the lifecycle arms and cancels.
type DeadlineTimers interface {
	Arm(orderID int64, deadline time.Time)
	Cancel(orderID int64)
}

// EventSink publishes lifecycle events. Best-effort: publish failures are
// logged, never propagated to the caller.
type EventSink interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishOrderUnconfirmed(ctx context.Context, event *models.OrderUnconfirmedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// OrderService owns the order state machine: create, confirm before or
// after the deadline, complete, cancel, and the scheduler-driven expiry.
type OrderService struct {
	store     OrderStore
	inventory Inventory
	timers    DeadlineTimers
	events    EventSink
	deadlines config.OrderConfig
	locks     *orderLocks
	logger    *zap.Logger

	now func() time.Time
}

// NewOrderService creates the order lifecycle service. events may be nil.
func NewOrderService(
	store OrderStore,
	inventory Inventory,
	timers DeadlineTimers,
	events EventSink,
	deadlines config.OrderConfig,
) *OrderService {
	return &OrderService{
		store:     store,
		inventory: inventory,
		timers:    timers,
		events:    events,
		deadlines: deadlines,
		locks:     newOrderLocks(),
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// CreateOrderRequest is a validated order creation input.
type CreateOrderRequest struct {
	CustomerID        int64  `json:"customer_id"`
	ProductID         int64  `json:"product_id" binding:"required"`
	Quantity          int    `json:"quantity" binding:"required,min=1"`
	FulfillmentMode   string `json:"fulfillment_mode" binding:"required,oneof=pickup delivery"`
	ConvenienceWindow string `json:"convenience_window" binding:"required,oneof=20mins 40mins 1-2hours anytime_today"`
}

func (r *CreateOrderRequest) validate() error {
	if r.Quantity <= 0 {
		return apperr.InvalidArgument("quantity must be positive, got %d", r.Quantity)
	}
	if !models.ValidFulfillmentMode(r.FulfillmentMode) {
		return apperr.InvalidArgument("fulfillment mode must be pickup or delivery, got %q", r.FulfillmentMode)
	}
	if !models.ValidWindow(r.ConvenienceWindow) {
		return apperr.InvalidArgument("unknown convenience window %q", r.ConvenienceWindow)
	}
	return nil
}

// CreateOrder reserves stock, persists the order with its confirmation
// deadline, and arms the deadline timer. The reservation and the order
// write form one logical transaction: a failed write releases the
// reservation before the error is reported.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	product, err := s.store.GetProductByID(ctx, req.ProductID)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("product_lookup").Inc()
		return nil, err
	}
	if !product.IsAvailable {
		util.OrdersFailedTotal.WithLabelValues("unavailable").Inc()
		return nil, apperr.Unavailable("product %d is not available", product.ID)
	}

	reserved, err := s.inventory.Reserve(ctx, product.ID, req.Quantity)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("reservation_error").Inc()
		return nil, err
	}
	if !reserved {
		util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		return nil, apperr.Unavailable("product %d not available in requested quantity %d",
			product.ID, req.Quantity)
	}

	createdAt := s.now()
	deadline := s.deadlines.Deadline(req.ConvenienceWindow, createdAt)

	order := &models.Order{
		CustomerID:           req.CustomerID,
		ShopID:               product.ShopID,
		TotalAmount:          product.Price * int64(req.Quantity),
		FulfillmentMode:      req.FulfillmentMode,
		ConvenienceWindow:    req.ConvenienceWindow,
		Status:               models.OrderStatusIncomplete,
		ConfirmationDeadline: deadline,
	}
	items := []models.OrderItem{{
		ProductID: product.ID,
		Name:      product.Name,
		Quantity:  req.Quantity,
		UnitPrice: product.Price,
	}}

	if err := s.store.CreateOrderWithItems(ctx, order, items); err != nil {
		// The reservation must not outlive a failed order write.
		if relErr := s.inventory.Release(ctx, product.ID, req.Quantity); relErr != nil {
			s.logger.Error("failed to compensate reservation after order write failure",
				zap.Int64("product_id", product.ID),
				zap.Error(relErr))
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, err
	}

	// Armed before the creation call returns, so no order exists without an
	// active or already-fired timer.
	s.timers.Arm(order.ID, deadline)

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("shop_id", order.ShopID),
		zap.String("window", req.ConvenienceWindow),
		zap.Time("deadline", deadline))

	s.publishCreated(ctx, order, items)
	return order, nil
}

// ConfirmOrder applies the shop owner's confirmation. Confirmation at or
// before the deadline lands in `confirmed`; a late confirm still lands in
// `unconfirmed` and can never produce `confirmed`. Either outcome cancels
// the pending timer.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID, actorID int64) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.ConfirmOrder", orderID)
	defer span.End()

	unlock := s.locks.lock(orderID)
	defer unlock()

	order, err := s.loadOwnedOrder(ctx, orderID, actorID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusIncomplete {
		return nil, apperr.InvalidState("cannot confirm order %d with status %q", orderID, order.Status)
	}

	now := s.now()
	inTime := !now.After(order.ConfirmationDeadline)
	status := models.OrderStatusConfirmed
	if !inTime {
		status = models.OrderStatusUnconfirmed
	}

	if err := s.store.MarkOrderConfirmed(ctx, orderID, status, inTime, now); err != nil {
		return nil, err
	}
	s.timers.Cancel(orderID)

	order.Status = status
	order.ConfirmedInTime = sql.NullBool{Bool: inTime, Valid: true}
	order.ConfirmedAt = sql.NullTime{Time: now, Valid: true}

	util.OrdersConfirmedTotal.WithLabelValues(boolLabel(inTime)).Inc()
	s.logger.Info("order confirm decided",
		zap.Int64("order_id", orderID),
		zap.String("status", status),
		zap.Bool("in_time", inTime))

	if inTime {
		s.publishConfirmed(ctx, order)
	} else {
		s.publishUnconfirmed(ctx, order, "confirmed after deadline")
	}
	return order, nil
}

// CompleteOrder marks a confirmed order as handed over. Only reachable from
// `confirmed`.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID, actorID int64) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.CompleteOrder", orderID)
	defer span.End()

	unlock := s.locks.lock(orderID)
	defer unlock()

	order, err := s.loadOwnedOrder(ctx, orderID, actorID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusConfirmed {
		return nil, apperr.InvalidState(
			"cannot complete order %d with status %q, only confirmed orders can be completed",
			orderID, order.Status)
	}

	now := s.now()
	if err := s.store.MarkOrderCompleted(ctx, orderID, now); err != nil {
		return nil, err
	}

	order.Status = models.OrderStatusCompleted
	order.CompletedAt = sql.NullTime{Time: now, Valid: true}

	util.OrdersCompletedTotal.Inc()
	s.logger.Info("order completed", zap.Int64("order_id", orderID))

	s.publishCompleted(ctx, order)
	return order, nil
}

// CancelOrder cancels an order still in `incomplete` or `confirmed`, drops
// its timer, and releases the reservation exactly once. Permitted to the
// customer who placed it or the owner of the shop it targets.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, actorID int64) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.CancelOrder", orderID)
	defer span.End()

	unlock := s.locks.lock(orderID)
	defer unlock()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != actorID {
		shop, err := s.store.GetShopByID(ctx, order.ShopID)
		if err != nil {
			return nil, err
		}
		if shop.OwnerID != actorID {
			return nil, apperr.Forbidden("actor %d may not cancel order %d", actorID, orderID)
		}
	}
	if models.TerminalStatus(order.Status) {
		return nil, apperr.InvalidState("cannot cancel order %d with status %q", orderID, order.Status)
	}

	if err := s.store.MarkOrderCancelled(ctx, orderID); err != nil {
		return nil, err
	}
	s.timers.Cancel(orderID)
	s.releaseOrderStock(ctx, orderID)

	order.Status = models.OrderStatusCancelled

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("order cancelled", zap.Int64("order_id", orderID))

	s.publishCancelled(ctx, order, "cancelled by actor")
	return order, nil
}

// ExpireOrder is the scheduler's fire path. If the order is still
// `incomplete` when the deadline elapses it moves to `unconfirmed`;
// otherwise a manual confirm already won and this is a no-op. Runs under
// the same per-order critical section as ConfirmOrder.
func (s *OrderService) ExpireOrder(ctx context.Context, orderID int64) error {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.ExpireOrder", orderID)
	defer span.End()

	unlock := s.locks.lock(orderID)
	defer unlock()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil
		}
		return err
	}
	if order.Status != models.OrderStatusIncomplete {
		return nil
	}

	if err := s.store.MarkOrderExpired(ctx, orderID); err != nil {
		if apperr.KindOf(err) == apperr.KindInvalidState {
			return nil
		}
		return err
	}

	order.Status = models.OrderStatusUnconfirmed
	order.ConfirmedInTime = sql.NullBool{Bool: false, Valid: true}

	util.OrdersExpiredTotal.Inc()
	s.logger.Info("order auto-expired at deadline", zap.Int64("order_id", orderID))

	s.publishUnconfirmed(ctx, order, "confirmation deadline elapsed")
	return nil
}

// ListCustomerOrders returns a customer's orders, newest first.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID int64) ([]models.Order, error) {
	return s.store.GetOrdersByCustomerID(ctx, customerID)
}

// ListShopOrders returns the orders of the shop owned by actorID, newest
// first.
func (s *OrderService) ListShopOrders(ctx context.Context, actorID int64) ([]models.Order, error) {
	shop, err := s.store.GetShopByOwnerID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.store.GetOrdersByShopID(ctx, shop.ID)
}

// RearmPending re-arms deadline timers for every incomplete order, called
// once at startup. Orders whose deadline already passed fire immediately.
func (s *OrderService) RearmPending(ctx context.Context) error {
	orders, err := s.store.GetIncompleteOrders(ctx)
	if err != nil {
		return err
	}
	for _, order := range orders {
		s.timers.Arm(order.ID, order.ConfirmationDeadline)
	}
	if len(orders) > 0 {
		s.logger.Info("re-armed deadline timers", zap.Int("count", len(orders)))
	}
	return nil
}

// loadOwnedOrder loads an order and verifies the actor owns its shop.
func (s *OrderService) loadOwnedOrder(ctx context.Context, orderID, actorID int64) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	shop, err := s.store.GetShopByID(ctx, order.ShopID)
	if err != nil {
		return nil, err
	}
	if shop.OwnerID != actorID {
		return nil, apperr.Forbidden("actor %d does not own the shop for order %d", actorID, orderID)
	}
	return order, nil
}

// releaseOrderStock releases the reservation behind every line item of a
// cancelled order. Idempotent per order through the release ledger.
func (s *OrderService) releaseOrderStock(ctx context.Context, orderID int64) {
	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("failed to load items for stock release",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return
	}
	for _, item := range items {
		if _, err := s.inventory.ReleaseForOrder(ctx, orderID, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("failed to release stock for cancelled order",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
		}
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
