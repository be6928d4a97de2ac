package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/chinmaymk2005/my-local-shop/internal/broker"
	"github.com/chinmaymk2005/my-local-shop/internal/models"
	"github.com/chinmaymk2005/my-local-shop/internal/util"
)

// NotificationWorker consumes order lifecycle events and emits customer and
// shop notifications. Delivery is best-effort; the lifecycle never waits on
// it.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a worker wired to the lifecycle events.
func NewNotificationWorker(consumer *broker.Consumer) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		logger:   util.NamedLogger("notifications"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.notifyOrderCreated)
	eventHandler.OnOrderConfirmed(w.notifyOrderConfirmed)
	eventHandler.OnOrderUnconfirmed(w.notifyOrderUnconfirmed)
	eventHandler.OnOrderCompleted(w.notifyOrderCompleted)
	eventHandler.OnOrderCancelled(w.notifyOrderCancelled)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) notifyOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	w.logger.Info("notify shop: new order awaiting confirmation",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("shop_id", event.ShopID),
		zap.Time("confirmation_deadline", event.ConfirmationDeadline))
	return nil
}

func (w *NotificationWorker) notifyOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	w.logger.Info("notify customer: order confirmed",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("customer_id", event.CustomerID))
	return nil
}

func (w *NotificationWorker) notifyOrderUnconfirmed(ctx context.Context, event *models.OrderUnconfirmedEvent) error {
	w.logger.Info("notify customer: shop did not confirm in time",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("customer_id", event.CustomerID),
		zap.String("reason", event.Reason))
	return nil
}

func (w *NotificationWorker) notifyOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	w.logger.Info("notify customer: order completed",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("customer_id", event.CustomerID))
	return nil
}

func (w *NotificationWorker) notifyOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	w.logger.Info("notify shop: order cancelled",
		zap.Int64("order_id", event.OrderID),
		zap.String("reason", event.Reason))
	return nil
}
