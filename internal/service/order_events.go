package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chinmaymk2005/my-local-shop/internal/models"
)

func baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func (s *OrderService) publishCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if s.events == nil {
		return
	}
	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:            baseEvent(models.EventTypeOrderCreated),
		OrderID:              order.ID,
		CustomerID:           order.CustomerID,
		ShopID:               order.ShopID,
		TotalAmount:          order.TotalAmount,
		ConvenienceWindow:    order.ConvenienceWindow,
		ConfirmationDeadline: order.ConfirmationDeadline,
		Items:                eventItems,
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("failed to publish order created event", zap.Error(err))
	}
}

func (s *OrderService) publishConfirmed(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	event := &models.OrderConfirmedEvent{
		BaseEvent:  baseEvent(models.EventTypeOrderConfirmed),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ShopID:     order.ShopID,
	}
	if err := s.events.PublishOrderConfirmed(ctx, event); err != nil {
		s.logger.Error("failed to publish order confirmed event", zap.Error(err))
	}
}

func (s *OrderService) publishUnconfirmed(ctx context.Context, order *models.Order, reason string) {
	if s.events == nil {
		return
	}
	event := &models.OrderUnconfirmedEvent{
		BaseEvent:  baseEvent(models.EventTypeOrderUnconfirmed),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ShopID:     order.ShopID,
		Reason:     reason,
	}
	if err := s.events.PublishOrderUnconfirmed(ctx, event); err != nil {
		s.logger.Error("failed to publish order unconfirmed event", zap.Error(err))
	}
}

func (s *OrderService) publishCompleted(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	event := &models.OrderCompletedEvent{
		BaseEvent:  baseEvent(models.EventTypeOrderCompleted),
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ShopID:     order.ShopID,
	}
	if err := s.events.PublishOrderCompleted(ctx, event); err != nil {
		s.logger.Error("failed to publish order completed event", zap.Error(err))
	}
}

func (s *OrderService) publishCancelled(ctx context.Context, order *models.Order, reason string) {
	if s.events == nil {
		return
	}
	event := &models.OrderCancelledEvent{
		BaseEvent: baseEvent(models.EventTypeOrderCancelled),
		OrderID:   order.ID,
		Reason:    reason,
	}
	if err := s.events.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("failed to publish order cancelled event", zap.Error(err))
	}
}
