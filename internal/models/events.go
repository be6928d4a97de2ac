package models

import "time"

// Event types
const (
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypeOrderConfirmed   = "ORDER_CONFIRMED"
	EventTypeOrderUnconfirmed = "ORDER_UNCONFIRMED"
	EventTypeOrderCompleted   = "ORDER_COMPLETED"
	EventTypeOrderCancelled   = "ORDER_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is placed and stock reserved
type OrderCreatedEvent struct {
	BaseEvent
	OrderID              int64           `json:"order_id"`
	CustomerID           int64           `json:"customer_id"`
	ShopID               int64           `json:"shop_id"`
	TotalAmount          int64           `json:"total_amount"`
	ConvenienceWindow    string          `json:"convenience_window"`
	ConfirmationDeadline time.Time       `json:"confirmation_deadline"`
	Items                []OrderItemData `json:"items"`
}

// OrderConfirmedEvent published when the shop confirms before the deadline
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID    int64 `json:"order_id"`
	CustomerID int64 `json:"customer_id"`
	ShopID     int64 `json:"shop_id"`
}

// OrderUnconfirmedEvent published when the deadline elapses unconfirmed, or
// a confirmation lands after the deadline
type OrderUnconfirmedEvent struct {
	BaseEvent
	OrderID    int64  `json:"order_id"`
	CustomerID int64  `json:"customer_id"`
	ShopID     int64  `json:"shop_id"`
	Reason     string `json:"reason"`
}

// OrderCompletedEvent published when a confirmed order is handed over
type OrderCompletedEvent struct {
	BaseEvent
	OrderID    int64 `json:"order_id"`
	CustomerID int64 `json:"customer_id"`
	ShopID     int64 `json:"shop_id"`
}

// OrderCancelledEvent published when an order is cancelled and stock released
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}
