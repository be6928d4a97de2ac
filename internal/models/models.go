package models

import (
	"database/sql"
	"time"
)

// Shop is a seller storefront owned by exactly one user.
type Shop struct {
	ID         int64           `db:"id" json:"id"`
	OwnerID    int64           `db:"owner_id" json:"owner_id"`
	Name       string          `db:"name" json:"name"`
	Street     string          `db:"street" json:"street"`
	City       string          `db:"city" json:"city"`
	State      string          `db:"state" json:"state"`
	PostalCode string          `db:"postal_code" json:"postal_code"`
	Latitude   sql.NullFloat64 `db:"latitude" json:"latitude,omitempty"`
	Longitude  sql.NullFloat64 `db:"longitude" json:"longitude,omitempty"`
	Mobile     string          `db:"mobile" json:"mobile"`
	IsActive   bool            `db:"is_active" json:"is_active"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// HasCoordinates reports whether the shop can take part in proximity search.
func (s *Shop) HasCoordinates() bool {
	return s.Latitude.Valid && s.Longitude.Valid
}

// Product is a limited-quantity listing owned by one shop.
type Product struct {
	ID          int64     `db:"id" json:"id"`
	ShopID      int64     `db:"shop_id" json:"shop_id"`
	Name        string    `db:"name" json:"name"`
	Category    string    `db:"category" json:"category"`
	Price       int64     `db:"price" json:"price"`
	Quantity    int       `db:"quantity" json:"quantity"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Order is a customer request against one shop. Status moves monotonically
// through the lifecycle and the record is never deleted.
type Order struct {
	ID                   int64        `db:"id" json:"id"`
	CustomerID           int64        `db:"customer_id" json:"customer_id"`
	ShopID               int64        `db:"shop_id" json:"shop_id"`
	TotalAmount          int64        `db:"total_amount" json:"total_amount"`
	FulfillmentMode      string       `db:"fulfillment_mode" json:"fulfillment_mode"`
	ConvenienceWindow    string       `db:"convenience_window" json:"convenience_window"`
	Status               string       `db:"status" json:"status"`
	ConfirmationDeadline time.Time    `db:"confirmation_deadline" json:"confirmation_deadline"`
	ConfirmedInTime      sql.NullBool `db:"confirmed_in_time" json:"confirmed_in_time"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	ConfirmedAt          sql.NullTime `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CompletedAt          sql.NullTime `db:"completed_at" json:"completed_at,omitempty"`
}

// OrderItem is a line item with the product name and unit price captured at
// order time, so later product edits cannot change a placed order.
type OrderItem struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   int64  `db:"order_id" json:"order_id"`
	ProductID int64  `db:"product_id" json:"product_id"`
	Name      string `db:"name" json:"name"`
	Quantity  int    `db:"quantity" json:"quantity"`
	UnitPrice int64  `db:"unit_price" json:"unit_price"`
}

// Order statuses
const (
	OrderStatusIncomplete  = "incomplete"
	OrderStatusConfirmed   = "confirmed"
	OrderStatusUnconfirmed = "unconfirmed"
	OrderStatusCompleted   = "completed"
	OrderStatusCancelled   = "cancelled"
)

// Fulfillment modes
const (
	FulfillmentPickup   = "pickup"
	FulfillmentDelivery = "delivery"
)

// Convenience windows a customer may pick at checkout
const (
	WindowTwentyMins   = "20mins"
	WindowFortyMins    = "40mins"
	WindowOneTwoHours  = "1-2hours"
	WindowAnytimeToday = "anytime_today"
)

// ValidWindow reports whether w is one of the enumerated windows.
func ValidWindow(w string) bool {
	switch w {
	case WindowTwentyMins, WindowFortyMins, WindowOneTwoHours, WindowAnytimeToday:
		return true
	}
	return false
}

// ValidFulfillmentMode reports whether m is pickup or delivery.
func ValidFulfillmentMode(m string) bool {
	return m == FulfillmentPickup || m == FulfillmentDelivery
}

// TerminalStatus reports whether no further transition is permitted.
func TerminalStatus(status string) bool {
	switch status {
	case OrderStatusUnconfirmed, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}
