package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is one order document as stored by the seller. The same shape
// backs the sales and purchase collections. Records are read-only here and a
// fetch replaces the previous set wholesale.
type OrderRecord struct {
	DocumentId   string          `gorm:"column:document_id;primaryKey;size:64" json:"$id"`
	OrderId      string          `gorm:"column:order_id;size:100;index" json:"order_id"`
	Description  string          `gorm:"column:description;size:255" json:"description"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(20,4);default:0" json:"amount"`
	Status       OrderStatus     `gorm:"column:status;size:50" json:"status"`
	Platform     string          `gorm:"column:platform;size:100" json:"platform,omitempty"`
	OrderDate    *time.Time      `gorm:"column:order_date" json:"order_date,omitempty"`
	ReturnReason string          `gorm:"column:return_reason;size:255" json:"return_reason,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;index" json:"$createdAt"`
}

// Key identifies the record in keyed containers: the business order id when
// present, otherwise the store's document id.
func (r OrderRecord) Key() string {
	if r.OrderId != "" {
		return r.OrderId
	}
	return r.DocumentId
}

type OrderStatus string

const (
	OrderStatusReturned   OrderStatus = "returned"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusNew        OrderStatus = "new"
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// Is compares case-insensitively. The empty status matches nothing.
func (s OrderStatus) Is(other OrderStatus) bool {
	if s == "" {
		return false
	}
	return strings.EqualFold(string(s), string(other))
}

// FilterSpec narrows an order fetch.
type FilterSpec struct {
	Source      OrderSource
	NewestFirst bool
	// Limit caps the number of records; 0 means no cap.
	Limit int
}
