// Package core implements the relational store adapter: typed operations over
// products, orders, shipping rates, support tickets, and returns, with the
// transactional and numeric invariants the catalog tools depend on.
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// TicketPriority is the urgency level of a SupportTicket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// TicketStatus is the lifecycle state of a SupportTicket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// ReturnStatus is the lifecycle state of a ReturnOrder.
type ReturnStatus string

const (
	ReturnPending   ReturnStatus = "pending"
	ReturnApproved  ReturnStatus = "approved"
	ReturnRejected  ReturnStatus = "rejected"
	ReturnCompleted ReturnStatus = "completed"
	ReturnProcessed ReturnStatus = "processed"
)

// Product is a catalog item. Category is stored as typed free text; callers
// that need case/plural-insensitive matching go through CanonicalCategory.
type Product struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Specifications string          `json:"specifications"`
	Category       string          `json:"category"`
	Price          decimal.Decimal `json:"price"`
	Stock          int             `json:"stock_quantity"`
	Weight         decimal.Decimal `json:"weight"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Order is a customer sales order header. TotalAmount is derived once at
// creation time from the items' prices-at-purchase and never changes.
type Order struct {
	ID            int             `json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	StreetAddress string          `json:"street_address"`
	City          string          `json:"city"`
	State         string          `json:"state"`
	ZipCode       string          `json:"zip_code"`
	Status        OrderStatus     `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Items         []OrderItem     `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderItem is one line of an Order. PriceAtPurchase is captured from the
// Product at order-creation time and is immutable thereafter.
type OrderItem struct {
	OrderID         int             `json:"order_id"`
	ProductID       int             `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

// ShippingRate is one carrier/service-level quote for a destination zip.
type ShippingRate struct {
	ID             int             `json:"id"`
	Carrier        string          `json:"carrier"`
	ServiceType    string          `json:"service_type"`
	BaseRate       decimal.Decimal `json:"base_rate"`
	PerPoundRate   decimal.Decimal `json:"per_pound_rate"`
	EstimatedDays  int             `json:"estimated_days"`
	DestinationZip string          `json:"destination_zip"`
}

// ShippingEstimate is a priced, timed quote returned by EstimateShipping.
type ShippingEstimate struct {
	Carrier       string          `json:"carrier"`
	ServiceType   string          `json:"service_type"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	EstimatedDays int             `json:"estimated_days"`
}

// SupportTicket is a customer-reported issue tracked to resolution.
type SupportTicket struct {
	ID            int            `json:"id"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email"`
	Issue         string         `json:"issue_description"`
	Priority      TicketPriority `json:"priority"`
	Status        TicketStatus   `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
}

// ReturnOrder is a return request against a previously placed Order.
// RefundTotalAmount is derived from its items' historical prices-at-purchase.
type ReturnOrder struct {
	ID                int             `json:"id"`
	OrderID           int             `json:"order_id"`
	Reason            string          `json:"return_reason"`
	Status            ReturnStatus    `json:"status"`
	RefundTotalAmount decimal.Decimal `json:"refund_total_amount"`
	Items             []ReturnItem    `json:"items,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
}

// ReturnItem is one returned line. For every ReturnItem there must exist an
// OrderItem with the same (OrderID, ProductID), and Quantity must not exceed
// that item's ordered quantity minus any quantity already returned.
type ReturnItem struct {
	ReturnID        int             `json:"return_id"`
	ProductID       int             `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}
