package model

import (
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
)

// OrderStatus describes the fulfilment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusDispatched OrderStatus = "dispatched"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known lifecycle values.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusDispatched, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus describes the outcome of the payment attempt bound to an order.
// Values outside the named constants are accepted and stored verbatim.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Terminal reports whether no further payment transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// PaymentMethodMpesa is the default payment method tag.
const PaymentMethodMpesa = "mpesa"

// Order is a purchase placed by a buyer or a guest.
type Order struct {
	ID                int64
	Number            string
	UserID            *int64
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	TotalAmount       decimal.Decimal
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	PaymentMethod     string
	CheckoutRequestID string
	ReceiptNumber     string
	Items             []OrderItem
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderItem is a line of an order. Prices are a snapshot taken at purchase time.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	ImageURL    string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	CreatedAt   time.Time
}

// IsGuest reports whether the order has no owning buyer account.
func (o *Order) IsGuest() bool {
	return o.UserID == nil
}

// ApplyPayment moves the order to the given payment status.
//
// A completed payment confirms the order and a failed one cancels it; any
// other value is stored without touching the lifecycle status. Once the
// payment status is terminal the same value is a no-op and a different one
// fails with ErrPaymentSettled. The returned flag reports whether the order
// was modified.
func (o *Order) ApplyPayment(status PaymentStatus, receipt string) (bool, error) {
	if o.PaymentStatus.Terminal() {
		if o.PaymentStatus == status {
			return false, nil
		}
		return false, domainErrors.ErrPaymentSettled
	}
	if o.PaymentStatus == status && (receipt == "" || receipt == o.ReceiptNumber) {
		return false, nil
	}

	o.PaymentStatus = status
	if receipt != "" {
		o.ReceiptNumber = receipt
	}
	switch status {
	case PaymentStatusCompleted:
		o.Status = OrderStatusConfirmed
	case PaymentStatusFailed:
		o.Status = OrderStatusCancelled
	}
	return true, nil
}
