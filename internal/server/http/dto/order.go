package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest describes the order creation payload.
type CreateOrderRequest struct {
	CustomerName      string             `json:"customerName"`
	CustomerEmail     string             `json:"customerEmail"`
	CustomerPhone     string             `json:"customerPhone"`
	TotalAmount       decimal.Decimal    `json:"totalAmount"`
	PaymentMethod     string             `json:"paymentMethod"`
	CheckoutRequestID string             `json:"checkoutRequestId"`
	Items             []OrderItemRequest `json:"items"`
}

// OrderItemRequest is one requested order line.
type OrderItemRequest struct {
	ProductID  int64           `json:"productId"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// CreateOrderResponse is returned after an order is stored.
type CreateOrderResponse struct {
	Envelope
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

// UpdatePaymentRequest changes the payment status of the order bound to a checkout.
type UpdatePaymentRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	PaymentStatus     string `json:"paymentStatus"`
	ReceiptNumber     string `json:"receiptNumber"`
}

// UpdateStatusRequest moves an order through its fulfilment lifecycle.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// OrderResponse is one entry of an order listing.
type OrderResponse struct {
	ID            string              `json:"id"`
	CustomerName  string              `json:"customerName,omitempty"`
	Items         []OrderItemResponse `json:"items"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"paymentStatus"`
	Date          string              `json:"date"`
	Total         decimal.Decimal     `json:"total"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// OrderItemResponse is one line of a listed order.
type OrderItemResponse struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Image       string          `json:"image,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
}

// OrdersResponse wraps an order listing.
type OrdersResponse struct {
	Envelope
	Orders []OrderResponse `json:"orders"`
}
