package repository

import (
	"context"

	"github.com/polkiloo/marketplace/internal/domain/model"
)

// OrderRepository describes persistence operations with orders and their items.
type OrderRepository interface {
	// Create stores the order and all of its items atomically, filling generated fields.
	Create(ctx context.Context, order *model.Order) error
	GetByNumber(ctx context.Context, number string) (*model.Order, error)
	// ApplyPayment locks the order bound to checkoutID and applies the payment status to it.
	ApplyPayment(ctx context.Context, checkoutID string, status model.PaymentStatus, receipt string) (*model.Order, error)
	AttachCheckout(ctx context.Context, number, checkoutID string) error
	ListByBuyer(ctx context.Context, userID int64) ([]model.Order, error)
	// ListBySeller returns orders containing the seller's products with only those items loaded.
	ListBySeller(ctx context.Context, sellerID int64) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
	UpdateStatus(ctx context.Context, number string, status model.OrderStatus) error
	HasSellerItems(ctx context.Context, number string, sellerID int64) (bool, error)
}
