package handlers

import (
	"context"

	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/usecase"
)

// OrderFacade encapsulates order operations exposed via HTTP.
type OrderFacade interface {
	CreateOrder(ctx context.Context, actor *model.Actor, in usecase.CreateOrder) (*model.Order, error)
	UpdateOrderPayment(ctx context.Context, in usecase.PaymentUpdate) (*model.Order, error)
	Orders(ctx context.Context, actor model.Actor) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, actor model.Actor, number string, status model.OrderStatus) error
}

// PaymentFacade provides checkout operations.
type PaymentFacade interface {
	InitiateCheckout(ctx context.Context, req model.CheckoutRequest) (*model.PushResponse, error)
	HandleCallback(ctx context.Context, cb model.CallbackResult) error
	TransactionStatus(ctx context.Context, checkoutID string) (*model.Transaction, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MarketplaceFacade aggregates the full set of operations used across handlers.
type MarketplaceFacade interface {
	OrderFacade
	PaymentFacade
	HealthChecker
	ParseToken(token string) (model.Actor, error)
}
