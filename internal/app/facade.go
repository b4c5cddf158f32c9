package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/polkiloo/marketplace/internal/domain/model"
	pkgAuth "github.com/polkiloo/marketplace/internal/pkg/auth"
	"github.com/polkiloo/marketplace/internal/storage/postgres"
	"github.com/polkiloo/marketplace/internal/usecase"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MarketplaceFacade is the single entry point the HTTP layer and the
// reconciler use to reach the use cases.
type MarketplaceFacade struct {
	orders   *usecase.OrderUseCase
	payments *usecase.PaymentUseCase
	tokens   pkgAuth.Strategy
	health   HealthChecker
}

type facadeParams struct {
	fx.In

	Orders   *usecase.OrderUseCase
	Payments *usecase.PaymentUseCase
	Tokens   pkgAuth.Strategy
	Storage  *postgres.Storage
}

func newMarketplaceFacade(p facadeParams) *MarketplaceFacade {
	return NewMarketplaceFacade(p.Orders, p.Payments, p.Tokens, p.Storage)
}

func NewMarketplaceFacade(orders *usecase.OrderUseCase, payments *usecase.PaymentUseCase, tokens pkgAuth.Strategy, health HealthChecker) *MarketplaceFacade {
	return &MarketplaceFacade{orders: orders, payments: payments, tokens: tokens, health: health}
}

func (f *MarketplaceFacade) ParseToken(token string) (model.Actor, error) {
	return f.tokens.ParseToken(token)
}

func (f *MarketplaceFacade) CreateOrder(ctx context.Context, actor *model.Actor, in usecase.CreateOrder) (*model.Order, error) {
	return f.orders.Create(ctx, actor, in)
}

func (f *MarketplaceFacade) UpdateOrderPayment(ctx context.Context, in usecase.PaymentUpdate) (*model.Order, error) {
	return f.orders.UpdatePayment(ctx, in)
}

func (f *MarketplaceFacade) Orders(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	return f.orders.List(ctx, actor)
}

func (f *MarketplaceFacade) UpdateOrderStatus(ctx context.Context, actor model.Actor, number string, status model.OrderStatus) error {
	return f.orders.UpdateStatus(ctx, actor, number, status)
}

func (f *MarketplaceFacade) InitiateCheckout(ctx context.Context, req model.CheckoutRequest) (*model.PushResponse, error) {
	return f.payments.InitiateCheckout(ctx, req)
}

func (f *MarketplaceFacade) HandleCallback(ctx context.Context, cb model.CallbackResult) error {
	return f.payments.HandleCallback(ctx, cb)
}

func (f *MarketplaceFacade) TransactionStatus(ctx context.Context, checkoutID string) (*model.Transaction, error) {
	return f.payments.TransactionStatus(ctx, checkoutID)
}

func (f *MarketplaceFacade) TransactionsForReconciliation(ctx context.Context, limit int) ([]model.Transaction, error) {
	return f.payments.TransactionsForReconciliation(ctx, limit)
}

func (f *MarketplaceFacade) ReconcileTransaction(ctx context.Context, tx model.Transaction) error {
	return f.payments.ReconcileTransaction(ctx, tx)
}

func (f *MarketplaceFacade) HealthCheck(ctx context.Context) error {
	return f.health.HealthCheck(ctx)
}
