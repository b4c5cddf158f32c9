package test

import (
	"context"
	"sync/atomic"

	"github.com/polkiloo/marketplace/internal/adapter/mpesa"
	"github.com/polkiloo/marketplace/internal/domain/model"
)

// GatewayStub records pushes and answers with configurable results.
type GatewayStub struct {
	PushFn  func(context.Context, model.PushRequest) (*model.PushResponse, error)
	QueryFn func(context.Context, string) (*model.PushStatus, error)

	Pushes  atomic.Int32
	Queries atomic.Int32
}

// STKPush delegates to PushFn or accepts the push with a fixed checkout id.
func (g *GatewayStub) STKPush(ctx context.Context, req model.PushRequest) (*model.PushResponse, error) {
	g.Pushes.Add(1)
	if g.PushFn != nil {
		return g.PushFn(ctx, req)
	}
	return &model.PushResponse{
		MerchantRequestID:   "29115-34620561-1",
		CheckoutRequestID:   "ws_CO_1",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

// Query delegates to QueryFn or reports the push as still pending.
func (g *GatewayStub) Query(ctx context.Context, checkoutID string) (*model.PushStatus, error) {
	g.Queries.Add(1)
	if g.QueryFn != nil {
		return g.QueryFn(ctx, checkoutID)
	}
	return &model.PushStatus{CheckoutRequestID: checkoutID, Pending: true}, nil
}

// ProberStub returns Err from every check.
type ProberStub struct {
	Err error
}

// Check reports the configured connectivity error.
func (p ProberStub) Check(context.Context) error {
	return p.Err
}

var (
	_ mpesa.Client = (*GatewayStub)(nil)
	_ mpesa.Prober = ProberStub{}
)
