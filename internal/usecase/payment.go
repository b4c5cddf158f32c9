package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"github.com/polkiloo/marketplace/internal/adapter/mpesa"
	"github.com/polkiloo/marketplace/internal/config"
	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/domain/repository"
)

// PaymentParams lists PaymentUseCase dependencies.
type PaymentParams struct {
	fx.In

	Gateway      mpesa.Client
	Prober       mpesa.Prober
	Transactions repository.TransactionStore
	Orders       repository.OrderRepository
	Config       *config.Config
	Logger       *slog.Logger
}

// PaymentUseCase drives checkout pushes and settles their outcomes.
type PaymentUseCase struct {
	gateway           mpesa.Client
	prober            mpesa.Prober
	transactions      repository.TransactionStore
	orders            repository.OrderRepository
	pendingQueryAfter time.Duration
	logger            *slog.Logger
	now               func() time.Time
}

// NewPaymentUseCase constructs PaymentUseCase.
func NewPaymentUseCase(p PaymentParams) *PaymentUseCase {
	return &PaymentUseCase{
		gateway:           p.Gateway,
		prober:            p.Prober,
		transactions:      p.Transactions,
		orders:            p.Orders,
		pendingQueryAfter: p.Config.PendingQueryAfter,
		logger:            p.Logger,
		now:               time.Now,
	}
}

// InitiateCheckout sends a payment prompt to the payer's phone and records
// the pending transaction. When an order is referenced the push is bound to it.
func (u *PaymentUseCase) InitiateCheckout(ctx context.Context, req model.CheckoutRequest) (*model.PushResponse, error) {
	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}

	orderNumber := strings.TrimSpace(req.OrderNumber)
	amount := decimal.NewFromInt(1)
	if orderNumber != "" {
		order, err := u.orders.GetByNumber(ctx, orderNumber)
		if err != nil {
			return nil, err
		}
		if order.PaymentStatus != model.PaymentStatusPending {
			return nil, domainErrors.ErrPaymentSettled
		}
		amount = order.TotalAmount
	}
	if req.Amount != nil {
		amount = *req.Amount
	}
	if !amount.IsPositive() {
		return nil, domainErrors.Invalid("amount", "amount must be positive")
	}

	if err := u.prober.Check(ctx); err != nil {
		u.logger.Warn("checkout pre-flight failed", slog.String("error", err.Error()))
		return nil, err
	}

	resp, err := u.gateway.STKPush(ctx, model.PushRequest{PhoneNumber: phone, Amount: amount})
	if err != nil {
		return nil, err
	}

	tx := &model.Transaction{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		OrderNumber:       orderNumber,
		Amount:            amount,
		PhoneNumber:       phone,
		Status:            model.PaymentStatusPending,
	}
	if err := u.transactions.Put(ctx, tx); err != nil {
		return nil, err
	}
	if orderNumber != "" {
		if err := u.orders.AttachCheckout(ctx, orderNumber, resp.CheckoutRequestID); err != nil {
			return nil, err
		}
	}

	u.logger.Info("checkout initiated",
		slog.String("checkout_request_id", resp.CheckoutRequestID),
		slog.String("order_number", orderNumber),
		slog.String("amount", amount.String()),
	)
	return resp, nil
}

// HandleCallback settles the transaction named by the gateway callback.
// Unknown ids and repeated deliveries are acknowledged without effect.
func (u *PaymentUseCase) HandleCallback(ctx context.Context, cb model.CallbackResult) error {
	settlement := model.SettlementFromResult(cb.ResultCode, cb.ResultDesc, cb.ReceiptNumber)
	log := u.logger.With(slog.String("checkout_request_id", cb.CheckoutRequestID), slog.Int("result_code", cb.ResultCode))

	swapped, err := u.transactions.CompareAndSet(ctx, cb.CheckoutRequestID, model.PaymentStatusPending, settlement)
	switch {
	case errors.Is(err, domainErrors.ErrNotFound):
		log.Warn("callback for unknown checkout ignored")
		return nil
	case err != nil:
		return err
	case !swapped:
		log.Info("duplicate callback ignored")
		return nil
	}

	log.Info("checkout settled", slog.String("status", string(settlement.Status)))

	tx := model.Transaction{CheckoutRequestID: cb.CheckoutRequestID}
	tx.Apply(settlement)
	if err := u.settleOrder(ctx, tx, false); err != nil {
		log.Warn("order update deferred to reconciler", slog.String("error", err.Error()))
	}
	return nil
}

// TransactionStatus returns the tracked state of a checkout.
func (u *PaymentUseCase) TransactionStatus(ctx context.Context, checkoutID string) (*model.Transaction, error) {
	checkoutID = strings.TrimSpace(checkoutID)
	if checkoutID == "" {
		return nil, domainErrors.Invalid("checkoutRequestId", "checkout request id is required")
	}
	return u.transactions.Get(ctx, checkoutID)
}

// TransactionsForReconciliation returns settled transactions not yet applied
// to their orders followed by pending ones the gateway has been silent about.
func (u *PaymentUseCase) TransactionsForReconciliation(ctx context.Context, limit int) ([]model.Transaction, error) {
	settled, err := u.transactions.ListUnreconciled(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(settled) >= limit {
		return settled, nil
	}

	stale, err := u.transactions.ListStalePending(ctx, u.now().Add(-u.pendingQueryAfter), limit-len(settled))
	if err != nil {
		return nil, err
	}
	return append(settled, stale...), nil
}

// ReconcileTransaction queries the gateway for a pending transaction and
// applies a settled one to its order.
func (u *PaymentUseCase) ReconcileTransaction(ctx context.Context, tx model.Transaction) error {
	if tx.Status == model.PaymentStatusPending {
		status, err := u.gateway.Query(ctx, tx.CheckoutRequestID)
		if err != nil {
			return err
		}
		if status.Pending {
			return nil
		}

		settlement := model.SettlementFromResult(status.ResultCode, status.ResultDesc, "")
		swapped, err := u.transactions.CompareAndSet(ctx, tx.CheckoutRequestID, model.PaymentStatusPending, settlement)
		if err != nil {
			return err
		}
		if swapped {
			tx.Apply(settlement)
			tx.UpdatedAt = u.now()
			u.logger.Info("checkout settled by status query",
				slog.String("checkout_request_id", tx.CheckoutRequestID),
				slog.String("status", string(settlement.Status)),
			)
		} else {
			current, err := u.transactions.Get(ctx, tx.CheckoutRequestID)
			if err != nil {
				return err
			}
			tx = *current
		}
	}

	if !tx.Status.Terminal() || tx.Reconciled {
		return nil
	}
	return u.settleOrder(ctx, tx, u.now().Sub(tx.UpdatedAt) > u.pendingQueryAfter)
}

// settleOrder applies a settled transaction to its order and marks it reconciled.
// A transaction without an order stays unreconciled unless dropOrphan is set,
// since the order may still be created with its checkout id.
func (u *PaymentUseCase) settleOrder(ctx context.Context, tx model.Transaction, dropOrphan bool) error {
	_, err := u.orders.ApplyPayment(ctx, tx.CheckoutRequestID, tx.Status, tx.ReceiptNumber)
	switch {
	case err == nil:
	case errors.Is(err, domainErrors.ErrNotFound):
		if !dropOrphan {
			return nil
		}
	case errors.Is(err, domainErrors.ErrPaymentSettled):
		u.logger.Warn("order already settled with a different outcome",
			slog.String("checkout_request_id", tx.CheckoutRequestID),
			slog.String("status", string(tx.Status)),
		)
	default:
		return err
	}
	return u.transactions.MarkReconciled(ctx, tx.CheckoutRequestID)
}
