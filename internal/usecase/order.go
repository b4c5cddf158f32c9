package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/domain/repository"
)

const (
	maxOrderNumberAttempts = 3
	guestDisplayName       = "Guest"
)

// CreateOrder is the input of order creation.
type CreateOrder struct {
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	TotalAmount       decimal.Decimal
	PaymentMethod     string
	CheckoutRequestID string
	Items             []CreateOrderItem
}

// CreateOrderItem is one requested line. TotalPrice is stored as given.
type CreateOrderItem struct {
	ProductID  int64
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// PaymentUpdate is a direct payment status change keyed by checkout request id.
type PaymentUpdate struct {
	CheckoutRequestID string
	Status            model.PaymentStatus
	ReceiptNumber     string
}

// OrderUseCase encapsulates order lifecycle logic.
type OrderUseCase struct {
	orders       repository.OrderRepository
	transactions repository.TransactionStore
	logger       *slog.Logger
	now          func() time.Time
	newNumber    func(time.Time) string
}

// NewOrderUseCase constructs OrderUseCase.
func NewOrderUseCase(orders repository.OrderRepository, transactions repository.TransactionStore, logger *slog.Logger) *OrderUseCase {
	return &OrderUseCase{
		orders:       orders,
		transactions: transactions,
		logger:       logger,
		now:          time.Now,
		newNumber:    NewOrderNumber,
	}
}

// Create validates and persists a new order with its items.
// Only a buyer actor owns the order; anyone else places a guest order, whose
// contact fields are all optional.
func (u *OrderUseCase) Create(ctx context.Context, actor *model.Actor, in CreateOrder) (*model.Order, error) {
	order, err := u.buildOrder(actor, in)
	if err != nil {
		return nil, err
	}

	if order.CheckoutRequestID != "" {
		if err := u.applySettledCheckout(ctx, order); err != nil {
			return nil, err
		}
	}

	for attempt := 1; ; attempt++ {
		order.Number = u.newNumber(u.now())
		err = u.orders.Create(ctx, order)
		if !errors.Is(err, domainErrors.ErrOrderNumberTaken) || attempt == maxOrderNumberAttempts {
			break
		}
		u.logger.Warn("order number collision, retrying", slog.String("number", order.Number), slog.Int("attempt", attempt))
	}
	if err != nil {
		return nil, err
	}

	u.logger.Info("order created",
		slog.Int64("order_id", order.ID),
		slog.String("number", order.Number),
		slog.Bool("guest", order.IsGuest()),
		slog.Int("items", len(order.Items)),
	)
	return order, nil
}

func (u *OrderUseCase) buildOrder(actor *model.Actor, in CreateOrder) (*model.Order, error) {
	order := &model.Order{
		CustomerName:      strings.TrimSpace(in.CustomerName),
		CustomerEmail:     strings.TrimSpace(in.CustomerEmail),
		CustomerPhone:     strings.TrimSpace(in.CustomerPhone),
		TotalAmount:       in.TotalAmount,
		Status:            model.OrderStatusPending,
		PaymentStatus:     model.PaymentStatusPending,
		PaymentMethod:     strings.TrimSpace(in.PaymentMethod),
		CheckoutRequestID: strings.TrimSpace(in.CheckoutRequestID),
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = model.PaymentMethodMpesa
	}

	// user_id refers to buyer accounts only; orders placed by other roles are guest orders.
	if actor != nil && actor.Role == model.RoleBuyer {
		id := actor.ID
		order.UserID = &id
	}
	if order.CustomerEmail != "" && !validEmail(order.CustomerEmail) {
		return nil, domainErrors.Invalid("customerEmail", "invalid email address")
	}

	if !order.TotalAmount.IsPositive() {
		return nil, domainErrors.Invalid("totalAmount", "total amount must be positive")
	}
	if len(in.Items) == 0 {
		return nil, domainErrors.Invalid("items", "order needs at least one item")
	}

	order.Items = make([]model.OrderItem, 0, len(in.Items))
	for i, it := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case it.ProductID <= 0:
			return nil, domainErrors.Invalid(field+".productId", "product id is required")
		case it.Quantity <= 0:
			return nil, domainErrors.Invalid(field+".quantity", "quantity must be positive")
		case it.UnitPrice.IsNegative():
			return nil, domainErrors.Invalid(field+".unitPrice", "price must not be negative")
		case it.TotalPrice.IsNegative():
			return nil, domainErrors.Invalid(field+".totalPrice", "price must not be negative")
		}
		order.Items = append(order.Items, model.OrderItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
		})
	}
	return order, nil
}

// applySettledCheckout copies an already settled checkout outcome onto a new order.
func (u *OrderUseCase) applySettledCheckout(ctx context.Context, order *model.Order) error {
	tx, err := u.transactions.Get(ctx, order.CheckoutRequestID)
	if errors.Is(err, domainErrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if tx.Status.Terminal() {
		_, err = order.ApplyPayment(tx.Status, tx.ReceiptNumber)
	}
	return err
}

// UpdatePayment applies a payment status to the order bound to the checkout id.
func (u *OrderUseCase) UpdatePayment(ctx context.Context, in PaymentUpdate) (*model.Order, error) {
	checkoutID := strings.TrimSpace(in.CheckoutRequestID)
	if checkoutID == "" {
		return nil, domainErrors.Invalid("checkoutRequestId", "checkout request id is required")
	}
	status := model.PaymentStatus(strings.TrimSpace(string(in.Status)))
	if status == "" {
		return nil, domainErrors.Invalid("paymentStatus", "payment status is required")
	}

	order, err := u.orders.ApplyPayment(ctx, checkoutID, status, strings.TrimSpace(in.ReceiptNumber))
	if err != nil {
		return nil, err
	}

	u.logger.Info("order payment updated",
		slog.String("number", order.Number),
		slog.String("payment_status", string(order.PaymentStatus)),
		slog.String("status", string(order.Status)),
	)
	return order, nil
}

// List returns the orders visible to actor.
// Sellers see only their own items and a subtotal over them.
func (u *OrderUseCase) List(ctx context.Context, actor model.Actor) ([]model.Order, error) {
	switch actor.Role {
	case model.RoleBuyer:
		return u.orders.ListByBuyer(ctx, actor.ID)
	case model.RoleAdmin:
		return u.orders.ListAll(ctx)
	case model.RoleSeller:
		orders, err := u.orders.ListBySeller(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		for i := range orders {
			subtotal := decimal.Zero
			for _, it := range orders[i].Items {
				subtotal = subtotal.Add(it.TotalPrice)
			}
			orders[i].TotalAmount = subtotal
			if orders[i].CustomerName == "" {
				orders[i].CustomerName = guestDisplayName
			}
		}
		return orders, nil
	default:
		return nil, domainErrors.ErrForbidden
	}
}

// UpdateStatus moves an order through its fulfilment lifecycle.
func (u *OrderUseCase) UpdateStatus(ctx context.Context, actor model.Actor, number string, status model.OrderStatus) error {
	if actor.Role != model.RoleSeller && actor.Role != model.RoleAdmin {
		return domainErrors.ErrForbidden
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return domainErrors.Invalid("orderNumber", "order number is required")
	}
	if !status.Valid() {
		return domainErrors.Invalid("status", "unknown order status")
	}

	if actor.Role == model.RoleSeller {
		owns, err := u.orders.HasSellerItems(ctx, number, actor.ID)
		if err != nil {
			return err
		}
		if !owns {
			if _, err := u.orders.GetByNumber(ctx, number); err != nil {
				return err
			}
			return domainErrors.ErrForbidden
		}
	}

	if err := u.orders.UpdateStatus(ctx, number, status); err != nil {
		return err
	}
	u.logger.Info("order status updated",
		slog.String("number", number),
		slog.String("status", string(status)),
		slog.String("role", string(actor.Role)),
	)
	return nil
}
