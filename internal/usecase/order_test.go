package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/storage/memory"
	testhelpers "github.com/polkiloo/marketplace/internal/test"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newOrderUseCase(t *testing.T) (*OrderUseCase, *testhelpers.OrderRepositoryStub, *memory.TransactionStore) {
	t.Helper()
	orders := testhelpers.NewOrderRepositoryStub()
	txs := memory.NewTransactionStore()
	return NewOrderUseCase(orders, txs, discardLogger()), orders, txs
}

func guestOrder() CreateOrder {
	return CreateOrder{
		CustomerName:  "Jane Wanjiku",
		CustomerPhone: "0712345678",
		TotalAmount:   decimal.NewFromInt(20),
		Items: []CreateOrderItem{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(20)},
		},
	}
}

func TestOrderUseCaseCreateGuest(t *testing.T) {
	uc, orders, _ := newOrderUseCase(t)

	order, err := uc.Create(context.Background(), nil, guestOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID == 0 || !orderNumberPattern.MatchString(order.Number) {
		t.Fatalf("unexpected order identity: id=%d number=%q", order.ID, order.Number)
	}
	if !order.IsGuest() || order.PaymentMethod != model.PaymentMethodMpesa {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.Status != model.OrderStatusPending || order.PaymentStatus != model.PaymentStatusPending {
		t.Fatalf("unexpected statuses: %s/%s", order.Status, order.PaymentStatus)
	}
	stored := orders.Stored(order.Number)
	if stored == nil || len(stored.Items) != 1 || !stored.Items[0].TotalPrice.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("order not stored with items: %+v", stored)
	}
}

func TestOrderUseCaseCreateForBuyer(t *testing.T) {
	uc, _, _ := newOrderUseCase(t)

	in := guestOrder()
	in.CustomerName, in.CustomerPhone = "", ""
	order, err := uc.Create(context.Background(), &model.Actor{ID: 42, Role: model.RoleBuyer}, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.UserID == nil || *order.UserID != 42 {
		t.Fatalf("expected buyer to own order, got %+v", order.UserID)
	}
}

func TestOrderUseCaseCreateAnonymousWithoutContact(t *testing.T) {
	uc, orders, _ := newOrderUseCase(t)

	order, err := uc.Create(context.Background(), nil, CreateOrder{
		TotalAmount:       decimal.NewFromInt(20),
		CheckoutRequestID: "ws_CO_1",
		Items: []CreateOrderItem{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(20)},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID == 0 || !orderNumberPattern.MatchString(order.Number) || !order.IsGuest() {
		t.Fatalf("unexpected order: %+v", order)
	}
	if orders.Count() != 1 {
		t.Fatalf("expected one stored order, got %d", orders.Count())
	}

	paid, err := uc.UpdatePayment(context.Background(), PaymentUpdate{CheckoutRequestID: "ws_CO_1", Status: model.PaymentStatusCompleted})
	if err != nil {
		t.Fatalf("update payment: %v", err)
	}
	if paid.Status != model.OrderStatusConfirmed || paid.PaymentStatus != model.PaymentStatusCompleted {
		t.Fatalf("unexpected order after payment: %s/%s", paid.Status, paid.PaymentStatus)
	}
}

func TestOrderUseCaseCreateByNonBuyerIsGuest(t *testing.T) {
	for _, role := range []model.Role{model.RoleSeller, model.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			uc, _, _ := newOrderUseCase(t)

			order, err := uc.Create(context.Background(), &model.Actor{ID: 7, Role: role}, guestOrder())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !order.IsGuest() {
				t.Fatalf("expected guest order, got user id %d", *order.UserID)
			}

			listed, err := uc.List(context.Background(), model.Actor{ID: 7, Role: model.RoleBuyer})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(listed) != 0 {
				t.Fatalf("buyer 7 must not see an order placed by %s 7, got %d", role, len(listed))
			}
		})
	}
}

func TestOrderUseCaseCreateConcurrentNumbersAreUnique(t *testing.T) {
	const n = 64
	uc, orders, _ := newOrderUseCase(t)
	frozen := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	uc.now = func() time.Time { return frozen }

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]struct{}, n)
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := uc.Create(context.Background(), nil, guestOrder())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[order.Number] = struct{}{}
		}()
	}
	wg.Wait()

	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(numbers) != n {
		t.Fatalf("expected %d distinct numbers, got %d", n, len(numbers))
	}
	if orders.Count() != n {
		t.Fatalf("expected %d stored orders, got %d", n, orders.Count())
	}
	for number := range numbers {
		if !orderNumberPattern.MatchString(number) || number[3:17] != "20250301123000" {
			t.Fatalf("unexpected number %q", number)
		}
	}
}

func TestOrderUseCaseCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateOrder)
		field  string
	}{
		{"bad email", func(in *CreateOrder) { in.CustomerEmail = "not-an-email" }, "customerEmail"},
		{"zero total", func(in *CreateOrder) { in.TotalAmount = decimal.Zero }, "totalAmount"},
		{"no items", func(in *CreateOrder) { in.Items = nil }, "items"},
		{"missing product", func(in *CreateOrder) { in.Items[0].ProductID = 0 }, "items[0].productId"},
		{"zero quantity", func(in *CreateOrder) { in.Items[0].Quantity = 0 }, "items[0].quantity"},
		{"negative unit price", func(in *CreateOrder) { in.Items[0].UnitPrice = decimal.NewFromInt(-1) }, "items[0].unitPrice"},
		{"negative total price", func(in *CreateOrder) { in.Items[0].TotalPrice = decimal.NewFromInt(-1) }, "items[0].totalPrice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, orders, _ := newOrderUseCase(t)
			in := guestOrder()
			tt.mutate(&in)

			_, err := uc.Create(context.Background(), nil, in)
			var vErr *domainErrors.ValidationError
			if !errors.As(err, &vErr) || vErr.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
			if orders.Count() != 0 {
				t.Fatal("nothing should be stored on validation failure")
			}
		})
	}
}

func TestOrderUseCaseCreateRetriesNumberCollision(t *testing.T) {
	uc, orders, _ := newOrderUseCase(t)
	orders.Seed(model.Order{Number: "ORD20250101000000AAAA"})

	numbers := []string{"ORD20250101000000AAAA", "ORD20250101000000AAAA", "ORD20250101000000BBBB"}
	calls := 0
	uc.newNumber = func(time.Time) string {
		n := numbers[calls]
		calls++
		return n
	}

	order, err := uc.Create(context.Background(), nil, guestOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Number != "ORD20250101000000BBBB" || calls != 3 {
		t.Fatalf("expected third number after two collisions, got %s after %d calls", order.Number, calls)
	}
}

func TestOrderUseCaseCreateGivesUpAfterCollisions(t *testing.T) {
	uc, orders, _ := newOrderUseCase(t)
	orders.Seed(model.Order{Number: "ORD20250101000000AAAA"})
	uc.newNumber = func(time.Time) string { return "ORD20250101000000AAAA" }

	if _, err := uc.Create(context.Background(), nil, guestOrder()); !errors.Is(err, domainErrors.ErrOrderNumberTaken) {
		t.Fatalf("expected number taken error, got %v", err)
	}
}

func TestOrderUseCaseCreatePropagatesStoreError(t *testing.T) {
	uc, orders, _ := newOrderUseCase(t)
	orders.CreateFn = func(context.Context, *model.Order) error { return errors.New("insert item 0: fk violation") }

	if _, err := uc.Create(context.Background(), nil, guestOrder()); err == nil {
		t.Fatal("expected repository error to be returned")
	}
}

func TestOrderUseCaseCreateAppliesSettledCheckout(t *testing.T) {
	uc, _, txs := newOrderUseCase(t)
	ctx := context.Background()

	_ = txs.Put(ctx, &model.Transaction{CheckoutRequestID: "ws_CO_1", Status: model.PaymentStatusPending})
	_, _ = txs.CompareAndSet(ctx, "ws_CO_1", model.PaymentStatusPending, model.SettlementFromResult(0, "ok", "QKL1"))

	in := guestOrder()
	in.CheckoutRequestID = "ws_CO_1"
	order, err := uc.Create(ctx, nil, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.PaymentStatus != model.PaymentStatusCompleted || order.Status != model.OrderStatusConfirmed || order.ReceiptNumber != "QKL1" {
		t.Fatalf("expected settled outcome applied, got %+v", order)
	}

	in.CheckoutRequestID = "ws_CO_unknown"
	order, err = uc.Create(ctx, nil, in)
	if err != nil || order.PaymentStatus != model.PaymentStatusPending {
		t.Fatalf("unknown checkout should leave payment pending: %+v err=%v", order, err)
	}
}

func TestOrderUseCaseUpdatePayment(t *testing.T) {
	tests := []struct {
		name          string
		status        model.PaymentStatus
		wantStatus    model.OrderStatus
		wantPayStatus model.PaymentStatus
	}{
		{"completed confirms", model.PaymentStatusCompleted, model.OrderStatusConfirmed, model.PaymentStatusCompleted},
		{"failed cancels", model.PaymentStatusFailed, model.OrderStatusCancelled, model.PaymentStatusFailed},
		{"other value leaves status", "processing", model.OrderStatusPending, "processing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, orders, _ := newOrderUseCase(t)
			orders.Seed(model.Order{Number: "ORD1", CheckoutRequestID: "ws_CO_1", Status: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending})

			order, err := uc.UpdatePayment(context.Background(), PaymentUpdate{CheckoutRequestID: "ws_CO_1", Status: tt.status})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if order.Status != tt.wantStatus || order.PaymentStatus != tt.wantPayStatus {
				t.Fatalf("unexpected order: %s/%s", order.Status, order.PaymentStatus)
			}
		})
	}
}

func TestOrderUseCaseUpdatePaymentErrors(t *testing.T) {
	uc, orders, _ := newOrderUseCase(t)
	orders.Seed(model.Order{Number: "ORD1", CheckoutRequestID: "ws_CO_1", Status: model.OrderStatusConfirmed, PaymentStatus: model.PaymentStatusCompleted})
	ctx := context.Background()

	if _, err := uc.UpdatePayment(ctx, PaymentUpdate{Status: model.PaymentStatusCompleted}); !errors.Is(err, domainErrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := uc.UpdatePayment(ctx, PaymentUpdate{CheckoutRequestID: "ws_CO_1"}); !errors.Is(err, domainErrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := uc.UpdatePayment(ctx, PaymentUpdate{CheckoutRequestID: "missing", Status: model.PaymentStatusCompleted}); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := uc.UpdatePayment(ctx, PaymentUpdate{CheckoutRequestID: "ws_CO_1", Status: model.PaymentStatusCompleted}); err != nil {
		t.Fatalf("same terminal status must be a no-op, got %v", err)
	}
	if _, err := uc.UpdatePayment(ctx, PaymentUpdate{CheckoutRequestID: "ws_CO_1", Status: model.PaymentStatusFailed}); !errors.Is(err, domainErrors.ErrPaymentSettled) {
		t.Fatalf("expected settled conflict, got %v", err)
	}
	if got := orders.Stored("ORD1"); got.Status != model.OrderStatusConfirmed {
		t.Fatalf("settled order must not change, got %s", got.Status)
	}
}

func TestOrderUseCaseList(t *testing.T) {
	uc, orders, _ := newOrderUseCase(t)
	ctx := context.Background()
	buyer := int64(7)
	orders.Seed(model.Order{Number: "ORD1", UserID: &buyer})
	orders.Seed(model.Order{Number: "ORD2"})
	orders.ListBySellerFn = func(_ context.Context, sellerID int64) ([]model.Order, error) {
		if sellerID != 9 {
			t.Fatalf("unexpected seller %d", sellerID)
		}
		return []model.Order{{
			Number:      "ORD2",
			TotalAmount: decimal.NewFromInt(500),
			Items: []model.OrderItem{
				{TotalPrice: decimal.RequireFromString("40.50")},
				{TotalPrice: decimal.RequireFromString("9.50")},
			},
		}}, nil
	}

	list, err := uc.List(ctx, model.Actor{ID: buyer, Role: model.RoleBuyer})
	if err != nil || len(list) != 1 || list[0].Number != "ORD1" {
		t.Fatalf("unexpected buyer list: %+v err=%v", list, err)
	}

	list, err = uc.List(ctx, model.Actor{ID: 1, Role: model.RoleAdmin})
	if err != nil || len(list) != 2 {
		t.Fatalf("unexpected admin list: %+v err=%v", list, err)
	}

	list, err = uc.List(ctx, model.Actor{ID: 9, Role: model.RoleSeller})
	if err != nil || len(list) != 1 {
		t.Fatalf("unexpected seller list: %+v err=%v", list, err)
	}
	if !list[0].TotalAmount.Equal(decimal.NewFromInt(50)) || list[0].CustomerName != "Guest" {
		t.Fatalf("expected seller subtotal and guest name, got %s %q", list[0].TotalAmount, list[0].CustomerName)
	}

	if _, err := uc.List(ctx, model.Actor{ID: 1, Role: "courier"}); !errors.Is(err, domainErrors.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestOrderUseCaseUpdateStatus(t *testing.T) {
	ctx := context.Background()
	seller := model.Actor{ID: 9, Role: model.RoleSeller}

	t.Run("admin", func(t *testing.T) {
		uc, orders, _ := newOrderUseCase(t)
		orders.Seed(model.Order{Number: "ORD1", Status: model.OrderStatusConfirmed})
		if err := uc.UpdateStatus(ctx, model.Actor{ID: 1, Role: model.RoleAdmin}, "ORD1", model.OrderStatusDispatched); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if orders.Stored("ORD1").Status != model.OrderStatusDispatched {
			t.Fatal("status not updated")
		}
	})

	t.Run("seller owning items", func(t *testing.T) {
		uc, orders, _ := newOrderUseCase(t)
		orders.Seed(model.Order{Number: "ORD1"})
		orders.HasSellerItemsFn = func(_ context.Context, number string, sellerID int64) (bool, error) {
			return number == "ORD1" && sellerID == 9, nil
		}
		if err := uc.UpdateStatus(ctx, seller, "ORD1", model.OrderStatusDelivered); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("seller without items", func(t *testing.T) {
		uc, orders, _ := newOrderUseCase(t)
		orders.Seed(model.Order{Number: "ORD1"})
		if err := uc.UpdateStatus(ctx, seller, "ORD1", model.OrderStatusDelivered); !errors.Is(err, domainErrors.ErrForbidden) {
			t.Fatalf("expected forbidden, got %v", err)
		}
		if err := uc.UpdateStatus(ctx, seller, "ORD9", model.OrderStatusDelivered); !errors.Is(err, domainErrors.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("rejections", func(t *testing.T) {
		uc, _, _ := newOrderUseCase(t)
		if err := uc.UpdateStatus(ctx, model.Actor{ID: 7, Role: model.RoleBuyer}, "ORD1", model.OrderStatusDelivered); !errors.Is(err, domainErrors.ErrForbidden) {
			t.Fatalf("expected forbidden for buyer, got %v", err)
		}
		if err := uc.UpdateStatus(ctx, seller, "ORD1", "lost"); !errors.Is(err, domainErrors.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if err := uc.UpdateStatus(ctx, seller, " ", model.OrderStatusDelivered); !errors.Is(err, domainErrors.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if err := uc.UpdateStatus(ctx, model.Actor{ID: 1, Role: model.RoleAdmin}, "ORD9", model.OrderStatusDelivered); !errors.Is(err, domainErrors.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}
