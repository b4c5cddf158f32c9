package test

import (
	"context"
	"sort"
	"sync"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/domain/repository"
)

// OrderRepositoryStub keeps orders in memory; any Fn field overrides the default behaviour.
type OrderRepositoryStub struct {
	CreateFn         func(context.Context, *model.Order) error
	ApplyPaymentFn   func(context.Context, string, model.PaymentStatus, string) (*model.Order, error)
	AttachCheckoutFn func(context.Context, string, string) error
	ListBySellerFn   func(context.Context, int64) ([]model.Order, error)
	HasSellerItemsFn func(context.Context, string, int64) (bool, error)
	UpdateStatusFn   func(context.Context, string, model.OrderStatus) error
	Err              error

	mu     sync.Mutex
	orders map[string]*model.Order
	nextID int64
}

// NewOrderRepositoryStub constructs an empty stub repository.
func NewOrderRepositoryStub() *OrderRepositoryStub {
	return &OrderRepositoryStub{orders: make(map[string]*model.Order)}
}

// Seed stores order as-is, replacing any order with the same number.
func (s *OrderRepositoryStub) Seed(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders == nil {
		s.orders = make(map[string]*model.Order)
	}
	if order.ID == 0 {
		s.nextID++
		order.ID = s.nextID
	}
	s.orders[order.Number] = &order
}

// Stored returns a copy of the order with number, or nil.
func (s *OrderRepositoryStub) Stored(number string) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[number]; ok {
		cp := *o
		return &cp
	}
	return nil
}

// Count returns the number of stored orders.
func (s *OrderRepositoryStub) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// Create stores the order, rejecting duplicate numbers and checkout ids.
func (s *OrderRepositoryStub) Create(ctx context.Context, order *model.Order) error {
	if s.CreateFn != nil {
		return s.CreateFn(ctx, order)
	}
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orders == nil {
		s.orders = make(map[string]*model.Order)
	}
	if _, exists := s.orders[order.Number]; exists {
		return domainErrors.ErrOrderNumberTaken
	}
	if order.CheckoutRequestID != "" && s.byCheckout(order.CheckoutRequestID) != nil {
		return domainErrors.ErrAlreadyExists
	}
	s.nextID++
	order.ID = s.nextID
	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
		order.Items[i].OrderID = order.ID
	}
	cp := *order
	s.orders[order.Number] = &cp
	return nil
}

func (s *OrderRepositoryStub) byCheckout(checkoutID string) *model.Order {
	for _, o := range s.orders {
		if o.CheckoutRequestID == checkoutID {
			return o
		}
	}
	return nil
}

// GetByNumber fetches an order or returns not found.
func (s *OrderRepositoryStub) GetByNumber(ctx context.Context, number string) (*model.Order, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if o := s.Stored(number); o != nil {
		return o, nil
	}
	return nil, domainErrors.ErrNotFound
}

// ApplyPayment applies the payment status under the stub lock.
func (s *OrderRepositoryStub) ApplyPayment(ctx context.Context, checkoutID string, status model.PaymentStatus, receipt string) (*model.Order, error) {
	if s.ApplyPaymentFn != nil {
		return s.ApplyPaymentFn(ctx, checkoutID, status, receipt)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.byCheckout(checkoutID)
	if o == nil {
		return nil, domainErrors.ErrNotFound
	}
	if _, err := o.ApplyPayment(status, receipt); err != nil {
		return nil, err
	}
	cp := *o
	return &cp, nil
}

// AttachCheckout binds checkoutID to a pending order.
func (s *OrderRepositoryStub) AttachCheckout(ctx context.Context, number, checkoutID string) error {
	if s.AttachCheckoutFn != nil {
		return s.AttachCheckoutFn(ctx, number, checkoutID)
	}
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[number]
	if !ok {
		return domainErrors.ErrNotFound
	}
	if o.PaymentStatus != model.PaymentStatusPending {
		return domainErrors.ErrPaymentSettled
	}
	o.CheckoutRequestID = checkoutID
	return nil
}

// ListByBuyer returns the buyer's orders, newest id first.
func (s *OrderRepositoryStub) ListByBuyer(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.filter(func(o *model.Order) bool { return o.UserID != nil && *o.UserID == userID })
}

// ListBySeller delegates to ListBySellerFn or returns nothing.
func (s *OrderRepositoryStub) ListBySeller(ctx context.Context, sellerID int64) ([]model.Order, error) {
	if s.ListBySellerFn != nil {
		return s.ListBySellerFn(ctx, sellerID)
	}
	return nil, s.Err
}

// ListAll returns every order, newest id first.
func (s *OrderRepositoryStub) ListAll(ctx context.Context) ([]model.Order, error) {
	return s.filter(func(*model.Order) bool { return true })
}

func (s *OrderRepositoryStub) filter(match func(*model.Order) bool) ([]model.Order, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []model.Order
	for _, o := range s.orders {
		if match(o) {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

// UpdateStatus sets the lifecycle status of an order.
func (s *OrderRepositoryStub) UpdateStatus(ctx context.Context, number string, status model.OrderStatus) error {
	if s.UpdateStatusFn != nil {
		return s.UpdateStatusFn(ctx, number, status)
	}
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[number]
	if !ok {
		return domainErrors.ErrNotFound
	}
	o.Status = status
	return nil
}

// HasSellerItems delegates to HasSellerItemsFn or reports false.
func (s *OrderRepositoryStub) HasSellerItems(ctx context.Context, number string, sellerID int64) (bool, error) {
	if s.HasSellerItemsFn != nil {
		return s.HasSellerItemsFn(ctx, number, sellerID)
	}
	return false, s.Err
}

var _ repository.OrderRepository = (*OrderRepositoryStub)(nil)
