// Package service orchestrates order mutations: it loads aggregates through
// the storage collaborator, applies the pure pricing and transition engines,
// persists the results as one unit of work, and signals the analytics cache
// after every successful mutation.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/orderdesk/internal/domain/customer"
	"github.com/xenking/orderdesk/internal/domain/discount"
	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/domain/product"
	"github.com/xenking/orderdesk/internal/storage"
)

// AnalyticsInvalidator receives a signal whenever the order population
// changes. Implemented by analytics.Cache.
type AnalyticsInvalidator interface {
	Invalidate()
}

// LineRequest is one requested order line. The unit price is never part of
// the request; it is snapshotted from the catalog at creation time.
type LineRequest struct {
	ProductID string
	Quantity  int
}

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	CustomerID      string
	Lines           []LineRequest
	Notes           string
	ShippingAddress string
}

// Service coordinates order creation and status changes.
type Service struct {
	store     storage.Storage
	rules     discount.Rules
	analytics AnalyticsInvalidator
	now       func() time.Time
	newID     func() string

	// mu serializes every mutation from first staged statement through
	// CommitChanges. The storage staging buffer is shared, so two attempts
	// interleaving their Save*/CommitChanges sequences would commit each
	// other's statements.
	mu sync.Mutex
}

// New creates a Service over the given storage collaborator and analytics
// cache.
func New(store storage.Storage, rules discount.Rules, analytics AnalyticsInvalidator) *Service {
	return &Service{
		store:     store,
		rules:     rules,
		analytics: analytics,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// CreateOrder validates the customer and every requested line, snapshots
// unit prices, prices the order through the discount engine, decrements
// stock and persists everything as a single unit of work. Nothing is staged
// until every line has passed validation, so a failing line leaves both
// stock and the order population untouched.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*order.Order, error) {
	if len(req.Lines) == 0 {
		return nil, order.ErrEmptyLines
	}

	cust, err := s.store.LoadCustomer(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrap(err, "load customer")
	}

	history, err := s.CustomerHistory(ctx, cust.ID)
	if err != nil {
		return nil, err
	}

	// Quantities are aggregated per product so that two lines for the same
	// product cannot each pass a stock check the combined demand would fail.
	requested := make(map[string]int, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity < 1 {
			return nil, &order.InvalidQuantityError{ProductID: line.ProductID}
		}
		requested[line.ProductID] += line.Quantity
	}

	// Stock validation, staging and commit form one critical section so a
	// concurrent attempt can neither oversell the same product nor slip its
	// staged statements into this attempt's commit.
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make(map[string]*product.Product, len(requested))
	for _, line := range req.Lines {
		if _, ok := products[line.ProductID]; ok {
			continue
		}
		p, err := s.store.LoadProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, product.ErrNotFound
			}
			return nil, errors.Wrap(err, "load product")
		}
		if p.Stock < requested[p.ID] {
			return nil, &product.InsufficientStockError{
				ProductID: p.ID,
				Requested: requested[p.ID],
				Available: p.Stock,
			}
		}
		products[p.ID] = p
	}

	now := s.now()
	o := &order.Order{
		ID:              s.newID(),
		CustomerID:      cust.ID,
		Status:          order.StatusPending,
		Lines:           make([]order.Line, len(req.Lines)),
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		OrderDate:       now,
		UpdatedAt:       now,
	}
	for i, line := range req.Lines {
		o.Lines[i] = order.Line{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: products[line.ProductID].Price,
		}
	}

	res := s.rules.Calculate(cust.Segment, history.TotalOrders, o.Subtotal())
	o.Discount = res.Total

	for id, p := range products {
		p.Stock -= requested[id]
		if err := s.store.SaveProduct(ctx, p); err != nil {
			return nil, errors.Wrap(err, "save product")
		}
	}
	if err := s.store.SaveOrder(ctx, o); err != nil {
		return nil, errors.Wrap(err, "save order")
	}
	if err := s.store.CommitChanges(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	s.analytics.Invalidate()

	return o, nil
}

// ChangeStatus applies a status transition to the order. Invalid transitions
// return an *order.InvalidTransitionError without touching the order.
func (s *Service) ChangeStatus(ctx context.Context, orderID string, next order.Status, notes string) (order.TransitionResult, error) {
	// Load-through-commit runs under the mutation lock so the staged set
	// stays per-attempt and the transition applies to the latest state.
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.store.LoadOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return order.TransitionResult{}, order.ErrNotFound
		}
		return order.TransitionResult{}, errors.Wrap(err, "load order")
	}

	res, err := o.ApplyTransition(next, notes, s.now())
	if err != nil {
		return order.TransitionResult{}, err
	}

	if err := s.store.SaveOrder(ctx, o); err != nil {
		return order.TransitionResult{}, errors.Wrap(err, "save order")
	}
	if err := s.store.CommitChanges(ctx); err != nil {
		return order.TransitionResult{}, errors.Wrap(err, "commit")
	}

	s.analytics.Invalidate()

	return res, nil
}

// GetOrder loads a single order.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := s.store.LoadOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "load order")
	}
	return o, nil
}

// CustomerHistory derives a customer's order history from the population.
func (s *Service) CustomerHistory(ctx context.Context, customerID string) (customer.History, error) {
	orders, err := s.store.LoadOrdersByCustomer(ctx, customerID)
	if err != nil {
		return customer.History{}, errors.Wrap(err, "load customer orders")
	}

	h := customer.History{TotalOrders: len(orders)}
	for i := range orders {
		o := &orders[i]
		h.TotalSpend = h.TotalSpend.Add(o.Total())
		if h.LastOrderAt == nil || o.OrderDate.After(*h.LastOrderAt) {
			t := o.OrderDate
			h.LastOrderAt = &t
		}
	}
	return h, nil
}
