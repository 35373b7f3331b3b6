package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/orderdesk/internal/domain/customer"
	"github.com/xenking/orderdesk/internal/domain/discount"
	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/domain/product"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// memStore keeps aggregates in maps and mirrors the staged unit-of-work
// contract: saves buffer mutations, CommitChanges applies them. It is safe
// for concurrent use and records how many statements each commit carried.
type memStore struct {
	mu        sync.Mutex
	customers map[string]customer.Customer
	products  map[string]product.Product
	orders    map[string]order.Order

	pending     []func()
	commits     int
	commitSizes []int
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[string]customer.Customer{},
		products:  map[string]product.Product{},
		orders:    map[string]order.Order{},
	}
}

func (s *memStore) LoadOrder(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Lines = append([]order.Line(nil), o.Lines...)
	return &o, nil
}

func (s *memStore) LoadAllOrders(context.Context) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, nil
}

func (s *memStore) LoadOrdersByCustomer(_ context.Context, customerID string) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) SaveOrder(_ context.Context, o *order.Order) error {
	saved := *o
	saved.Lines = append([]order.Line(nil), o.Lines...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, func() { s.orders[saved.ID] = saved })
	return nil
}

func (s *memStore) LoadCustomer(_ context.Context, id string) (*customer.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

func (s *memStore) LoadAllCustomers(context.Context) ([]customer.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]customer.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	return out, nil
}

func (s *memStore) LoadProduct(_ context.Context, id string) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (s *memStore) SaveProduct(_ context.Context, p *product.Product) error {
	saved := *p
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, func() { s.products[saved.ID] = saved })
	return nil
}

func (s *memStore) CommitChanges(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, apply := range s.pending {
		apply()
	}
	s.commitSizes = append(s.commitSizes, len(s.pending))
	s.pending = nil
	s.commits++
	return nil
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate() { f.calls++ }

func fixture(t *testing.T) (*Service, *memStore, *fakeInvalidator) {
	t.Helper()

	store := newMemStore()
	store.customers["c-new"] = customer.Customer{ID: "c-new", Name: "Ada", Segment: customer.SegmentNew}
	store.customers["c-premium"] = customer.Customer{ID: "c-premium", Name: "Grace", Segment: customer.SegmentPremium}
	store.products["p-widget"] = product.Product{ID: "p-widget", Name: "Widget", Price: dec("25"), Stock: 10}
	store.products["p-gadget"] = product.Product{ID: "p-gadget", Name: "Gadget", Price: dec("50"), Stock: 3}

	inv := &fakeInvalidator{}
	svc := New(store, discount.DefaultRules(), inv)
	svc.now = func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) }
	seq := 0
	svc.newID = func() string {
		seq++
		return []string{"order-1", "order-2", "order-3"}[seq-1]
	}
	return svc, store, inv
}

func TestCreateOrder(t *testing.T) {
	svc, store, inv := fixture(t)

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c-new",
		Lines: []LineRequest{
			{ProductID: "p-widget", Quantity: 2},
			{ProductID: "p-gadget", Quantity: 1},
		},
		ShippingAddress: "12 Example St",
	})
	require.NoError(t, err)

	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, order.StatusPending, o.Status)
	// 2x25 + 1x50 = 100 subtotal, New segment discount 10%.
	assert.True(t, o.Subtotal().Equal(dec("100")), "subtotal: %s", o.Subtotal())
	assert.True(t, o.Discount.Equal(dec("10")), "discount: %s", o.Discount)
	assert.True(t, o.Total().Equal(dec("90")), "total: %s", o.Total())

	assert.Equal(t, 8, store.products["p-widget"].Stock)
	assert.Equal(t, 2, store.products["p-gadget"].Stock)
	assert.Equal(t, 1, store.commits)
	assert.Equal(t, 1, inv.calls)

	persisted, err := store.LoadOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.True(t, persisted.Lines[0].UnitPrice.Equal(dec("25")))
}

func TestCreateOrder_EmptyLines(t *testing.T) {
	svc, _, inv := fixture(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{CustomerID: "c-new"})

	assert.ErrorIs(t, err, order.ErrEmptyLines)
	assert.Zero(t, inv.calls)
}

func TestCreateOrder_UnknownCustomer(t *testing.T) {
	svc, _, _ := fixture(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "nope",
		Lines:      []LineRequest{{ProductID: "p-widget", Quantity: 1}},
	})

	assert.ErrorIs(t, err, customer.ErrNotFound)
}

func TestCreateOrder_ZeroQuantity(t *testing.T) {
	svc, _, _ := fixture(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c-new",
		Lines:      []LineRequest{{ProductID: "p-widget", Quantity: 0}},
	})

	var qtyErr *order.InvalidQuantityError
	require.ErrorAs(t, err, &qtyErr)
	assert.Equal(t, "p-widget", qtyErr.ProductID)
}

func TestCreateOrder_InsufficientStockLeavesEverythingUntouched(t *testing.T) {
	svc, store, inv := fixture(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c-new",
		Lines: []LineRequest{
			{ProductID: "p-widget", Quantity: 2},
			{ProductID: "p-gadget", Quantity: 4},
		},
	})

	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p-gadget", stockErr.ProductID)
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)

	assert.Equal(t, 10, store.products["p-widget"].Stock, "no partial decrement")
	assert.Empty(t, store.orders)
	assert.Zero(t, store.commits)
	assert.Zero(t, inv.calls)
}

func TestCreateOrder_DuplicateLinesAggregateForStockCheck(t *testing.T) {
	svc, _, _ := fixture(t)

	// Each line alone fits the 3 in stock; together they do not.
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c-new",
		Lines: []LineRequest{
			{ProductID: "p-gadget", Quantity: 2},
			{ProductID: "p-gadget", Quantity: 2},
		},
	})

	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 4, stockErr.Requested)
}

func TestCreateOrder_LoyaltyCountsPriorOrders(t *testing.T) {
	svc, store, _ := fixture(t)
	for _, id := range []string{"h1", "h2", "h3", "h4", "h5"} {
		store.orders[id] = order.Order{
			ID: id, CustomerID: "c-premium", Status: order.StatusDelivered,
			Lines: []order.Line{{ProductID: "p-widget", Quantity: 1, UnitPrice: dec("25")}},
		}
	}

	o, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "c-premium",
		Lines:      []LineRequest{{ProductID: "p-widget", Quantity: 4}},
	})
	require.NoError(t, err)

	// Premium 15% plus loyalty 5% on a 100 subtotal.
	assert.True(t, o.Discount.Equal(dec("20")), "discount: %s", o.Discount)
}

func TestChangeStatus(t *testing.T) {
	svc, store, inv := fixture(t)
	store.orders["order-9"] = order.Order{
		ID: "order-9", CustomerID: "c-new", Status: order.StatusPending,
		Notes: "fragile",
	}

	res, err := svc.ChangeStatus(context.Background(), "order-9", order.StatusShipped, "left warehouse")
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, res.From)
	assert.Equal(t, order.StatusShipped, res.To)

	saved := store.orders["order-9"]
	assert.Equal(t, order.StatusShipped, saved.Status)
	require.NotNil(t, saved.ShippedDate)
	assert.Equal(t, "fragile\nleft warehouse", saved.Notes)
	assert.Equal(t, 1, store.commits)
	assert.Equal(t, 1, inv.calls)
}

func TestChangeStatus_InvalidTransitionNotPersisted(t *testing.T) {
	svc, store, inv := fixture(t)
	store.orders["order-9"] = order.Order{ID: "order-9", CustomerID: "c-new", Status: order.StatusPending}

	_, err := svc.ChangeStatus(context.Background(), "order-9", order.StatusDelivered, "")

	var trErr *order.InvalidTransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Contains(t, err.Error(), string(order.StatusShipped))

	assert.Equal(t, order.StatusPending, store.orders["order-9"].Status)
	assert.Zero(t, store.commits)
	assert.Zero(t, inv.calls)
}

func TestChangeStatus_CancelAfterShippedLeavesDeliveredDateEmpty(t *testing.T) {
	svc, store, _ := fixture(t)
	shipped := time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC)
	store.orders["order-9"] = order.Order{
		ID: "order-9", CustomerID: "c-new", Status: order.StatusShipped, ShippedDate: &shipped,
	}

	res, err := svc.ChangeStatus(context.Background(), "order-9", order.StatusCancelled, "")
	require.NoError(t, err)

	assert.Equal(t, order.StatusCancelled, res.To)
	saved := store.orders["order-9"]
	assert.Nil(t, saved.DeliveredDate)
	require.NotNil(t, saved.ShippedDate)
	assert.Equal(t, shipped, *saved.ShippedDate)
}

func TestChangeStatus_UnknownOrder(t *testing.T) {
	svc, _, _ := fixture(t)

	_, err := svc.ChangeStatus(context.Background(), "missing", order.StatusShipped, "")

	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestCustomerHistory(t *testing.T) {
	svc, store, _ := fixture(t)
	early := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store.orders["h1"] = order.Order{
		ID: "h1", CustomerID: "c-new", Status: order.StatusDelivered, OrderDate: early,
		Lines:    []order.Line{{ProductID: "p-widget", Quantity: 2, UnitPrice: dec("25")}},
		Discount: dec("5"),
	}
	store.orders["h2"] = order.Order{
		ID: "h2", CustomerID: "c-new", Status: order.StatusPending, OrderDate: late,
		Lines: []order.Line{{ProductID: "p-gadget", Quantity: 1, UnitPrice: dec("50")}},
	}
	store.orders["other"] = order.Order{ID: "other", CustomerID: "c-premium", OrderDate: late}

	h, err := svc.CustomerHistory(context.Background(), "c-new")
	require.NoError(t, err)

	assert.Equal(t, 2, h.TotalOrders)
	assert.True(t, h.TotalSpend.Equal(dec("95")), "spend: %s", h.TotalSpend)
	require.NotNil(t, h.LastOrderAt)
	assert.Equal(t, late, *h.LastOrderAt)
}

func TestCreateOrder_ConcurrentAttemptsStayIsolated(t *testing.T) {
	store := newMemStore()
	store.customers["c1"] = customer.Customer{ID: "c1", Name: "Ada", Segment: customer.SegmentStandard}
	store.products["p1"] = product.Product{ID: "p1", Name: "Widget", Price: dec("10"), Stock: 5}

	svc := New(store, discount.DefaultRules(), &fakeInvalidator{})
	var seq atomic.Int64
	svc.newID = func() string { return fmt.Sprintf("order-%d", seq.Add(1)) }

	const attempts = 10
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
				CustomerID: "c1",
				Lines:      []LineRequest{{ProductID: "p1", Quantity: 1}},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *product.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
	}

	// Exactly the available stock is sold and nothing is oversold.
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, store.products["p1"].Stock)
	assert.Len(t, store.orders, 5)

	// Each commit carries exactly its own attempt's statements (one product
	// decrement plus one order), never another attempt's staged set.
	require.Len(t, store.commitSizes, 5)
	for _, size := range store.commitSizes {
		assert.Equal(t, 2, size)
	}
}

func TestGetOrder(t *testing.T) {
	svc, store, _ := fixture(t)
	store.orders["order-9"] = order.Order{ID: "order-9", CustomerID: "c-new", Status: order.StatusPending}

	o, err := svc.GetOrder(context.Background(), "order-9")
	require.NoError(t, err)
	assert.Equal(t, "order-9", o.ID)

	_, err = svc.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}
