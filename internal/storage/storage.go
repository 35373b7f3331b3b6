// Package storage declares the persistence collaborator consumed by the
// order service and the analytics cache. Implementations live elsewhere
// (see internal/repository for the PostgreSQL one); the core never depends
// on a concrete store.
package storage

import (
	"context"

	"github.com/xenking/orderdesk/internal/domain/customer"
	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/domain/product"
)

// Storage loads and saves the order, customer and product aggregates.
// Save* calls stage mutations; CommitChanges persists everything staged
// since the previous commit as one atomic unit of work. The staging buffer
// is shared, so callers must not interleave the Save*/CommitChanges
// sequences of two units of work.
type Storage interface {
	LoadOrder(ctx context.Context, id string) (*order.Order, error)
	LoadAllOrders(ctx context.Context) ([]order.Order, error)
	LoadOrdersByCustomer(ctx context.Context, customerID string) ([]order.Order, error)
	SaveOrder(ctx context.Context, o *order.Order) error

	LoadCustomer(ctx context.Context, id string) (*customer.Customer, error)
	LoadAllCustomers(ctx context.Context) ([]customer.Customer, error)

	LoadProduct(ctx context.Context, id string) (*product.Product, error)
	SaveProduct(ctx context.Context, p *product.Product) error

	CommitChanges(ctx context.Context) error
}
