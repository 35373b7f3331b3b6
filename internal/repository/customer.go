package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/orderdesk/internal/domain/customer"
)

const (
	getCustomerSQL = `SELECT id, name, email, segment, created_at
		FROM customers WHERE id = $1`

	listCustomersSQL = `SELECT id, name, email, segment, created_at
		FROM customers ORDER BY id`
)

// LoadCustomer returns a single customer by its identifier.
func (s *Store) LoadCustomer(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := s.pool.Query(ctx, getCustomerSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}
	return &c, nil
}

// LoadAllCustomers returns every customer ordered by ID.
func (s *Store) LoadAllCustomers(ctx context.Context) ([]customer.Customer, error) {
	rows, err := s.pool.Query(ctx, listCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	return pgx.CollectRows(rows, scanCustomer)
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var (
		c       customer.Customer
		segment string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &segment, &c.CreatedAt)
	c.Segment = customer.Segment(segment)
	return c, err
}
