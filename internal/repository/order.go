package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/orderdesk/internal/domain/order"
)

const (
	getOrderSQL = `SELECT id, customer_id, status, discount, shipping_address, notes,
		order_date, shipped_date, delivered_date, updated_at
		FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT id, customer_id, status, discount, shipping_address, notes,
		order_date, shipped_date, delivered_date, updated_at
		FROM orders ORDER BY order_date, id`

	listOrdersByCustomerSQL = `SELECT id, customer_id, status, discount, shipping_address, notes,
		order_date, shipped_date, delivered_date, updated_at
		FROM orders WHERE customer_id = $1 ORDER BY order_date, id`

	listLinesSQL = `SELECT order_id, product_id, quantity, unit_price, line_discount
		FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, line_no`

	upsertOrderSQL = `INSERT INTO orders
		(id, customer_id, status, discount, shipping_address, notes,
		 order_date, shipped_date, delivered_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			discount = EXCLUDED.discount,
			shipping_address = EXCLUDED.shipping_address,
			notes = EXCLUDED.notes,
			shipped_date = EXCLUDED.shipped_date,
			delivered_date = EXCLUDED.delivered_date,
			updated_at = EXCLUDED.updated_at`

	deleteLinesSQL = `DELETE FROM order_lines WHERE order_id = $1`

	insertLineSQL = `INSERT INTO order_lines (order_id, line_no, product_id, quantity, unit_price, line_discount)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

// LoadOrder returns a single order with its lines.
func (s *Store) LoadOrder(ctx context.Context, id string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if err := s.attachLines(ctx, []order.Order{o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// LoadAllOrders returns every order with its lines, ordered by order date.
func (s *Store) LoadAllOrders(ctx context.Context) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := s.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// LoadOrdersByCustomer returns a customer's orders with their lines.
func (s *Store) LoadOrdersByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersByCustomerSQL, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for customer %q: %w", customerID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for customer %q: %w", customerID, err)
	}
	if err := s.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// SaveOrder stages an upsert of the order and a full rewrite of its lines.
func (s *Store) SaveOrder(_ context.Context, o *order.Order) error {
	// Copy so later caller mutations do not leak into the staged statement.
	saved := *o
	saved.Lines = make([]order.Line, len(o.Lines))
	copy(saved.Lines, o.Lines)

	s.stage(func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertOrderSQL,
			saved.ID, saved.CustomerID, string(saved.Status), saved.Discount,
			saved.ShippingAddress, saved.Notes,
			saved.OrderDate, saved.ShippedDate, saved.DeliveredDate, saved.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("saving order %q: %w", saved.ID, err)
		}

		if _, err := tx.Exec(ctx, deleteLinesSQL, saved.ID); err != nil {
			return fmt.Errorf("clearing lines for order %q: %w", saved.ID, err)
		}
		for i, l := range saved.Lines {
			_, err := tx.Exec(ctx, insertLineSQL,
				saved.ID, i+1, l.ProductID, l.Quantity, l.UnitPrice, l.LineDiscount,
			)
			if err != nil {
				return fmt.Errorf("saving line %d of order %q: %w", i+1, saved.ID, err)
			}
		}
		return nil
	})
	return nil
}

// attachLines loads the lines for the given orders in one query and attaches
// them in place.
func (s *Store) attachLines(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = &orders[i]
	}

	rows, err := s.pool.Query(ctx, listLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			l       order.Line
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.LineDiscount); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		if o, ok := index[orderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &status, &o.Discount, &o.ShippingAddress, &o.Notes,
		&o.OrderDate, &o.ShippedDate, &o.DeliveredDate, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
