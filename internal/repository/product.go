package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/orderdesk/internal/domain/product"
)

const (
	getProductSQL = `SELECT id, name, price, stock, category
		FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, price, stock, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			category = EXCLUDED.category`
)

// LoadProduct returns a single product by its identifier.
func (s *Store) LoadProduct(ctx context.Context, id string) (*product.Product, error) {
	rows, err := s.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// SaveProduct stages an upsert of the product.
func (s *Store) SaveProduct(_ context.Context, p *product.Product) error {
	saved := *p
	s.stage(func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertProductSQL,
			saved.ID, saved.Name, saved.Price, saved.Stock, saved.Category,
		)
		if err != nil {
			return fmt.Errorf("saving product %q: %w", saved.ID, err)
		}
		return nil
	})
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Category)
	return p, err
}
