// Command seed-db loads customers and products from JSON files into the
// database. Existing rows with the same ID are left untouched.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/orderdesk/internal/repository"
)

type customerJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Segment string `json:"segment"`
}

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
}

func main() {
	var (
		databaseURL   string
		customersFile string
		productsFile  string
	)
	flag.StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	flag.StringVar(&customersFile, "customers", "", "path to customers JSON file")
	flag.StringVar(&productsFile, "products", "", "path to products JSON file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, customersFile, productsFile); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, customersFile, productsFile string) error {
	if databaseURL == "" {
		return errors.New("database URL is required")
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if customersFile != "" {
		n, err := seedCustomers(ctx, pool, customersFile)
		if err != nil {
			return errors.Wrap(err, "seed customers")
		}
		slog.Info("customers seeded", "count", n)
	}

	if productsFile != "" {
		n, err := seedProducts(ctx, pool, productsFile)
		if err != nil {
			return errors.Wrap(err, "seed products")
		}
		slog.Info("products seeded", "count", n)
	}

	return nil
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var customers []customerJSON
	if err := json.Unmarshal(data, &customers); err != nil {
		return 0, errors.Wrap(err, "parse customers")
	}

	const insertSQL = `INSERT INTO customers (id, name, email, segment)
		VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`

	for _, c := range customers {
		if _, err := pool.Exec(ctx, insertSQL, c.ID, c.Name, c.Email, c.Segment); err != nil {
			return 0, errors.Wrapf(err, "insert customer %s", c.ID)
		}
	}
	return len(customers), nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return 0, errors.Wrap(err, "parse products")
	}

	const insertSQL = `INSERT INTO products (id, name, price, stock, category)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`

	for _, p := range products {
		if _, err := pool.Exec(ctx, insertSQL, p.ID, p.Name, p.Price, p.Stock, p.Category); err != nil {
			return 0, errors.Wrapf(err, "insert product %s", p.ID)
		}
	}
	return len(products), nil
}
