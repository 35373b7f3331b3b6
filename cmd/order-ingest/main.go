// Command order-ingest bulk-imports historical orders from gzipped JSONL
// files, one order per line, so analytics can be computed over data that
// predates this service. Files are processed concurrently; a shared bloom
// filter skips order IDs already seen in another file, and the database
// insert is idempotent for the rare false negative.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/orderdesk/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

type lineJSON struct {
	ProductID    string          `json:"productId"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	LineDiscount decimal.Decimal `json:"lineDiscount"`
}

type orderJSON struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customerId"`
	Status          string          `json:"status"`
	Discount        decimal.Decimal `json:"discount"`
	ShippingAddress string          `json:"shippingAddress"`
	Notes           string          `json:"notes"`
	OrderDate       time.Time       `json:"orderDate"`
	ShippedDate     *time.Time      `json:"shippedDate"`
	DeliveredDate   *time.Time      `json:"deliveredDate"`
	Lines           []lineJSON      `json:"lines"`
}

func main() {
	var (
		databaseURL string
		dir         string
	)
	flag.StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	flag.StringVar(&dir, "dir", ".", "directory containing *.jsonl.gz order files")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, dir); err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, dir string) error {
	if databaseURL == "" {
		return errors.New("database URL is required")
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob input files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz files in %s", dir)
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	var (
		mu   sync.Mutex
		seen = bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			n, err := ingestFile(ctx, pool, file, &mu, seen)
			if err != nil {
				return errors.Wrapf(err, "ingest %s", file)
			}
			slog.Info("file ingested", "file", file, "orders", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest complete", "files", len(files), "elapsed", time.Since(start))
	return nil
}

func ingestFile(ctx context.Context, pool *pgxpool.Pool, path string, mu *sync.Mutex, seen *bloom.BloomFilter) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	const (
		insertOrderSQL = `INSERT INTO orders
			(id, customer_id, status, discount, shipping_address, notes,
			 order_date, shipped_date, delivered_date, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $7)
			ON CONFLICT (id) DO NOTHING`
		insertLineSQL = `INSERT INTO order_lines
			(order_id, line_no, product_id, quantity, unit_price, line_discount)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (order_id, line_no) DO NOTHING`
	)

	inserted := 0
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}

		var o orderJSON
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil {
			return inserted, errors.Wrap(err, "parse order line")
		}

		mu.Lock()
		dup := seen.TestOrAdd([]byte(o.ID))
		mu.Unlock()
		if dup {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return inserted, errors.Wrap(err, "begin")
		}

		_, err = tx.Exec(ctx, insertOrderSQL,
			o.ID, o.CustomerID, o.Status, o.Discount, o.ShippingAddress, o.Notes,
			o.OrderDate, o.ShippedDate, o.DeliveredDate,
		)
		if err == nil {
			for i, l := range o.Lines {
				if _, err = tx.Exec(ctx, insertLineSQL,
					o.ID, i+1, l.ProductID, l.Quantity, l.UnitPrice, l.LineDiscount,
				); err != nil {
					break
				}
			}
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return inserted, errors.Wrapf(err, "insert order %s", o.ID)
		}
		if err := tx.Commit(ctx); err != nil {
			return inserted, errors.Wrap(err, "commit")
		}

		inserted++
		if inserted%progressEvery == 0 {
			slog.Info("progress", "file", path, "orders", inserted)
		}
	}
	return inserted, scanner.Err()
}
