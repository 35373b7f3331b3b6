package order

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order lookup and validation.
var (
	ErrNotFound   = errors.New("order not found")
	ErrEmptyLines = errors.New("order must contain at least one line")
)

// InvalidQuantityError indicates a line request with a quantity below 1.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for product %s", e.ProductID)
}

// Order represents a customer order with line items, pricing and lifecycle
// timestamps. The unit price on every line is a snapshot taken at creation
// time and never changes when the catalog price does.
type Order struct {
	ID              string
	CustomerID      string
	Status          Status
	Lines           []Line
	Discount        decimal.Decimal
	ShippingAddress string
	Notes           string
	OrderDate       time.Time
	ShippedDate     *time.Time
	DeliveredDate   *time.Time
	UpdatedAt       time.Time
}

// Line is a single order line. Quantity is always >= 1.
type Line struct {
	ProductID    string
	Quantity     int
	UnitPrice    decimal.Decimal
	LineDiscount decimal.Decimal
}

// Subtotal returns the sum of quantity * unit price - line discount over all
// lines.
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range o.Lines {
		line := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Sub(l.LineDiscount)
		sum = sum.Add(line)
	}
	return sum
}

// Total returns the subtotal minus the order-level discount.
func (o *Order) Total() decimal.Decimal {
	return o.Subtotal().Sub(o.Discount)
}

// ItemCount returns the total quantity across all lines.
func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}
