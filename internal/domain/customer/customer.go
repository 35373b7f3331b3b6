package customer

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Segment classifies a customer for discount eligibility.
type Segment string

const (
	SegmentNew      Segment = "New"
	SegmentStandard Segment = "Standard"
	SegmentPremium  Segment = "Premium"
)

// Customer represents a buyer who places orders.
type Customer struct {
	ID        string
	Name      string
	Email     string
	Segment   Segment
	CreatedAt time.Time
}

// History aggregates a customer's past orders. It is derived from the order
// population on demand, never stored.
type History struct {
	TotalOrders int
	TotalSpend  decimal.Decimal
	LastOrderAt *time.Time
}
