package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/orderdesk/internal/domain/customer"
	"github.com/xenking/orderdesk/internal/domain/order"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is an immutable set of aggregate metrics over an order population.
// Optional metrics (top product, top customer, fulfillment time) are nil when
// the population cannot produce them.
type Snapshot struct {
	TotalOrders            int
	TotalCustomers         int
	TotalRevenue           decimal.Decimal
	AverageOrderValue      decimal.Decimal
	TotalDiscount          decimal.Decimal
	AverageDiscountPercent decimal.Decimal
	AverageItemsPerOrder   decimal.Decimal
	AverageFulfillmentTime *time.Duration
	StatusBreakdown        map[order.Status]StatusShare
	TopProduct             *ProductStat
	TopCustomer            *CustomerStat
	ComputedAt             time.Time
}

// StatusShare is the count and percentage of orders in one status.
type StatusShare struct {
	Count   int
	Percent decimal.Decimal
}

// ProductStat identifies the best-selling product by total quantity ordered.
type ProductStat struct {
	ProductID string
	Quantity  int
}

// CustomerStat identifies the top customer by total historical spend.
type CustomerStat struct {
	CustomerID string
	Name       string
	TotalSpend decimal.Decimal
}

// clone returns a copy safe to hand to callers while the original stays in
// the cache.
func (s Snapshot) clone() Snapshot {
	out := s
	if s.StatusBreakdown != nil {
		out.StatusBreakdown = make(map[order.Status]StatusShare, len(s.StatusBreakdown))
		for k, v := range s.StatusBreakdown {
			out.StatusBreakdown[k] = v
		}
	}
	if s.AverageFulfillmentTime != nil {
		d := *s.AverageFulfillmentTime
		out.AverageFulfillmentTime = &d
	}
	if s.TopProduct != nil {
		p := *s.TopProduct
		out.TopProduct = &p
	}
	if s.TopCustomer != nil {
		c := *s.TopCustomer
		out.TopCustomer = &c
	}
	return out
}

// computeSnapshot derives all metrics from the given population. An empty
// order slice yields a zeroed snapshot with nil optional metrics.
func computeSnapshot(orders []order.Order, customers []customer.Customer, now time.Time) Snapshot {
	snap := Snapshot{
		TotalOrders:            len(orders),
		TotalCustomers:         len(customers),
		TotalRevenue:           decimal.Zero,
		AverageOrderValue:      decimal.Zero,
		TotalDiscount:          decimal.Zero,
		AverageDiscountPercent: decimal.Zero,
		AverageItemsPerOrder:   decimal.Zero,
		StatusBreakdown:        map[order.Status]StatusShare{},
		ComputedAt:             now,
	}
	if len(orders) == 0 {
		return snap
	}

	gross := decimal.Zero
	items := 0
	statusCounts := map[order.Status]int{}
	var fulfillment time.Duration
	delivered := 0

	// Quantity per product, with IDs in first-encountered order so that the
	// earliest product wins quantity ties.
	productQty := map[string]int{}
	var productIDs []string

	spendByCustomer := map[string]decimal.Decimal{}

	for i := range orders {
		o := &orders[i]
		snap.TotalRevenue = snap.TotalRevenue.Add(o.Total())
		snap.TotalDiscount = snap.TotalDiscount.Add(o.Discount)
		gross = gross.Add(o.Subtotal())
		items += o.ItemCount()
		statusCounts[o.Status]++

		if o.Status == order.StatusDelivered && o.DeliveredDate != nil {
			fulfillment += o.DeliveredDate.Sub(o.OrderDate)
			delivered++
		}

		for _, l := range o.Lines {
			if _, seen := productQty[l.ProductID]; !seen {
				productIDs = append(productIDs, l.ProductID)
			}
			productQty[l.ProductID] += l.Quantity
		}

		spend := spendByCustomer[o.CustomerID]
		spendByCustomer[o.CustomerID] = spend.Add(o.Total())
	}

	total := decimal.NewFromInt(int64(len(orders)))
	snap.AverageOrderValue = snap.TotalRevenue.Div(total).Round(2)
	snap.AverageItemsPerOrder = decimal.NewFromInt(int64(items)).Div(total).Round(2)
	if gross.IsPositive() {
		snap.AverageDiscountPercent = snap.TotalDiscount.Div(gross).Mul(hundred).Round(2)
	}

	if delivered > 0 {
		avg := fulfillment / time.Duration(delivered)
		snap.AverageFulfillmentTime = &avg
	}

	for status, count := range statusCounts {
		pct := decimal.NewFromInt(int64(count)).Div(total).Mul(hundred).Round(2)
		snap.StatusBreakdown[status] = StatusShare{Count: count, Percent: pct}
	}

	for _, id := range productIDs {
		if snap.TopProduct == nil || productQty[id] > snap.TopProduct.Quantity {
			snap.TopProduct = &ProductStat{ProductID: id, Quantity: productQty[id]}
		}
	}

	// Customers are walked in their repository order so the earliest one wins
	// spend ties. Zero spend never qualifies.
	for i := range customers {
		c := &customers[i]
		spend, ok := spendByCustomer[c.ID]
		if !ok || !spend.IsPositive() {
			continue
		}
		if snap.TopCustomer == nil || spend.GreaterThan(snap.TopCustomer.TotalSpend) {
			snap.TopCustomer = &CustomerStat{CustomerID: c.ID, Name: c.Name, TotalSpend: spend}
		}
	}

	return snap
}
