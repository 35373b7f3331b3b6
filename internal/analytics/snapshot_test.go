package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/orderdesk/internal/domain/customer"
	"github.com/xenking/orderdesk/internal/domain/order"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeSnapshot_EmptyPopulation(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	snap := computeSnapshot(nil, nil, now)

	assert.Zero(t, snap.TotalOrders)
	assert.Zero(t, snap.TotalCustomers)
	assert.True(t, snap.TotalRevenue.IsZero())
	assert.True(t, snap.AverageOrderValue.IsZero())
	assert.True(t, snap.AverageDiscountPercent.IsZero())
	assert.Nil(t, snap.AverageFulfillmentTime)
	assert.Nil(t, snap.TopProduct)
	assert.Nil(t, snap.TopCustomer)
	assert.Empty(t, snap.StatusBreakdown)
	assert.Equal(t, now, snap.ComputedAt)
}

func TestComputeSnapshot_Metrics(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	orderDate := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	deliveredDate := orderDate.Add(48 * time.Hour)

	customers := []customer.Customer{
		{ID: "c1", Name: "Ada"},
		{ID: "c2", Name: "Grace"},
		{ID: "c3", Name: "Edsger"}, // never ordered
	}
	orders := []order.Order{
		{
			ID: "o1", CustomerID: "c1", Status: order.StatusDelivered,
			OrderDate: orderDate, DeliveredDate: &deliveredDate,
			Lines: []order.Line{
				{ProductID: "p1", Quantity: 2, UnitPrice: dec("50")},
			},
			Discount: dec("10"),
		},
		{
			ID: "o2", CustomerID: "c2", Status: order.StatusPending,
			OrderDate: orderDate,
			Lines: []order.Line{
				{ProductID: "p2", Quantity: 2, UnitPrice: dec("100")},
			},
		},
	}

	snap := computeSnapshot(orders, customers, now)

	assert.Equal(t, 2, snap.TotalOrders)
	assert.Equal(t, 3, snap.TotalCustomers)
	// o1: 100 - 10 = 90; o2: 200.
	assert.True(t, snap.TotalRevenue.Equal(dec("290")), "revenue: %s", snap.TotalRevenue)
	assert.True(t, snap.AverageOrderValue.Equal(dec("145")), "aov: %s", snap.AverageOrderValue)
	assert.True(t, snap.TotalDiscount.Equal(dec("10")))
	// 10 of 300 gross.
	assert.True(t, snap.AverageDiscountPercent.Equal(dec("3.33")), "discount pct: %s", snap.AverageDiscountPercent)
	assert.True(t, snap.AverageItemsPerOrder.Equal(dec("2")))

	require.NotNil(t, snap.AverageFulfillmentTime)
	assert.Equal(t, 48*time.Hour, *snap.AverageFulfillmentTime)

	for _, status := range []order.Status{order.StatusDelivered, order.StatusPending} {
		share := snap.StatusBreakdown[status]
		assert.Equal(t, 1, share.Count)
		assert.True(t, share.Percent.Equal(dec("50")), "%s share: %s", status, share.Percent)
	}

	// p1 and p2 both sold 2 units; the first encountered wins the tie.
	require.NotNil(t, snap.TopProduct)
	assert.Equal(t, "p1", snap.TopProduct.ProductID)
	assert.Equal(t, 2, snap.TopProduct.Quantity)

	require.NotNil(t, snap.TopCustomer)
	assert.Equal(t, "c2", snap.TopCustomer.CustomerID)
	assert.Equal(t, "Grace", snap.TopCustomer.Name)
	assert.True(t, snap.TopCustomer.TotalSpend.Equal(dec("200")))
}

func TestComputeSnapshot_TopCustomerExcludesZeroSpend(t *testing.T) {
	now := time.Now()
	customers := []customer.Customer{{ID: "c1", Name: "Ada"}}
	orders := []order.Order{
		{
			ID: "o1", CustomerID: "c1", Status: order.StatusPending,
			OrderDate: now,
			Lines:     []order.Line{{ProductID: "p1", Quantity: 1, UnitPrice: dec("50")}},
			Discount:  dec("50"), // fully discounted, net spend zero
		},
	}

	snap := computeSnapshot(orders, customers, now)

	assert.Nil(t, snap.TopCustomer)
}

func TestComputeSnapshot_FulfillmentIgnoresUndelivered(t *testing.T) {
	now := time.Now()
	orders := []order.Order{
		{ID: "o1", CustomerID: "c1", Status: order.StatusShipped, OrderDate: now},
		{ID: "o2", CustomerID: "c1", Status: order.StatusCancelled, OrderDate: now},
	}

	snap := computeSnapshot(orders, nil, now)

	assert.Nil(t, snap.AverageFulfillmentTime)
}

func TestSnapshotClone_IsolatesCaller(t *testing.T) {
	d := 2 * time.Hour
	snap := Snapshot{
		StatusBreakdown:        map[order.Status]StatusShare{order.StatusPending: {Count: 1}},
		AverageFulfillmentTime: &d,
		TopProduct:             &ProductStat{ProductID: "p1", Quantity: 3},
		TopCustomer:            &CustomerStat{CustomerID: "c1"},
	}

	clone := snap.clone()
	clone.StatusBreakdown[order.StatusPending] = StatusShare{Count: 99}
	*clone.AverageFulfillmentTime = time.Minute
	clone.TopProduct.ProductID = "other"

	assert.Equal(t, 1, snap.StatusBreakdown[order.StatusPending].Count)
	assert.Equal(t, 2*time.Hour, *snap.AverageFulfillmentTime)
	assert.Equal(t, "p1", snap.TopProduct.ProductID)
}
