// Package discount computes order-level discounts from a customer's profile
// and an order subtotal. The three rules (segment, loyalty, volume) are
// evaluated independently against the full subtotal and summed, then the sum
// is clamped at a maximum share of the subtotal. The rules are deliberately
// additive rather than compounding so each component stays auditable on its
// own in the result breakdown.
package discount

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/orderdesk/internal/domain/customer"
)

var hundred = decimal.NewFromInt(100)

// Rules holds the discount policy: per-segment rates, the loyalty and volume
// rules with their thresholds, and the total cap. All rates are percentages.
type Rules struct {
	SegmentRates     map[customer.Segment]decimal.Decimal
	LoyaltyRate      decimal.Decimal
	LoyaltyMinOrders int
	VolumeRate       decimal.Decimal
	VolumeThreshold  decimal.Decimal
	MaxPercent       decimal.Decimal
}

// DefaultRules returns the production discount policy.
func DefaultRules() Rules {
	return Rules{
		SegmentRates: map[customer.Segment]decimal.Decimal{
			customer.SegmentNew:      decimal.NewFromInt(10),
			customer.SegmentStandard: decimal.NewFromInt(5),
			customer.SegmentPremium:  decimal.NewFromInt(15),
		},
		LoyaltyRate:      decimal.NewFromInt(5),
		LoyaltyMinOrders: 5,
		VolumeRate:       decimal.NewFromInt(3),
		VolumeThreshold:  decimal.NewFromInt(500),
		MaxPercent:       decimal.NewFromInt(25),
	}
}

// Component is one rule's contribution to the total discount.
type Component struct {
	Percent   decimal.Decimal
	Amount    decimal.Decimal
	Qualified bool
}

// Result is the full discount breakdown for one order. It is immutable once
// computed.
type Result struct {
	Subtotal   decimal.Decimal
	Segment    Component
	Loyalty    Component
	Volume     Component
	Total      decimal.Decimal // final discount amount, after the cap
	Percent    decimal.Decimal // Total as a percentage of Subtotal
	CapApplied bool
	FinalTotal decimal.Decimal // Subtotal - Total
}

// Calculate applies the default rules. See Rules.Calculate.
func Calculate(seg customer.Segment, orderCount int, subtotal decimal.Decimal) Result {
	return DefaultRules().Calculate(seg, orderCount, subtotal)
}

// Calculate produces the discount breakdown for the given customer segment,
// historical order count and order subtotal. A non-positive subtotal
// short-circuits to a zero result with no component breakdown.
func (r Rules) Calculate(seg customer.Segment, orderCount int, subtotal decimal.Decimal) Result {
	if subtotal.LessThanOrEqual(decimal.Zero) {
		return Result{
			Subtotal:   subtotal,
			Total:      decimal.Zero,
			Percent:    decimal.Zero,
			FinalTotal: subtotal,
		}
	}

	res := Result{Subtotal: subtotal}

	// Segment rule always qualifies; unknown segments get a zero rate.
	segRate := r.SegmentRates[seg]
	res.Segment = Component{
		Percent:   segRate,
		Amount:    percentOf(subtotal, segRate),
		Qualified: true,
	}

	if orderCount >= r.LoyaltyMinOrders {
		res.Loyalty = Component{
			Percent:   r.LoyaltyRate,
			Amount:    percentOf(subtotal, r.LoyaltyRate),
			Qualified: true,
		}
	}

	if subtotal.GreaterThanOrEqual(r.VolumeThreshold) {
		res.Volume = Component{
			Percent:   r.VolumeRate,
			Amount:    percentOf(subtotal, r.VolumeRate),
			Qualified: true,
		}
	}

	total := res.Segment.Amount.Add(res.Loyalty.Amount).Add(res.Volume.Amount)

	maxDiscount := percentOf(subtotal, r.MaxPercent)
	if total.GreaterThan(maxDiscount) {
		total = maxDiscount
		res.CapApplied = true
	}

	res.Total = total.Round(2)
	res.Percent = res.Total.Div(subtotal).Mul(hundred)
	res.FinalTotal = subtotal.Sub(res.Total)

	return res
}

func percentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}
