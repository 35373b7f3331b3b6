package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orderdesk/internal/analytics"
	"github.com/xenking/orderdesk/internal/domain/customer"
	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/domain/product"
)

// writeJSON encodes the body with fn and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// respondError maps domain errors to HTTP statuses. Storage faults are
// reported generically and logged; their detail never reaches the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, order.ErrEmptyLines):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var qtyErr *order.InvalidQuantityError
	if errors.As(err, &qtyErr) {
		writeError(w, http.StatusBadRequest, qtyErr.Error())
		return
	}

	var stockErr *product.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeError(w, http.StatusUnprocessableEntity, stockErr.Error())
		return
	}

	var transErr *order.InvalidTransitionError
	if errors.As(err, &transErr) {
		writeError(w, http.StatusConflict, transErr.Error())
		return
	}

	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// encodeOrder writes an order body. Monetary fields are encoded as decimal
// strings, never as floats.
func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("customerId")
	e.Str(o.CustomerID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(l.ProductID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unitPrice")
		e.Str(l.UnitPrice.String())
		e.FieldStart("lineDiscount")
		e.Str(l.LineDiscount.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	e.Str(o.Subtotal().String())
	e.FieldStart("discount")
	e.Str(o.Discount.String())
	e.FieldStart("total")
	e.Str(o.Total().String())
	e.FieldStart("shippingAddress")
	e.Str(o.ShippingAddress)
	e.FieldStart("notes")
	e.Str(o.Notes)
	e.FieldStart("orderDate")
	e.Str(o.OrderDate.Format(time.RFC3339))
	encodeOptTime(e, "shippedDate", o.ShippedDate)
	encodeOptTime(e, "deliveredDate", o.DeliveredDate)
	e.FieldStart("updatedAt")
	e.Str(o.UpdatedAt.Format(time.RFC3339))
	e.ObjEnd()
}

func encodeOptTime(e *jx.Encoder, field string, t *time.Time) {
	e.FieldStart(field)
	if t == nil {
		e.Null()
		return
	}
	e.Str(t.Format(time.RFC3339))
}

func encodeSnapshot(e *jx.Encoder, s analytics.Snapshot) {
	e.ObjStart()
	e.FieldStart("totalOrders")
	e.Int(s.TotalOrders)
	e.FieldStart("totalCustomers")
	e.Int(s.TotalCustomers)
	e.FieldStart("totalRevenue")
	e.Str(s.TotalRevenue.String())
	e.FieldStart("averageOrderValue")
	e.Str(s.AverageOrderValue.String())
	e.FieldStart("totalDiscount")
	e.Str(s.TotalDiscount.String())
	e.FieldStart("averageDiscountPercent")
	e.Str(s.AverageDiscountPercent.String())
	e.FieldStart("averageItemsPerOrder")
	e.Str(s.AverageItemsPerOrder.String())

	e.FieldStart("averageFulfillmentHours")
	if s.AverageFulfillmentTime == nil {
		e.Null()
	} else {
		e.Float64(s.AverageFulfillmentTime.Hours())
	}

	e.FieldStart("statusBreakdown")
	e.ObjStart()
	for _, status := range []order.Status{
		order.StatusPending, order.StatusShipped, order.StatusDelivered, order.StatusCancelled,
	} {
		share, ok := s.StatusBreakdown[status]
		if !ok {
			continue
		}
		e.FieldStart(string(status))
		e.ObjStart()
		e.FieldStart("count")
		e.Int(share.Count)
		e.FieldStart("percent")
		e.Str(share.Percent.String())
		e.ObjEnd()
	}
	e.ObjEnd()

	e.FieldStart("topProduct")
	if s.TopProduct == nil {
		e.Null()
	} else {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(s.TopProduct.ProductID)
		e.FieldStart("quantity")
		e.Int(s.TopProduct.Quantity)
		e.ObjEnd()
	}

	e.FieldStart("topCustomer")
	if s.TopCustomer == nil {
		e.Null()
	} else {
		e.ObjStart()
		e.FieldStart("customerId")
		e.Str(s.TopCustomer.CustomerID)
		e.FieldStart("name")
		e.Str(s.TopCustomer.Name)
		e.FieldStart("totalSpend")
		e.Str(s.TopCustomer.TotalSpend.String())
		e.ObjEnd()
	}

	e.FieldStart("computedAt")
	e.Str(s.ComputedAt.Format(time.RFC3339))
	e.ObjEnd()
}
