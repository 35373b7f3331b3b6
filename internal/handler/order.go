package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/service"
)

type createOrderRequest struct {
	CustomerID      string             `json:"customerId"`
	Lines           []orderLineRequest `json:"lines"`
	Notes           string             `json:"notes"`
	ShippingAddress string             `json:"shippingAddress"`
}

type orderLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]service.LineRequest, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = service.LineRequest{ProductID: l.ProductID, Quantity: l.Quantity}
	}

	o, err := h.orders.CreateOrder(r.Context(), service.CreateOrderRequest{
		CustomerID:      req.CustomerID,
		Lines:           lines,
		Notes:           req.Notes,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.orders.ChangeStatus(r.Context(), r.PathValue("id"), order.Status(req.Status), req.Notes)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("from")
		e.Str(string(res.From))
		e.FieldStart("to")
		e.Str(string(res.To))
		e.FieldStart("changedAt")
		e.Str(res.ChangedAt.Format(time.RFC3339))
		e.ObjEnd()
	})
}

func (h *Handler) customerHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.orders.CustomerHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("totalOrders")
		e.Int(hist.TotalOrders)
		e.FieldStart("totalSpend")
		e.Str(hist.TotalSpend.String())
		encodeOptTime(e, "lastOrderAt", hist.LastOrderAt)
		e.ObjEnd()
	})
}
