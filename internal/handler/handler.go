// Package handler exposes the order service and analytics cache over a thin
// JSON HTTP surface. Requests are plain data in, plain data out; all business
// rules live in the domain packages.
package handler

import (
	"net/http"

	"github.com/xenking/orderdesk/internal/analytics"
	"github.com/xenking/orderdesk/internal/service"
)

// Handler holds the HTTP endpoints for orders and analytics.
type Handler struct {
	orders    *service.Service
	analytics *analytics.Cache
}

// New constructs a Handler over the order service and analytics cache.
func New(orders *service.Service, cache *analytics.Cache) *Handler {
	return &Handler{orders: orders, analytics: cache}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.changeStatus)
	mux.HandleFunc("GET /api/customers/{id}/history", h.customerHistory)
	mux.HandleFunc("GET /api/analytics", h.getAnalytics)
	mux.HandleFunc("GET /api/analytics/period", h.getAnalyticsForPeriod)
	mux.HandleFunc("POST /api/analytics/invalidate", h.invalidateAnalytics)
}
