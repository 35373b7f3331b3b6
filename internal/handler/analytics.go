package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
)

func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	snap, err := h.analytics.Get(r.Context(), force)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeSnapshot(e, snap)
	})
}

func (h *Handler) getAnalyticsForPeriod(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.DateOnly, q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be a YYYY-MM-DD date")
		return
	}
	end, err := time.Parse(time.DateOnly, q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be a YYYY-MM-DD date")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end must not precede start")
		return
	}

	snap, err := h.analytics.GetForPeriod(r.Context(), start, end)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeSnapshot(e, snap)
	})
}

func (h *Handler) invalidateAnalytics(w http.ResponseWriter, _ *http.Request) {
	h.analytics.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}
