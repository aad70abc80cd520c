// Package handler exposes the read-only metrics endpoints over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"magnos-hutch/backend/internal/metrics/service"
	"magnos-hutch/backend/pkg/httputil"
)

const dateLayout = "2006-01-02"

// Handler serves the daily-stats and histogram endpoints.
type Handler struct {
	daily *service.DailyService
	hist  *service.HistogramService
}

// New creates a metrics handler.
func New(daily *service.DailyService, hist *service.HistogramService) *Handler {
	return &Handler{daily: daily, hist: hist}
}

// RegisterRoutes registers the metrics routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/metrics/daily", h.handleDaily)
	r.Get("/metrics/sessions/hist", h.handleHistogram)
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "from must be a YYYY-MM-DD date")
		return
	}
	to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "to must be a YYYY-MM-DD date")
		return
	}

	stats, err := h.daily.Range(r.Context(), from, to)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "failed to compute daily metrics")
		return
	}
	if stats == nil {
		stats = []service.DailyStat{}
	}
	httputil.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleHistogram(w http.ResponseWriter, r *http.Request) {
	bins := service.DefaultBins
	if raw := r.URL.Query().Get("bins"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "bins must be an integer")
			return
		}
		bins = n
	}

	hist, err := h.hist.Histogram(r.Context(), bins)
	if err != nil {
		if errors.Is(err, service.ErrInvalidBins) {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, "failed to build histogram")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, hist)
}
