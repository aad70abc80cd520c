// Package handler exposes event-batch ingestion over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"magnos-hutch/backend/internal/session/domain"
	"magnos-hutch/backend/internal/session/service"
	"magnos-hutch/backend/internal/telemetry"
	"magnos-hutch/backend/pkg/httputil"
)

// eventIn is one incoming event in an ingest request.
type eventIn struct {
	Name  string         `json:"name"`
	TS    string         `json:"ts"` // RFC3339; naive timestamps are read as UTC
	Props map[string]any `json:"props,omitempty"`
}

// batchIn is the ingest request body.
type batchIn struct {
	SessionID string    `json:"session_id"`
	UserID    *string   `json:"user_id,omitempty"`
	Events    []eventIn `json:"events"`
}

// batchOut is the ingest response body.
type batchOut struct {
	SessionID string `json:"session_id"`
	Saved     int    `json:"saved"`
}

// Handler serves the ingest endpoint.
type Handler struct {
	ingest  *service.IngestService
	emitter telemetry.EventEmitter
}

// New creates an ingest handler. emitter may be nil; then no fan-out happens.
func New(ingest *service.IngestService, emitter telemetry.EventEmitter) *Handler {
	return &Handler{ingest: ingest, emitter: emitter}
}

// RegisterRoutes registers the ingestion routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events", h.handleIngest)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload batchIn
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	batch := service.Batch{
		SessionID: payload.SessionID,
		UserID:    payload.UserID,
		Events:    make([]service.EventInput, 0, len(payload.Events)),
	}
	for _, in := range payload.Events {
		if in.Name == "" {
			httputil.RespondError(w, http.StatusBadRequest, "event name is required")
			return
		}
		ts, err := parseEventTime(in.TS)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid event ts: "+in.TS)
			return
		}
		batch.Events = append(batch.Events, service.EventInput{Name: in.Name, TS: ts, Props: in.Props})
	}

	saved, err := h.ingest.Ingest(r.Context(), batch)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingSessionID),
			errors.Is(err, service.ErrEmptyBatch),
			errors.Is(err, service.ErrTooManyEvents):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			httputil.RespondError(w, http.StatusInternalServerError, "failed to persist batch")
		}
		return
	}

	for _, in := range batch.Events {
		telemetry.EmitAsync(h.emitter, &domain.Event{
			SessionID: batch.SessionID,
			UserID:    batch.UserID,
			Name:      in.Name,
			TS:        in.TS,
			Props:     in.Props,
		})
	}

	httputil.RespondJSON(w, http.StatusCreated, batchOut{SessionID: batch.SessionID, Saved: saved})
}

// parseEventTime accepts RFC3339 with or without a zone offset; zoneless
// timestamps are taken as UTC, matching how producers send them.
func parseEventTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("ts is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
