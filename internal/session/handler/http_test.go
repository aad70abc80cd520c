package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"magnos-hutch/backend/internal/session/domain"
	"magnos-hutch/backend/internal/session/repository"
	"magnos-hutch/backend/internal/session/service"
)

// memStore implements repository.TxStore in memory for handler tests.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	events   []*domain.Event
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*domain.Session{}}
}

func (m *memStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) UpsertSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) AppendEvent(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *memStore) ListSessionsStartedBetween(_ context.Context, from, to time.Time) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Session
	for _, s := range m.sessions {
		if !s.StartedAt.Before(from) && !s.StartedAt.After(to) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListKnownDurations(context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for _, s := range m.sessions {
		if s.DurationSec != nil {
			out = append(out, *s.DurationSec)
		}
	}
	return out, nil
}

func (m *memStore) InTx(_ context.Context, fn func(repository.Store) error) error {
	return fn(m)
}

func newTestServer(store repository.TxStore) *httptest.Server {
	ingest := service.NewIngestService(store, 1000, nil)
	h := New(ingest, nil)
	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		h.RegisterRoutes(api)
	})
	return httptest.NewServer(r)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestHandleIngest_CreatesSessionAndLogsEvents(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/events", map[string]any{
		"session_id": "s1",
		"user_id":    "u1",
		"events": []map[string]any{
			{"name": "game_start", "ts": "2026-03-01T10:00:00Z"},
			{"name": "jump", "ts": "2026-03-01T10:00:05Z"},
			{"name": "game_over", "ts": "2026-03-01T10:01:30Z", "props": map[string]any{"final_score": 500}},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var out struct {
		SessionID string `json:"session_id"`
		Saved     int    `json:"saved"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.SessionID != "s1" || out.Saved != 3 {
		t.Errorf("response = %+v, want session_id=s1 saved=3", out)
	}

	sess := store.sessions["s1"]
	if sess == nil {
		t.Fatal("session s1 not persisted")
	}
	if sess.Score == nil || *sess.Score != 500 {
		t.Errorf("score = %v, want 500", sess.Score)
	}
	if sess.DurationSec == nil || *sess.DurationSec != 90 {
		t.Errorf("duration = %v, want 90", sess.DurationSec)
	}
	if len(store.events) != 3 {
		t.Errorf("events logged = %d, want 3", len(store.events))
	}
}

func TestHandleIngest_AcceptsZonelessTimestamps(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/events", map[string]any{
		"session_id": "s1",
		"events": []map[string]any{
			{"name": "game_start", "ts": "2026-03-01T10:00:00"},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if got := store.sessions["s1"].StartedAt; !got.Equal(want) {
		t.Errorf("started_at = %v, want %v", got, want)
	}
}

func TestHandleIngest_BadRequests(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(store)
	defer srv.Close()

	cases := []struct {
		name string
		body any
	}{
		{"missing session_id", map[string]any{
			"events": []map[string]any{{"name": "jump", "ts": "2026-03-01T10:00:00Z"}},
		}},
		{"empty events", map[string]any{"session_id": "s1", "events": []map[string]any{}}},
		{"missing event name", map[string]any{
			"session_id": "s1",
			"events":     []map[string]any{{"ts": "2026-03-01T10:00:00Z"}},
		}},
		{"bad timestamp", map[string]any{
			"session_id": "s1",
			"events":     []map[string]any{{"name": "jump", "ts": "yesterday"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/events", tc.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}

	if len(store.events) != 0 {
		t.Errorf("rejected batches must not persist events, got %d", len(store.events))
	}
}

func TestHandleIngest_InvalidJSON(t *testing.T) {
	srv := newTestServer(newMemStore())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/events", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleIngest_BatchOverLimit(t *testing.T) {
	store := newMemStore()
	ingest := service.NewIngestService(store, 2, nil)
	h := New(ingest, nil)
	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		h.RegisterRoutes(api)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	events := make([]map[string]any, 3)
	for i := range events {
		events[i] = map[string]any{"name": "jump", "ts": "2026-03-01T10:00:00Z"}
	}
	resp := postJSON(t, srv.URL+"/api/events", map[string]any{"session_id": "s1", "events": events})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
