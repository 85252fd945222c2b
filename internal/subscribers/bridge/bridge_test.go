package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"hestia.local/dispatch/internal/events"
	"hestia.local/dispatch/internal/ticket"
)

func TestSenderPostsSendRequest(t *testing.T) {
	var raw map[string]any
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		key = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := New(srv.URL, nil, WithHTTPClient(srv.Client()))
	event := events.Message("trace_1", "+56911", "Ticket #12 asignado")
	if err := sender.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	want := map[string]any{"to": "+56911", "body": "Ticket #12 asignado", "trace_id": "trace_1"}
	if len(raw) != len(want) {
		t.Fatalf("expected exactly %v, got %v", want, raw)
	}
	for k, v := range want {
		if raw[k] != v {
			t.Fatalf("field %s = %v, want %v", k, raw[k], v)
		}
	}
	if key != event.ID {
		t.Fatalf("expected idempotency key %s, got %q", event.ID, key)
	}
}

func TestSenderOmitsEmptyTraceID(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
	}))
	defer srv.Close()

	if err := New(srv.URL, nil).Handle(context.Background(), events.Message("", "+1", "hola")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, ok := raw["trace_id"]; ok {
		t.Fatalf("expected no trace_id, got %v", raw)
	}
	if raw["to"] != "+1" || raw["body"] != "hola" {
		t.Fatalf("unexpected payload %v", raw)
	}
}

func TestSenderIgnoresTicketEvents(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	sender := New(srv.URL, nil)
	event := events.TicketChanged("", events.TypeTicketCreated, "+1", ticket.Ticket{ID: 1})
	if err := sender.Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := sender.Handle(context.Background(), events.Message("", "", "sin destino")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no bridge calls, got %d", calls)
	}
	if sender.Name() != "bridge" {
		t.Fatalf("unexpected name %s", sender.Name())
	}
}

func TestSenderReportsRejectedSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bridge down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, nil).Handle(context.Background(), events.Message("", "+1", "x"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "status=502") || !strings.Contains(err.Error(), "bridge down") {
		t.Fatalf("unexpected error: %v", err)
	}
}
