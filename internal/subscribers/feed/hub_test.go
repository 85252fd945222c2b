package feed

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hestia.local/dispatch/internal/events"
	"hestia.local/dispatch/internal/ticket"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestHubBroadcastsTicketEvents(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)

	if err := hub.Handle(context.Background(), events.Message("", "+1", "ignored")); err != nil {
		t.Fatalf("handle outbound: %v", err)
	}
	tk := ticket.Ticket{ID: 9, Location: "Hab 204", Status: ticket.StatusPending}
	if err := hub.Handle(context.Background(), events.TicketChanged("trace", events.TypeTicketCreated, "+1", tk)); err != nil {
		t.Fatalf("handle ticket: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got events.Event
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != events.TypeTicketCreated || got.Ticket == nil || got.Ticket.ID != 9 {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected client removal after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)
	hub.Close()

	if hub.Len() != 0 {
		t.Fatalf("expected no clients after close")
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected read error after hub close")
	}
}
