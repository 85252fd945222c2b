package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hestia.local/dispatch/internal/events"
	"hestia.local/dispatch/internal/gateway"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/subscribers/feed"
	"hestia.local/dispatch/internal/ticket"
)

type fakeAcceptor struct {
	err  error
	seen []gateway.Inbound
}

func (f *fakeAcceptor) Accept(_ context.Context, msg gateway.Inbound) (gateway.Inbound, error) {
	msg = msg.Normalize()
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	f.seen = append(f.seen, msg)
	if f.err != nil {
		return msg, f.err
	}
	msg.ID = "msg-1"
	return msg, nil
}

func newTestHandler(t *testing.T, acceptor Acceptor, hub http.Handler) (http.Handler, *ticket.Manager) {
	t.Helper()
	manager := ticket.NewManager(ticket.NewMemoryStore())
	srv := NewServer(nil, ":0", acceptor, manager, hub)
	return srv.Handler, manager
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t, &fakeAcceptor{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestMessagesAccepted(t *testing.T) {
	acceptor := &fakeAcceptor{}
	h, _ := newTestHandler(t, acceptor, nil)

	rr := post(h, `{"sender_phone":"+56 9 1111 1111","kind":"text","text":"hab 305 fuga"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Accepted  bool   `json:"accepted"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Accepted || resp.MessageID != "msg-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(acceptor.seen) != 1 || acceptor.seen[0].SenderPhone != "+56911111111" {
		t.Fatalf("unexpected accepted messages: %+v", acceptor.seen)
	}
}

func TestMessagesRejectsBadInput(t *testing.T) {
	h, _ := newTestHandler(t, &fakeAcceptor{}, nil)

	cases := map[string]string{
		"malformed":      `{"sender_phone":`,
		"unknown field":  `{"sender_phone":"+1","text":"hola","channel":"sms"}`,
		"trailing":       `{"sender_phone":"+1","text":"hola"}{}`,
		"missing phone":  `{"text":"hola"}`,
		"empty text":     `{"sender_phone":"+1","kind":"text","text":"  "}`,
		"unknown kind":   `{"sender_phone":"+1","kind":"sticker","text":"hola"}`,
		"audio no media": `{"sender_phone":"+1","kind":"audio"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if rr := post(h, body); rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestMessagesErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{session.ErrSessionQueueFull, http.StatusTooManyRequests},
		{session.ErrSchedulerClosed, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h, _ := newTestHandler(t, &fakeAcceptor{err: tc.err}, nil)
		if rr := post(h, `{"sender_phone":"+1","text":"hola"}`); rr.Code != tc.want {
			t.Fatalf("err=%v expected %d, got %d", tc.err, tc.want, rr.Code)
		}
	}
}

func TestMessagesMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t, &fakeAcceptor{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/messages", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestTicketsListing(t *testing.T) {
	h, manager := newTestHandler(t, &fakeAcceptor{}, nil)
	ctx := context.Background()
	for _, loc := range []string{"101", "102", "103"} {
		if _, err := manager.Create(ctx, ticket.NewTicket{Location: loc, LocationKind: ticket.LocationRoom, Detail: "toallas", Priority: ticket.PriorityMedium, Area: ticket.AreaHousekeeping, CreatedBy: "+1"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := manager.Assign(ctx, 2, "+56911111111"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	get := func(query string) (int, []ticket.Ticket) {
		req := httptest.NewRequest(http.MethodGet, "/v1/tickets"+query, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		var resp struct {
			Tickets []ticket.Ticket `json:"tickets"`
		}
		if rr.Code == http.StatusOK {
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
		}
		return rr.Code, resp.Tickets
	}

	if code, list := get(""); code != http.StatusOK || len(list) != 3 {
		t.Fatalf("expected all 3 tickets, got code=%d len=%d", code, len(list))
	}
	if code, list := get("?status=pending"); code != http.StatusOK || len(list) != 2 {
		t.Fatalf("expected 2 pending, got code=%d len=%d", code, len(list))
	}
	if code, list := get("?status=PENDING,assigned"); code != http.StatusOK || len(list) != 3 {
		t.Fatalf("expected 3 open, got code=%d len=%d", code, len(list))
	}
	if code, list := get("?assignee=%2B56911111111"); code != http.StatusOK || len(list) != 1 || list[0].ID != 2 {
		t.Fatalf("expected ticket 2 for assignee, got code=%d list=%+v", code, list)
	}
	if code, _ := get("?status=closed"); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", code)
	}
}

func TestFeedNotConfigured(t *testing.T) {
	h, _ := newTestHandler(t, &fakeAcceptor{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}

func TestFeedStreamsTicketEvents(t *testing.T) {
	hub := feed.NewHub(nil)
	t.Cleanup(hub.Close)
	h, _ := newTestHandler(t, &fakeAcceptor{}, hub)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/feed", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	tk := ticket.Ticket{ID: 4, Location: "305", Status: ticket.StatusAssigned}
	if err := hub.Handle(context.Background(), events.TicketChanged("trace", events.TypeTicketAssigned, "+1", tk)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != events.TypeTicketAssigned || got.Ticket == nil || got.Ticket.ID != 4 {
		t.Fatalf("unexpected event: %+v", got)
	}
}
