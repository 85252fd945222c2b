package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"hestia.local/dispatch/internal/gateway"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

const maxMessageBytes int64 = 64 << 10

// Acceptor queues inbound messages; the gateway Router implements it.
type Acceptor interface {
	Accept(ctx context.Context, msg gateway.Inbound) (gateway.Inbound, error)
}

// TicketLister is the read side of the ticket manager.
type TicketLister interface {
	List(ctx context.Context, statuses ...ticket.Status) ([]ticket.Ticket, error)
	ListAssigned(ctx context.Context, phone string, statuses ...ticket.Status) ([]ticket.Ticket, error)
}

type server struct {
	logger   *log.Logger
	acceptor Acceptor
	tickets  TicketLister
	feed     http.Handler
}

// NewServer builds the HTTP surface. feed may be nil, in which case
// /v1/feed answers 501.
func NewServer(logger *log.Logger, addr string, acceptor Acceptor, tickets TicketLister, feed http.Handler) *http.Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &server{
		logger:   logger,
		acceptor: acceptor,
		tickets:  tickets,
		feed:     feed,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/v1/messages", h.handleMessages)
	mux.HandleFunc("/v1/tickets", h.handleTickets)
	mux.HandleFunc("/v1/feed", h.handleFeed)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type messageRequest struct {
	SenderPhone string `json:"sender_phone"`
	Kind        string `json:"kind"`
	Text        string `json:"text"`
	MediaRef    string `json:"media_ref"`
}

func (s *server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	defer r.Body.Close()
	var req messageRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxMessageBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if dec.More() {
		http.Error(w, "invalid json: trailing content", http.StatusBadRequest)
		return
	}

	msg, err := s.acceptor.Accept(r.Context(), gateway.Inbound{
		SenderPhone: req.SenderPhone,
		Kind:        gateway.MessageKind(req.Kind),
		Text:        req.Text,
		MediaRef:    req.MediaRef,
	})
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrInvalidMessage):
			http.Error(w, fmt.Sprintf("invalid message: %v", err), http.StatusBadRequest)
		case errors.Is(err, session.ErrSessionQueueFull):
			http.Error(w, "sender queue full", http.StatusTooManyRequests)
		case errors.Is(err, session.ErrSchedulerClosed):
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		default:
			s.logger.Printf("accept message failed phone=%s err=%v", msg.SenderPhone, err)
			http.Error(w, "failed to accept message", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted":   true,
		"message_id": msg.ID,
	})
}

func (s *server) handleTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statuses, err := parseStatuses(r.URL.Query()["status"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var list []ticket.Ticket
	if assignee := workers.NormalizePhone(r.URL.Query().Get("assignee")); assignee != "" {
		list, err = s.tickets.ListAssigned(r.Context(), assignee, statuses...)
	} else {
		list, err = s.tickets.List(r.Context(), statuses...)
	}
	if err != nil {
		s.logger.Printf("list tickets failed err=%v", err)
		http.Error(w, "failed to list tickets", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tickets": list,
		"count":   len(list),
	})
}

// parseStatuses accepts repeated and comma separated status values.
func parseStatuses(raw []string) ([]ticket.Status, error) {
	var out []ticket.Status
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := ticket.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			out = append(out, status)
		}
	}
	return out, nil
}

func (s *server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.feed == nil {
		http.Error(w, "feed not configured", http.StatusNotImplemented)
		return
	}
	s.feed.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
