// Package bridge delivers outbound messages to the WhatsApp bridge over HTTP.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"hestia.local/dispatch/internal/events"
)

const (
	sendTimeout   = 10 * time.Second
	maxReplyBytes = 4 << 10
)

// SendRequest is the body the bridge expects for one message.
type SendRequest struct {
	To      string `json:"to"`
	Body    string `json:"body"`
	TraceID string `json:"trace_id,omitempty"`
}

type Option func(*Sender)

// Sender turns message.outbound events into bridge send calls. Ticket events
// are not its concern and pass through untouched.
type Sender struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

func New(endpoint string, logger *log.Logger, opts ...Option) *Sender {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Sender{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: sendTimeout},
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

func (s *Sender) Name() string { return "bridge" }

func (s *Sender) Handle(ctx context.Context, event events.Event) error {
	if event.Type != events.TypeMessageOutbound {
		return nil
	}
	if event.To == "" {
		s.logger.Printf("bridge skip event_id=%s reason=no_recipient", event.ID)
		return nil
	}

	payload, err := json.Marshal(SendRequest{To: event.To, Body: event.Body, TraceID: event.TraceID})
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The bridge drops repeats of the same key, so dispatcher retries stay single sends.
	req.Header.Set("Idempotency-Key", event.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send to %s: %w", event.To, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	return fmt.Errorf("bridge rejected send to %s: status=%d body=%q", event.To, resp.StatusCode, strings.TrimSpace(string(reply)))
}
