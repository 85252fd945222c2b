// Package conversation holds the worker and supervisor state machines. An
// orchestrator reads one inbound message against a working copy of the
// sender's session and records everything it wants sent in an Outbox; the
// caller delivers the Outbox only after the session is saved.
package conversation

import (
	"context"

	"hestia.local/dispatch/internal/events"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/ticket"
)

// Sender is the resolved identity of an inbound message.
type Sender struct {
	Phone string
	Name  string
	Role  session.Role
	Area  ticket.Area
}

type Message struct {
	To   string
	Body string
	// Deferrable messages are held back outside operating hours.
	Deferrable bool
	TicketID   int64
}

// Change is a committed ticket transition to publish.
type Change struct {
	Type   events.Type
	Actor  string
	Ticket ticket.Ticket
}

type Outbox struct {
	Messages []Message
	Changes  []Change
}

func (o *Outbox) Reply(to, body string) {
	o.Messages = append(o.Messages, Message{To: to, Body: body})
}

// Alert queues a supervisor notification that waits for operating hours.
func (o *Outbox) Alert(to, body string, ticketID int64) {
	o.Messages = append(o.Messages, Message{To: to, Body: body, Deferrable: true, TicketID: ticketID})
}

func (o *Outbox) Changed(typ events.Type, actor string, t ticket.Ticket) {
	o.Changes = append(o.Changes, Change{Type: typ, Actor: actor, Ticket: t})
}

// Replies returns the bodies addressed to phone, in order.
func (o *Outbox) Replies(phone string) []string {
	var out []string
	for _, m := range o.Messages {
		if m.To == phone {
			out = append(out, m.Body)
		}
	}
	return out
}

// discardMessages drops queued messages but keeps committed changes.
func (o *Outbox) discardMessages() {
	o.Messages = nil
}

// Orchestrator handles one message for one sender. It mutates sess in place
// and never returns an error: every failure becomes a reply.
type Orchestrator interface {
	Handle(ctx context.Context, sess *session.Session, from Sender, text string) *Outbox
}
