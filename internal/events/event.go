// Package events defines what the dispatch core emits: outbound messages for
// the messaging bridge and ticket lifecycle notifications for observers.
package events

import (
	"time"

	"hestia.local/dispatch/internal/ids"
	"hestia.local/dispatch/internal/ticket"
)

type Type string

const (
	TypeMessageOutbound  Type = "message.outbound"
	TypeTicketCreated    Type = "ticket.created"
	TypeTicketAssigned   Type = "ticket.assigned"
	TypeTicketReassigned Type = "ticket.reassigned"
	TypeTicketAccepted   Type = "ticket.accepted"
	TypeTicketPaused     Type = "ticket.paused"
	TypeTicketResumed    Type = "ticket.resumed"
	TypeTicketResolved   Type = "ticket.resolved"
)

func (t Type) IsTicket() bool {
	switch t {
	case TypeTicketCreated, TypeTicketAssigned, TypeTicketReassigned, TypeTicketAccepted,
		TypeTicketPaused, TypeTicketResumed, TypeTicketResolved:
		return true
	default:
		return false
	}
}

type Event struct {
	ID         string         `json:"event_id"`
	TraceID    string         `json:"trace_id,omitempty"`
	Type       Type           `json:"event_type"`
	OccurredAt time.Time      `json:"occurred_at"`
	To         string         `json:"to,omitempty"`
	Body       string         `json:"body,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Ticket     *ticket.Ticket `json:"ticket,omitempty"`
}

// Message is an outbound send(to, body) request.
func Message(traceID, to, body string) Event {
	return Event{
		ID:         ids.New(),
		TraceID:    traceID,
		Type:       TypeMessageOutbound,
		OccurredAt: time.Now().UTC(),
		To:         to,
		Body:       body,
	}
}

// TicketChanged snapshots t after a lifecycle change made by actor.
func TicketChanged(traceID string, typ Type, actor string, t ticket.Ticket) Event {
	snapshot := t
	return Event{
		ID:         ids.New(),
		TraceID:    traceID,
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Ticket:     &snapshot,
	}
}

// ForAction maps a lifecycle action to its event type.
func ForAction(action ticket.Action) Type {
	switch action {
	case ticket.ActionAssign:
		return TypeTicketAssigned
	case ticket.ActionReassign:
		return TypeTicketReassigned
	case ticket.ActionAccept:
		return TypeTicketAccepted
	case ticket.ActionPause:
		return TypeTicketPaused
	case ticket.ActionResume:
		return TypeTicketResumed
	default:
		return TypeTicketResolved
	}
}
