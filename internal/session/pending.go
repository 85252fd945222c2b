package session

import (
	"encoding/json"
	"fmt"

	"hestia.local/dispatch/internal/ticket"
)

// Pending is what the session is waiting for: nothing (nil), a yes/no answer,
// a numbered selection among workers, or a choice among the sender's tickets.
type Pending interface {
	Kind() PendingKind
}

type PendingKind string

const (
	PendingConfirmation PendingKind = "confirmation"
	PendingSelection    PendingKind = "selection"
	PendingTicketChoice PendingKind = "ticket_choice"
)

// Operation is the action a pending context commits once resolved.
type Operation string

const (
	OpAssign          Operation = "assign"
	OpReassign        Operation = "reassign"
	OpCreateAndAssign Operation = "create_and_assign"
	OpFinish          Operation = "finish"
	OpPause           Operation = "pause"
	OpResume          Operation = "resume"
	OpTake            Operation = "take"
	OpView            Operation = "view"
)

type Candidate struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Score int    `json:"score,omitempty"`
}

// AwaitingConfirmation holds a resolved worker until the supervisor says yes
// or no. Ticket is the snapshot shown in the prompt; Draft is set instead for
// create-and-assign.
type AwaitingConfirmation struct {
	Operation Operation      `json:"operation"`
	TicketID  int64          `json:"ticket_id,omitempty"`
	Worker    Candidate      `json:"worker"`
	Ticket    *ticket.Ticket `json:"ticket,omitempty"`
	Draft     *Draft         `json:"draft,omitempty"`
}

func (AwaitingConfirmation) Kind() PendingKind { return PendingConfirmation }

// AwaitingSelection is a numbered candidate list; a reply is an index or a
// further name filter.
type AwaitingSelection struct {
	Operation  Operation   `json:"operation"`
	TicketID   int64       `json:"ticket_id,omitempty"`
	Candidates []Candidate `json:"candidates"`
	Draft      *Draft      `json:"draft,omitempty"`
}

func (AwaitingSelection) Kind() PendingKind { return PendingSelection }

// AwaitingTicketChoice asks a worker which of their tickets an operation
// applies to.
type AwaitingTicketChoice struct {
	Operation Operation `json:"operation"`
	TicketIDs []int64   `json:"ticket_ids"`
}

func (AwaitingTicketChoice) Kind() PendingKind { return PendingTicketChoice }

type pendingEnvelope struct {
	Kind PendingKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodePending returns nil for a nil Pending.
func EncodePending(p Pending) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode pending %s: %w", p.Kind(), err)
	}
	return json.Marshal(pendingEnvelope{Kind: p.Kind(), Data: data})
}

func DecodePending(raw []byte) (Pending, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env pendingEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode pending envelope: %w", err)
	}
	switch env.Kind {
	case PendingConfirmation:
		var p AwaitingConfirmation
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode confirmation: %w", err)
		}
		return &p, nil
	case PendingSelection:
		var p AwaitingSelection
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode selection: %w", err)
		}
		return &p, nil
	case PendingTicketChoice:
		var p AwaitingTicketChoice
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode ticket choice: %w", err)
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown pending kind %q", env.Kind)
	}
}

func clonePending(p Pending) Pending {
	switch v := p.(type) {
	case *AwaitingConfirmation:
		c := *v
		if v.Ticket != nil {
			t := *v.Ticket
			c.Ticket = &t
		}
		if v.Draft != nil {
			d := *v.Draft
			c.Draft = &d
		}
		return &c
	case *AwaitingSelection:
		c := *v
		c.Candidates = append([]Candidate(nil), v.Candidates...)
		if v.Draft != nil {
			d := *v.Draft
			c.Draft = &d
		}
		return &c
	case *AwaitingTicketChoice:
		c := *v
		c.TicketIDs = append([]int64(nil), v.TicketIDs...)
		return &c
	default:
		return p
	}
}
