package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Result reports a committed transition so callers can notify the people involved.
type Result struct {
	Ticket        Ticket
	From          Status
	To            Status
	PriorAssignee string
}

// maxTransitionAttempts bounds re-reads after losing a conditional write.
const maxTransitionAttempts = 3

// Manager is the only writer of ticket status. Every transition is a single
// conditional store update guarded by the expected source status and assignee.
type Manager struct {
	store Store
	now   func() time.Time
}

type ManagerOption func(*Manager)

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(store Store, opts ...ManagerOption) *Manager {
	if store == nil {
		panic("ticket: store is required")
	}
	m := &Manager{
		store: store,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Manager) Create(ctx context.Context, in NewTicket) (Ticket, error) {
	t, err := m.store.Create(ctx, in)
	if err != nil {
		return Ticket{}, persistenceError("create ticket", err)
	}
	return t, nil
}

func (m *Manager) Get(ctx context.Context, id int64) (Ticket, error) {
	t, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Ticket{}, fmt.Errorf("ticket %d: %w", id, ErrNotFound)
		}
		return Ticket{}, persistenceError("get ticket", err)
	}
	return t, nil
}

// List returns tickets in any of statuses.
func (m *Manager) List(ctx context.Context, statuses ...Status) ([]Ticket, error) {
	out, err := m.store.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, persistenceError("list tickets", err)
	}
	return out, nil
}

// ListAssigned returns the tickets of one assignee in any of statuses.
func (m *Manager) ListAssigned(ctx context.Context, phone string, statuses ...Status) ([]Ticket, error) {
	out, err := m.store.ListByAssignee(ctx, phone, statuses...)
	if err != nil {
		return nil, persistenceError("list assigned tickets", err)
	}
	return out, nil
}

// Assign moves a PENDING ticket to ASSIGNED.
func (m *Manager) Assign(ctx context.Context, id int64, worker string) (Result, error) {
	worker = strings.TrimSpace(worker)
	if worker == "" {
		return Result{}, fmt.Errorf("assign ticket %d: worker is required", id)
	}
	now := m.now()
	return m.transition(ctx, id, ActionAssign, StatusPending, StatusAssigned, func(Ticket) (Fields, error) {
		return Fields{Assignee: &worker, AssignedAt: &now}, nil
	})
}

// Reassign changes the assignee of an ASSIGNED ticket. Result.PriorAssignee
// names the worker who should be told the ticket was taken away.
func (m *Manager) Reassign(ctx context.Context, id int64, worker string) (Result, error) {
	worker = strings.TrimSpace(worker)
	if worker == "" {
		return Result{}, fmt.Errorf("reassign ticket %d: worker is required", id)
	}
	now := m.now()
	return m.transition(ctx, id, ActionReassign, StatusAssigned, StatusAssigned, func(Ticket) (Fields, error) {
		return Fields{Assignee: &worker, AssignedAt: &now}, nil
	})
}

func (m *Manager) Accept(ctx context.Context, id int64, actor string) (Result, error) {
	now := m.now()
	return m.ownedTransition(ctx, id, actor, ActionAccept, StatusAssigned, StatusInProgress, func(Ticket) (Fields, error) {
		return Fields{AcceptedAt: &now, StartedAt: &now}, nil
	})
}

func (m *Manager) Pause(ctx context.Context, id int64, actor string) (Result, error) {
	now := m.now()
	return m.ownedTransition(ctx, id, actor, ActionPause, StatusInProgress, StatusPaused, func(Ticket) (Fields, error) {
		return Fields{PausedAt: &now}, nil
	})
}

func (m *Manager) Resume(ctx context.Context, id int64, actor string) (Result, error) {
	now := m.now()
	return m.ownedTransition(ctx, id, actor, ActionResume, StatusPaused, StatusInProgress, func(t Ticket) (Fields, error) {
		paused := t.PausedSeconds + pausedSince(t.PausedAt, now)
		return Fields{ClearPausedAt: true, PausedSeconds: &paused}, nil
	})
}

// Finish resolves an IN_PROGRESS ticket owned by actor.
func (m *Manager) Finish(ctx context.Context, id int64, actor string) (Result, error) {
	now := m.now()
	return m.ownedTransition(ctx, id, actor, ActionFinish, StatusInProgress, StatusResolved, func(Ticket) (Fields, error) {
		return Fields{FinishedAt: &now}, nil
	})
}

// SupervisorFinish resolves any non-terminal ticket regardless of owner.
func (m *Manager) SupervisorFinish(ctx context.Context, id int64) (Result, error) {
	current, err := m.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if current.Status.Terminal() {
		return Result{}, &TransitionError{TicketID: id, Action: ActionSupervisorFinish, Current: current.Status}
	}
	now := m.now()
	return m.transition(ctx, id, ActionSupervisorFinish, current.Status, StatusResolved, func(t Ticket) (Fields, error) {
		fields := Fields{FinishedAt: &now}
		if t.Status == StatusPaused {
			paused := t.PausedSeconds + pausedSince(t.PausedAt, now)
			fields.PausedSeconds = &paused
			fields.ClearPausedAt = true
		}
		return fields, nil
	})
}

func (m *Manager) ownedTransition(ctx context.Context, id int64, actor string, action Action, from, to Status, build func(Ticket) (Fields, error)) (Result, error) {
	actor = strings.TrimSpace(actor)
	return m.transition(ctx, id, action, from, to, func(t Ticket) (Fields, error) {
		if actor == "" || t.Assignee != actor {
			return Fields{}, fmt.Errorf("ticket %d %s by %s: %w", id, action, actor, ErrUnauthorized)
		}
		return build(t)
	})
}

func (m *Manager) transition(ctx context.Context, id int64, action Action, from, to Status, build func(Ticket) (Fields, error)) (Result, error) {
	for attempt := 1; ; attempt++ {
		current, err := m.Get(ctx, id)
		if err != nil {
			return Result{}, err
		}
		// Ownership is checked before the status guard so a non-owner always sees ErrUnauthorized.
		fields, err := build(current)
		if err != nil {
			return Result{}, err
		}
		if current.Status != from {
			return Result{}, &TransitionError{TicketID: id, Action: action, Current: current.Status}
		}
		prior := current.Assignee
		fields.ExpectedAssignee = &prior

		ok, err := m.store.UpdateStatus(ctx, id, from, to, fields)
		if err != nil {
			return Result{}, persistenceError(fmt.Sprintf("%s ticket %d", action, id), err)
		}
		if !ok {
			// Another writer got there first. Re-read so the guards run
			// against the ticket as it is now.
			if attempt < maxTransitionAttempts {
				continue
			}
			latest, getErr := m.Get(ctx, id)
			if getErr != nil {
				return Result{}, getErr
			}
			return Result{}, &TransitionError{TicketID: id, Action: action, Current: latest.Status}
		}

		updated, err := m.Get(ctx, id)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Ticket:        updated,
			From:          from,
			To:            to,
			PriorAssignee: prior,
		}, nil
	}
}

func pausedSince(pausedAt *time.Time, now time.Time) int64 {
	if pausedAt == nil {
		return 0
	}
	d := now.Sub(*pausedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
