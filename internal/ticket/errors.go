package ticket

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("ticket not found")
	ErrInvalidTransition = errors.New("invalid ticket transition")
	ErrUnauthorized      = errors.New("ticket not assigned to caller")
	ErrPersistence       = errors.New("ticket persistence failure")
)

type Action string

const (
	ActionAssign           Action = "assign"
	ActionReassign         Action = "reassign"
	ActionAccept           Action = "accept"
	ActionPause            Action = "pause"
	ActionResume           Action = "resume"
	ActionFinish           Action = "finish"
	ActionSupervisorFinish Action = "supervisor_finish"
)

// TransitionError reports a lifecycle guard violation.
type TransitionError struct {
	TicketID int64
	Action   Action
	Current  Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("ticket %d: cannot %s from %s", e.TicketID, e.Action, e.Current)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
