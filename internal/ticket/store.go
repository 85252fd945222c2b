package ticket

import "context"

// Store is the persistence contract for tickets. UpdateStatus is a conditional
// write: it applies only while the stored status still equals from, and
// reports false otherwise.
type Store interface {
	Create(ctx context.Context, in NewTicket) (Ticket, error)
	Get(ctx context.Context, id int64) (Ticket, error)
	UpdateStatus(ctx context.Context, id int64, from, to Status, fields Fields) (bool, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]Ticket, error)
	ListByAssignee(ctx context.Context, phone string, statuses ...Status) ([]Ticket, error)
	Close() error
}
