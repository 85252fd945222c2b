package scoring

import (
	"context"
	"fmt"

	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

// DefaultLimit is how many candidates a supervisor sees when asking for
// suggestions.
const DefaultLimit = 5

// Engine reads worker and ticket state to rank candidates.
type Engine struct {
	tickets   ticket.Store
	directory workers.Directory
}

func NewEngine(tickets ticket.Store, directory workers.Directory) *Engine {
	return &Engine{tickets: tickets, directory: directory}
}

// Suggest ranks the whole directory for t and returns at most limit candidates.
func (e *Engine) Suggest(ctx context.Context, t ticket.Ticket, limit int) ([]Candidate, error) {
	all, err := e.directory.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	ranked, err := e.RankWorkers(ctx, t, all)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// RankWorkers orders an already filtered set, such as several name matches.
func (e *Engine) RankWorkers(ctx context.Context, t ticket.Ticket, ws []workers.Worker) ([]Candidate, error) {
	loads, err := e.Loads(ctx)
	if err != nil {
		return nil, err
	}
	return Rank(t, ws, loads), nil
}

func (e *Engine) Loads(ctx context.Context) (map[string]Load, error) {
	open, err := e.tickets.ListByStatus(ctx, ticket.StatusAssigned, ticket.StatusInProgress, ticket.StatusPaused)
	if err != nil {
		return nil, fmt.Errorf("list open tickets: %w", err)
	}
	return LoadsFromTickets(open), nil
}
