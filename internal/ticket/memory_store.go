package ticket

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.Mutex
	tickets map[int64]Ticket
	nextID  int64
	closed  bool
	now     func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithMemoryClock sets the clock used for created_at and updated_at.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		tickets: make(map[int64]Ticket),
		nextID:  1,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, in NewTicket) (Ticket, error) {
	if err := validateNewTicket(in); err != nil {
		return Ticket{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Ticket{}, fmt.Errorf("memory store is closed")
	}

	now := s.now()
	t := ticketFromNew(in, now)
	t.ID = s.nextID
	s.nextID++
	s.tickets[t.ID] = t
	return t.clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Ticket{}, fmt.Errorf("memory store is closed")
	}

	t, ok := s.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return t.clone(), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id int64, from, to Status, fields Fields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("memory store is closed")
	}

	t, ok := s.tickets[id]
	if !ok || t.Status != from {
		return false, nil
	}
	if fields.ExpectedAssignee != nil && t.Assignee != *fields.ExpectedAssignee {
		return false, nil
	}
	t.Status = to
	fields.apply(&t)
	t.UpdatedAt = s.now()
	s.tickets[id] = t
	return true, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, statuses ...Status) ([]Ticket, error) {
	return s.list(func(t Ticket) bool {
		return statusIn(t.Status, statuses)
	})
}

func (s *MemoryStore) ListByAssignee(_ context.Context, phone string, statuses ...Status) ([]Ticket, error) {
	phone = strings.TrimSpace(phone)
	return s.list(func(t Ticket) bool {
		return t.Assignee == phone && statusIn(t.Status, statuses)
	})
}

func (s *MemoryStore) list(keep func(Ticket) bool) ([]Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("memory store is closed")
	}

	out := make([]Ticket, 0)
	for _, t := range s.tickets {
		if keep(t) {
			out = append(out, t.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// statusIn treats an empty filter as "any status".
func statusIn(status Status, statuses []Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func validateNewTicket(in NewTicket) error {
	if strings.TrimSpace(in.Location) == "" {
		return fmt.Errorf("location is required")
	}
	if strings.TrimSpace(in.Detail) == "" {
		return fmt.Errorf("detail is required")
	}
	if strings.TrimSpace(in.CreatedBy) == "" {
		return fmt.Errorf("created_by is required")
	}
	return nil
}

func ticketFromNew(in NewTicket, now time.Time) Ticket {
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	kind := in.LocationKind
	if kind == "" {
		kind = LocationArea
	}
	area := in.Area
	if area == "" {
		area = AreaHousekeeping
	}
	return Ticket{
		Location:     strings.TrimSpace(in.Location),
		LocationKind: kind,
		Detail:       strings.TrimSpace(in.Detail),
		Priority:     priority,
		Area:         area,
		Status:       StatusPending,
		CreatedBy:    strings.TrimSpace(in.CreatedBy),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
