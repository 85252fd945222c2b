package hours

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Notice is a supervisor message held back until operating hours.
type Notice struct {
	ID          int64
	Recipient   string
	Body        string
	TicketID    int64
	CreatedAt   time.Time
	DeliveredAt *time.Time
}

type NoticeStore interface {
	Defer(ctx context.Context, n Notice) (Notice, error)
	Pending(ctx context.Context) ([]Notice, error)
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
}

type MemoryNoticeStore struct {
	mu      sync.Mutex
	notices map[int64]Notice
	nextID  int64
}

func NewMemoryNoticeStore() *MemoryNoticeStore {
	return &MemoryNoticeStore{notices: make(map[int64]Notice), nextID: 1}
}

func (s *MemoryNoticeStore) Defer(_ context.Context, n Notice) (Notice, error) {
	if err := validateNotice(n); err != nil {
		return Notice{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.nextID
	s.nextID++
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.DeliveredAt = nil
	s.notices[n.ID] = n
	return n, nil
}

func (s *MemoryNoticeStore) Pending(_ context.Context) ([]Notice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notice, 0)
	for _, n := range s.notices {
		if n.DeliveredAt == nil {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryNoticeStore) MarkDelivered(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notices[id]
	if !ok {
		return fmt.Errorf("notice %d not found", id)
	}
	at = at.UTC()
	n.DeliveredAt = &at
	s.notices[id] = n
	return nil
}

func validateNotice(n Notice) error {
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("notice recipient is required")
	}
	if strings.TrimSpace(n.Body) == "" {
		return fmt.Errorf("notice body is required")
	}
	return nil
}
