package workers

import (
	"context"
	"errors"
	"strings"

	"hestia.local/dispatch/internal/ticket"
)

var ErrNotFound = errors.New("worker not found")

type Worker struct {
	Phone       string      `json:"phone" yaml:"phone"`
	Name        string      `json:"name" yaml:"name"`
	Nicknames   []string    `json:"nicknames,omitempty" yaml:"nicknames"`
	Area        ticket.Area `json:"area" yaml:"area"`
	ShiftActive bool        `json:"shift_active" yaml:"shift_active"`
}

// FirstName is the first whitespace separated token of the display name.
func (w Worker) FirstName() string {
	fields := strings.Fields(w.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Directory is the read view over worker records. SetShiftActive is the only
// mutation the dispatch core performs; Upsert is used by roster import.
type Directory interface {
	FindByPhone(ctx context.Context, phone string) (Worker, error)
	FindByName(ctx context.Context, query string) ([]Worker, error)
	ListAll(ctx context.Context) ([]Worker, error)
	SetShiftActive(ctx context.Context, phone string, active bool) (bool, error)
	Upsert(ctx context.Context, w Worker) error
	Close() error
}

// NormalizePhone strips transport prefixes and punctuation, keeping a leading '+'.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.ToLower(raw), "whatsapp:")
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeWorker(w Worker) Worker {
	w.Phone = NormalizePhone(w.Phone)
	w.Name = strings.TrimSpace(w.Name)
	nicknames := make([]string, 0, len(w.Nicknames))
	for _, n := range w.Nicknames {
		if n = strings.TrimSpace(n); n != "" {
			nicknames = append(nicknames, n)
		}
	}
	w.Nicknames = nicknames
	if w.Area == "" {
		w.Area = ticket.AreaHousekeeping
	}
	return w
}

func cloneWorker(w Worker) Worker {
	out := w
	out.Nicknames = append([]string(nil), w.Nicknames...)
	return out
}
