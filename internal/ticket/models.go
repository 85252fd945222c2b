package ticket

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusAssigned   Status = "ASSIGNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPaused     Status = "PAUSED"
	StatusResolved   Status = "RESOLVED"
)

// OpenStatuses are every non-terminal status.
var OpenStatuses = []Status{StatusPending, StatusAssigned, StatusInProgress, StatusPaused}

func (s Status) Terminal() bool {
	return s == StatusResolved
}

func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusAssigned:
		return StatusAssigned, true
	case StatusInProgress:
		return StatusInProgress, true
	case StatusPaused:
		return StatusPaused, true
	case StatusResolved:
		return StatusResolved, true
	default:
		return "", false
	}
}

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Rank orders priorities for sorting, HIGH first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

type Area string

const (
	AreaHousekeeping Area = "HOUSEKEEPING"
	AreaCommonAreas  Area = "COMMON_AREAS"
	AreaMaintenance  Area = "MAINTENANCE"
)

func ParseArea(raw string) (Area, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "HOUSEKEEPING", "HK", "LIMPIEZA":
		return AreaHousekeeping, true
	case "COMMON_AREAS", "AREAS_COMUNES", "COMMON":
		return AreaCommonAreas, true
	case "MAINTENANCE", "MANTENIMIENTO", "MANTENCION":
		return AreaMaintenance, true
	default:
		return "", false
	}
}

type LocationKind string

const (
	LocationRoom LocationKind = "room"
	LocationArea LocationKind = "area"
)

type Ticket struct {
	ID            int64        `json:"id"`
	Location      string       `json:"location"`
	LocationKind  LocationKind `json:"location_kind"`
	Detail        string       `json:"detail"`
	Priority      Priority     `json:"priority"`
	Area          Area         `json:"area"`
	Status        Status       `json:"status"`
	CreatedBy     string       `json:"created_by"`
	Assignee      string       `json:"assignee,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	AssignedAt    *time.Time   `json:"assigned_at,omitempty"`
	AcceptedAt    *time.Time   `json:"accepted_at,omitempty"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	PausedAt      *time.Time   `json:"paused_at,omitempty"`
	FinishedAt    *time.Time   `json:"finished_at,omitempty"`
	PausedSeconds int64        `json:"paused_seconds"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewTicket holds the fields a reporter supplies. Tickets are always created PENDING.
type NewTicket struct {
	Location     string
	LocationKind LocationKind
	Detail       string
	Priority     Priority
	Area         Area
	CreatedBy    string
}

// Fields are the extra columns written together with a status change.
// Nil pointers leave the stored value untouched. ExpectedAssignee is a guard,
// not a column: when set, the write only applies while the ticket still has
// that assignee.
type Fields struct {
	ExpectedAssignee *string

	Assignee      *string
	AssignedAt    *time.Time
	AcceptedAt    *time.Time
	StartedAt     *time.Time
	PausedAt      *time.Time
	ClearPausedAt bool
	FinishedAt    *time.Time
	PausedSeconds *int64
}

func (f Fields) apply(t *Ticket) {
	if f.Assignee != nil {
		t.Assignee = *f.Assignee
	}
	if f.AssignedAt != nil {
		t.AssignedAt = timePtr(*f.AssignedAt)
	}
	if f.AcceptedAt != nil {
		t.AcceptedAt = timePtr(*f.AcceptedAt)
	}
	if f.StartedAt != nil {
		t.StartedAt = timePtr(*f.StartedAt)
	}
	if f.PausedAt != nil {
		t.PausedAt = timePtr(*f.PausedAt)
	}
	if f.ClearPausedAt {
		t.PausedAt = nil
	}
	if f.FinishedAt != nil {
		t.FinishedAt = timePtr(*f.FinishedAt)
	}
	if f.PausedSeconds != nil {
		t.PausedSeconds = *f.PausedSeconds
	}
}

func timePtr(t time.Time) *time.Time {
	v := t.UTC()
	return &v
}

func (t Ticket) clone() Ticket {
	out := t
	for _, p := range []**time.Time{&out.AssignedAt, &out.AcceptedAt, &out.StartedAt, &out.PausedAt, &out.FinishedAt} {
		if *p != nil {
			*p = timePtr(**p)
		}
	}
	return out
}
