package session

import (
	"strings"
	"time"

	"hestia.local/dispatch/internal/ticket"
)

type Role string

const (
	RoleWorker     Role = "worker"
	RoleSupervisor Role = "supervisor"
)

type State string

const (
	StateMenu              State = "MENU"
	StateViewingTickets    State = "VIEWING_TICKETS"
	StateWorking           State = "WORKING"
	StateReportingLocation State = "REPORTING_LOCATION"
	StateReportingDetail   State = "REPORTING_DETAIL"
	StateConfirmingReport  State = "CONFIRMING_REPORT"
)

// ParseState decodes a persisted state. Anything unrecognised becomes MENU so
// a corrupted record can always be recovered with "menu".
func ParseState(raw string) State {
	switch s := State(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StateMenu, StateViewingTickets, StateWorking, StateReportingLocation, StateReportingDetail, StateConfirmingReport:
		return s
	default:
		return StateMenu
	}
}

// Draft is a report being captured; it is not a ticket until confirmed.
type Draft struct {
	Location     string              `json:"location,omitempty"`
	LocationKind ticket.LocationKind `json:"location_kind,omitempty"`
	Area         ticket.Area         `json:"area,omitempty"`
	Detail       string              `json:"detail,omitempty"`
	Priority     ticket.Priority     `json:"priority,omitempty"`
}

func (d Draft) Empty() bool {
	return d == Draft{}
}

func (d Draft) NewTicket(createdBy string) ticket.NewTicket {
	return ticket.NewTicket{
		Location:     d.Location,
		LocationKind: d.LocationKind,
		Detail:       d.Detail,
		Priority:     d.Priority,
		Area:         d.Area,
		CreatedBy:    createdBy,
	}
}

// Session is one sender's conversational state. Version is owned by the
// Store and guards against concurrent writers.
type Session struct {
	Phone          string
	Role           Role
	State          State
	Draft          Draft
	Pending        Pending
	ActiveTicketID int64
	LastGreeted    string // YYYY-MM-DD in the operating timezone
	ShiftActive    bool
	LastReminderAt *time.Time
	Version        int64
	UpdatedAt      time.Time
}

func New(phone string) Session {
	return Session{Phone: phone, State: StateMenu}
}

// Reset is the "menu" hard reset.
func (s *Session) Reset() {
	s.State = StateMenu
	s.Draft = Draft{}
	s.Pending = nil
	s.ActiveTicketID = 0
}

func (s Session) Clone() Session {
	out := s
	out.Pending = clonePending(s.Pending)
	if s.LastReminderAt != nil {
		at := *s.LastReminderAt
		out.LastReminderAt = &at
	}
	return out
}
