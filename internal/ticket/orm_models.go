package ticket

import "time"

type ticketRow struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	Location      string    `gorm:"size:191;not null"`
	LocationKind  string    `gorm:"size:16;not null"`
	Detail        string    `gorm:"type:text;not null"`
	Priority      string    `gorm:"size:16;not null"`
	Area          string    `gorm:"size:32;not null"`
	Status        string    `gorm:"size:32;not null;index"`
	CreatedBy     string    `gorm:"size:64;not null"`
	Assignee      string    `gorm:"size:64;index"`
	CreatedAt     time.Time `gorm:"not null"`
	AssignedAt    *time.Time
	AcceptedAt    *time.Time
	StartedAt     *time.Time
	PausedAt      *time.Time
	FinishedAt    *time.Time
	PausedSeconds int64     `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (ticketRow) TableName() string {
	return "tickets"
}

func (r ticketRow) toTicket() Ticket {
	return Ticket{
		ID:            r.ID,
		Location:      r.Location,
		LocationKind:  LocationKind(r.LocationKind),
		Detail:        r.Detail,
		Priority:      Priority(r.Priority),
		Area:          Area(r.Area),
		Status:        Status(r.Status),
		CreatedBy:     r.CreatedBy,
		Assignee:      r.Assignee,
		CreatedAt:     r.CreatedAt.UTC(),
		AssignedAt:    utcPtr(r.AssignedAt),
		AcceptedAt:    utcPtr(r.AcceptedAt),
		StartedAt:     utcPtr(r.StartedAt),
		PausedAt:      utcPtr(r.PausedAt),
		FinishedAt:    utcPtr(r.FinishedAt),
		PausedSeconds: r.PausedSeconds,
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func rowFromTicket(t Ticket) ticketRow {
	return ticketRow{
		ID:            t.ID,
		Location:      t.Location,
		LocationKind:  string(t.LocationKind),
		Detail:        t.Detail,
		Priority:      string(t.Priority),
		Area:          string(t.Area),
		Status:        string(t.Status),
		CreatedBy:     t.CreatedBy,
		Assignee:      t.Assignee,
		CreatedAt:     t.CreatedAt,
		AssignedAt:    t.AssignedAt,
		AcceptedAt:    t.AcceptedAt,
		StartedAt:     t.StartedAt,
		PausedAt:      t.PausedAt,
		FinishedAt:    t.FinishedAt,
		PausedSeconds: t.PausedSeconds,
		UpdatedAt:     t.UpdatedAt,
	}
}

// columns maps Fields onto the update set used by the conditional write.
func (f Fields) columns() map[string]any {
	out := make(map[string]any)
	if f.Assignee != nil {
		out["assignee"] = *f.Assignee
	}
	if f.AssignedAt != nil {
		out["assigned_at"] = f.AssignedAt.UTC()
	}
	if f.AcceptedAt != nil {
		out["accepted_at"] = f.AcceptedAt.UTC()
	}
	if f.StartedAt != nil {
		out["started_at"] = f.StartedAt.UTC()
	}
	if f.PausedAt != nil {
		out["paused_at"] = f.PausedAt.UTC()
	}
	if f.ClearPausedAt {
		out["paused_at"] = nil
	}
	if f.FinishedAt != nil {
		out["finished_at"] = f.FinishedAt.UTC()
	}
	if f.PausedSeconds != nil {
		out["paused_seconds"] = *f.PausedSeconds
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
