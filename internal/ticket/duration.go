package ticket

import "time"

// WallDuration is finished_at - started_at. Pauses are not subtracted; this is
// the figure used for SLA reporting.
func (t Ticket) WallDuration() (time.Duration, bool) {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0, false
	}
	d := t.FinishedAt.Sub(*t.StartedAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// WorkDuration is WallDuration minus accumulated pause time, shown as
// effective work time.
func (t Ticket) WorkDuration() (time.Duration, bool) {
	wall, ok := t.WallDuration()
	if !ok {
		return 0, false
	}
	work := wall - time.Duration(t.PausedSeconds)*time.Second
	if work < 0 {
		work = 0
	}
	return work, true
}

// Elapsed is the wall time since work started, or since creation when the
// ticket has not been accepted yet.
func (t Ticket) Elapsed(now time.Time) time.Duration {
	if d, ok := t.WallDuration(); ok {
		return d
	}
	start := t.CreatedAt
	if t.StartedAt != nil {
		start = *t.StartedAt
	}
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}

// WaitingSince is how long a not-yet-accepted ticket has been waiting.
func (t Ticket) WaitingSince(now time.Time) time.Duration {
	start := t.CreatedAt
	if t.AssignedAt != nil {
		start = *t.AssignedAt
	}
	d := now.Sub(start)
	if d < 0 {
		return 0
	}
	return d
}
