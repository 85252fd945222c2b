// Package scoring ranks workers for a ticket. It never assigns; a supervisor
// confirms every assignment.
package scoring

import (
	"sort"

	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

const (
	baseScore        = 100
	areaMatchBonus   = 200
	areaNearMiss     = -50
	areaMismatch     = -100
	idleBonus        = 50
	busyPenalty      = -30
	pausedPenalty    = -100
	perTicketPenalty = -10
	onShiftBonus     = 30
	offShiftPenalty  = -50
)

// Load is a worker's current open workload.
type Load struct {
	Assigned   int
	InProgress int
	Paused     int
}

func (l Load) Busy() bool { return l.InProgress > 0 }

func (l Load) HasPaused() bool { return l.Paused > 0 }

// Active is the count used for the workload penalty.
func (l Load) Active() int { return l.Assigned + l.InProgress }

// Score rates worker w for t. The result is never negative.
func Score(w workers.Worker, load Load, t ticket.Ticket) int {
	score := baseScore + areaScore(w.Area, t.Area)

	switch {
	case load.HasPaused():
		score += pausedPenalty
	case load.Busy():
		score += busyPenalty
	default:
		score += idleBonus
	}

	score += perTicketPenalty * load.Active()

	if w.ShiftActive {
		score += onShiftBonus
	} else {
		score += offShiftPenalty
	}

	if score < 0 {
		return 0
	}
	return score
}

// areaScore: maintenance staff are a near miss for any non-maintenance ticket
// and common-areas staff are a near miss for maintenance tickets. Every other
// off-area pairing is a clear mismatch.
func areaScore(workerArea, ticketArea ticket.Area) int {
	if workerArea == ticketArea {
		return areaMatchBonus
	}
	switch {
	case workerArea == ticket.AreaMaintenance:
		return areaNearMiss
	case workerArea == ticket.AreaCommonAreas && ticketArea == ticket.AreaMaintenance:
		return areaNearMiss
	default:
		return areaMismatch
	}
}

type Candidate struct {
	Worker workers.Worker
	Load   Load
	Score  int
}

// Rank scores every worker for t, best first. Ties break on name then phone.
func Rank(t ticket.Ticket, ws []workers.Worker, loads map[string]Load) []Candidate {
	out := make([]Candidate, 0, len(ws))
	for _, w := range ws {
		load := loads[w.Phone]
		out = append(out, Candidate{Worker: w, Load: load, Score: Score(w, load, t)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Worker.Name != out[j].Worker.Name {
			return out[i].Worker.Name < out[j].Worker.Name
		}
		return out[i].Worker.Phone < out[j].Worker.Phone
	})
	return out
}

// LoadsFromTickets counts open tickets per assignee.
func LoadsFromTickets(tickets []ticket.Ticket) map[string]Load {
	loads := make(map[string]Load)
	for _, t := range tickets {
		if t.Assignee == "" {
			continue
		}
		l := loads[t.Assignee]
		switch t.Status {
		case ticket.StatusAssigned:
			l.Assigned++
		case ticket.StatusInProgress:
			l.InProgress++
		case ticket.StatusPaused:
			l.Paused++
		default:
			continue
		}
		loads[t.Assignee] = l
	}
	return loads
}
