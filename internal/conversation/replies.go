package conversation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/ticket"
)

const workerMenu = "¿Qué necesitas?\n1. Ver mis tickets\n2. Reportar un problema\n3. Ayuda"

const workerHelp = `Comandos:
• "tomar 12" acepta un ticket asignado
• "pausa 12" / "reanudar 12"
• "fin 12" cierra un ticket
• "reportar" o directamente "hab 305 fuga de agua"
• "iniciar turno" / "terminar turno"
• "menu" vuelve al inicio`

const supervisorHelp = `Comandos:
• "pendientes", "urgentes", "atrasados", "en curso"
• "asignar 12 a María" o "asignar 12" para ver sugerencias
• "reasignar 12 a Pedro"
• "fin 12" cierra un ticket
• "estado 12"
• "hab 305 fuga de agua" crea un ticket, agrega "a María" para asignarlo
• "cancelar" descarta lo pendiente`

func locationLabel(name string, kind ticket.LocationKind) string {
	if kind == ticket.LocationRoom {
		return "Hab " + name
	}
	return name
}

func priorityTag(p ticket.Priority) string {
	switch p {
	case ticket.PriorityHigh:
		return "[URGENTE] "
	case ticket.PriorityLow:
		return "[baja] "
	default:
		return ""
	}
}

// ticketLine is the one-line summary used in every list.
func ticketLine(t ticket.Ticket, names map[string]string) string {
	line := fmt.Sprintf("#%d %s%s: %s", t.ID, priorityTag(t.Priority), locationLabel(t.Location, t.LocationKind), t.Detail)
	if t.Assignee != "" && names != nil {
		line += " (" + displayName(t.Assignee, names) + ")"
	}
	return line
}

func numberedTickets(ts []ticket.Ticket, names map[string]string) string {
	lines := make([]string, 0, len(ts))
	for i, t := range ts {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, ticketLine(t, names)))
	}
	return strings.Join(lines, "\n")
}

func ticketDetail(t ticket.Ticket, now time.Time, names map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket #%d %s%s\n%s\nEstado: %s", t.ID, priorityTag(t.Priority), locationLabel(t.Location, t.LocationKind), t.Detail, statusLabel(t.Status))
	if t.Assignee != "" {
		fmt.Fprintf(&b, "\nAsignado a: %s", displayName(t.Assignee, names))
	}
	switch t.Status {
	case ticket.StatusPending, ticket.StatusAssigned:
		fmt.Fprintf(&b, "\nEsperando hace %s", formatDuration(t.WaitingSince(now)))
	case ticket.StatusInProgress, ticket.StatusPaused:
		fmt.Fprintf(&b, "\nEn curso hace %s", formatDuration(t.Elapsed(now)))
	case ticket.StatusResolved:
		b.WriteString("\n" + durationSummary(t))
	}
	return b.String()
}

// durationSummary reports wall time as the headline and work time alongside.
func durationSummary(t ticket.Ticket) string {
	wall, ok := t.WallDuration()
	if !ok {
		return "Duración: sin registro de inicio"
	}
	work, _ := t.WorkDuration()
	if work == wall {
		return "Duración: " + formatDuration(wall)
	}
	return fmt.Sprintf("Duración: %s (trabajo efectivo %s)", formatDuration(wall), formatDuration(work))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "menos de 1 min"
	}
	minutes := int(d / time.Minute)
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

func draftSummary(d session.Draft) string {
	return fmt.Sprintf("%s%s: %s", priorityTag(d.Priority), locationLabel(d.Location, d.LocationKind), d.Detail)
}

func candidateList(cs []session.Candidate, withScore bool) string {
	lines := make([]string, 0, len(cs))
	for i, c := range cs {
		if withScore {
			lines = append(lines, fmt.Sprintf("%d. %s (%d pts)", i+1, c.Name, c.Score))
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, c.Name))
	}
	return strings.Join(lines, "\n")
}

func displayName(phone string, names map[string]string) string {
	if name, ok := names[phone]; ok && name != "" {
		return name
	}
	return phone
}

// sortTickets orders by priority, then age.
func sortTickets(ts []ticket.Ticket) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ri, rj := ts[i].Priority.Rank(), ts[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
}

func ticketIDs(ts []ticket.Ticket) []int64 {
	out := make([]int64, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}
