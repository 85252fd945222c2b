package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"hestia.local/dispatch/internal/events"
	"hestia.local/dispatch/internal/intent"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

// Worker drives the menu, report capture and ticket commands for hotel staff.
type Worker struct {
	core
}

func NewWorker(d Deps) (*Worker, error) {
	c, err := newCore(d)
	if err != nil {
		return nil, err
	}
	return &Worker{core: c}, nil
}

// Handle applies, in order: the "menu" reset, any open ticket choice, the
// ticket commands and shift keywords that work from every state, and finally
// the handler for the current state.
func (w *Worker) Handle(ctx context.Context, sess *session.Session, from Sender, text string) *Outbox {
	out := &Outbox{}
	snapshot := sess.Clone()
	sess.Role = session.RoleWorker

	if today := w.today(); sess.LastGreeted != today {
		sess.LastGreeted = today
		out.Reply(from.Phone, greeting(from.Name))
	}

	res := intent.Parse(text, intent.Context{Area: from.Area})
	if err := w.route(ctx, sess, from, text, res, out); err != nil {
		w.fail(out, sess, snapshot, from.Phone, err)
	}
	return out
}

func greeting(name string) string {
	if first := firstName(name); first != "" {
		return "¡Hola " + first + "!"
	}
	return "¡Hola!"
}

func (w *Worker) route(ctx context.Context, sess *session.Session, from Sender, text string, res intent.Result, out *Outbox) error {
	if res.Kind == intent.KindMenu {
		sess.Reset()
		out.Reply(from.Phone, workerMenu)
		return nil
	}

	if sess.Pending != nil {
		handled, err := w.resolvePending(ctx, sess, from, text, res, out)
		if handled || err != nil {
			return err
		}
	}

	switch res.Kind {
	case intent.KindTake:
		return w.ticketCommand(ctx, sess, from, session.OpTake, res.TicketID, out)
	case intent.KindFinish:
		return w.ticketCommand(ctx, sess, from, session.OpFinish, res.TicketID, out)
	case intent.KindPause:
		return w.ticketCommand(ctx, sess, from, session.OpPause, res.TicketID, out)
	case intent.KindResume:
		return w.ticketCommand(ctx, sess, from, session.OpResume, res.TicketID, out)
	case intent.KindShiftStart:
		return w.startShift(ctx, sess, from, out)
	case intent.KindShiftEnd:
		return w.endShift(ctx, sess, from, out)
	case intent.KindHelp:
		out.Reply(from.Phone, workerHelp)
		return nil
	case intent.KindViewTickets:
		return w.viewTickets(ctx, sess, from, out)
	case intent.KindCancel:
		discarded := !sess.Draft.Empty() || reporting(sess.State)
		sess.Reset()
		if discarded {
			out.Reply(from.Phone, "Reporte descartado.\n\n"+workerMenu)
			return nil
		}
		out.Reply(from.Phone, workerMenu)
		return nil
	}

	switch sess.State {
	case session.StateReportingLocation:
		return w.captureLocation(sess, from, res, out)
	case session.StateReportingDetail:
		return w.captureDetail(sess, from, text, res, out)
	case session.StateConfirmingReport:
		return w.confirmReport(ctx, sess, from, res, out)
	default:
		return w.idle(ctx, sess, from, text, res, out)
	}
}

func reporting(s session.State) bool {
	switch s {
	case session.StateReportingLocation, session.StateReportingDetail, session.StateConfirmingReport:
		return true
	default:
		return false
	}
}

// idle handles MENU, VIEWING_TICKETS and WORKING once no command matched.
func (w *Worker) idle(ctx context.Context, sess *session.Session, from Sender, text string, res intent.Result, out *Outbox) error {
	switch res.Kind {
	case intent.KindReport, intent.KindCreate, intent.KindCreateAndAssign:
		return w.startReport(sess, from, res, out)
	}

	if sess.State == session.StateMenu {
		if n, ok := intent.ParseIndex(text); ok {
			switch n {
			case 1:
				return w.viewTickets(ctx, sess, from, out)
			case 2:
				return w.startReport(sess, from, intent.Result{Priority: ticket.PriorityMedium, Area: from.Area}, out)
			case 3:
				out.Reply(from.Phone, workerHelp)
				return nil
			}
		}
	}

	if sess.State == session.StateWorking && sess.ActiveTicketID > 0 {
		out.Reply(from.Phone, fmt.Sprintf("Estás con el ticket #%d. Escribe \"fin\" al terminar, \"pausa\" para pausarlo o \"menu\" para volver.", sess.ActiveTicketID))
		return nil
	}
	sess.State = session.StateMenu
	out.Reply(from.Phone, workerMenu)
	return nil
}

func (w *Worker) resolvePending(ctx context.Context, sess *session.Session, from Sender, text string, res intent.Result, out *Outbox) (bool, error) {
	choice, ok := sess.Pending.(*session.AwaitingTicketChoice)
	if !ok {
		sess.Pending = nil
		return false, nil
	}

	if res.Kind == intent.KindCancel || res.Kind == intent.KindNo {
		sess.Pending = nil
		if sess.State == session.StateViewingTickets {
			sess.State = session.StateMenu
		}
		out.Reply(from.Phone, "Cancelado.\n\n"+workerMenu)
		return true, nil
	}

	id, ok := pickTicket(text, choice.TicketIDs)
	if !ok {
		if res.Kind != intent.KindUnknown {
			// A new command abandons the choice.
			sess.Pending = nil
			return false, nil
		}
		out.Reply(from.Phone, "Responde con el número de la lista, o \"cancelar\".")
		return true, nil
	}

	sess.Pending = nil
	if choice.Operation == session.OpView {
		return true, w.openTicket(ctx, sess, from, id, out)
	}
	return true, w.apply(ctx, sess, from, choice.Operation, id, out)
}

// pickTicket reads a reply to a numbered ticket list. "#N" is always a ticket
// id. A bare N is a ticket id when the list holds that id, and a list
// position otherwise.
func pickTicket(text string, ids []int64) (int64, bool) {
	raw := strings.TrimRight(strings.TrimSpace(text), ".")
	explicit := strings.HasPrefix(raw, "#")
	n, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(raw, "#")), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	for _, id := range ids {
		if id == n {
			return id, true
		}
	}
	if explicit || n > int64(len(ids)) {
		return 0, false
	}
	return ids[n-1], true
}

func eligibleStatus(op session.Operation) ticket.Status {
	switch op {
	case session.OpTake:
		return ticket.StatusAssigned
	case session.OpResume:
		return ticket.StatusPaused
	default:
		return ticket.StatusInProgress
	}
}

// ticketCommand resolves the target of take, pause, resume or finish. An
// explicit id is used as given; otherwise the ticket opened from the list,
// or the only eligible one, or the worker is asked to choose.
func (w *Worker) ticketCommand(ctx context.Context, sess *session.Session, from Sender, op session.Operation, id int64, out *Outbox) error {
	if id > 0 {
		return w.apply(ctx, sess, from, op, id, out)
	}

	eligible, err := w.tickets.ListAssigned(ctx, from.Phone, eligibleStatus(op))
	if err != nil {
		return err
	}
	sortTickets(eligible)

	// An opened ticket is the target when it is eligible, even among several.
	for _, t := range eligible {
		if t.ID == sess.ActiveTicketID {
			return w.apply(ctx, sess, from, op, t.ID, out)
		}
	}

	switch len(eligible) {
	case 0:
		out.Reply(from.Phone, noEligibleReply(op))
		return nil
	case 1:
		return w.apply(ctx, sess, from, op, eligible[0].ID, out)
	default:
		sess.Pending = &session.AwaitingTicketChoice{Operation: op, TicketIDs: ticketIDs(eligible)}
		out.Reply(from.Phone, fmt.Sprintf("Tienes %d tickets %s. ¿Cuál quieres %s? Responde con el número de ticket (por ejemplo \"#%d\") o la posición en la lista:\n%s",
			len(eligible), statusLabel(eligibleStatus(op)), opVerb(op), eligible[0].ID, numberedTickets(eligible, nil)))
		return nil
	}
}

func noEligibleReply(op session.Operation) string {
	switch op {
	case session.OpTake:
		return "No tienes tickets asignados por tomar."
	case session.OpResume:
		return "No tienes tickets en pausa."
	default:
		return "No tienes tickets en curso."
	}
}

func opVerb(op session.Operation) string {
	switch op {
	case session.OpTake:
		return "tomar"
	case session.OpPause:
		return "pausar"
	case session.OpResume:
		return "reanudar"
	default:
		return "finalizar"
	}
}

func (w *Worker) apply(ctx context.Context, sess *session.Session, from Sender, op session.Operation, id int64, out *Outbox) error {
	switch op {
	case session.OpTake:
		res, err := w.tickets.Accept(ctx, id, from.Phone)
		if err != nil {
			return err
		}
		recordTransition(out, from.Phone, ticket.ActionAccept, res)
		out.Reply(from.Phone, fmt.Sprintf("Tomaste el ticket %s.\nCuando termines escribe \"fin %d\".", ticketLine(res.Ticket, nil), id))
		w.notifySupervisors(out, from.Phone, fmt.Sprintf("%s tomó el ticket %s", from.Name, ticketLine(res.Ticket, nil)), id, false)
		return nil

	case session.OpPause:
		res, err := w.tickets.Pause(ctx, id, from.Phone)
		if err != nil {
			return err
		}
		recordTransition(out, from.Phone, ticket.ActionPause, res)
		out.Reply(from.Phone, fmt.Sprintf("Ticket #%d en pausa. Escribe \"reanudar %d\" para continuar.", id, id))
		return nil

	case session.OpResume:
		res, err := w.tickets.Resume(ctx, id, from.Phone)
		if err != nil {
			return err
		}
		recordTransition(out, from.Phone, ticket.ActionResume, res)
		out.Reply(from.Phone, fmt.Sprintf("Retomaste el ticket #%d.", id))
		return nil

	case session.OpFinish:
		res, err := w.tickets.Finish(ctx, id, from.Phone)
		if err != nil {
			return err
		}
		recordTransition(out, from.Phone, ticket.ActionFinish, res)
		if sess.ActiveTicketID == id {
			sess.ActiveTicketID = 0
			if sess.State == session.StateWorking {
				sess.State = session.StateMenu
			}
		}
		summary := durationSummary(res.Ticket)
		out.Reply(from.Phone, fmt.Sprintf("¡Buen trabajo! Ticket #%d resuelto.\n%s", id, summary))
		w.notifySupervisors(out, from.Phone, fmt.Sprintf("%s resolvió el ticket %s\n%s", from.Name, ticketLine(res.Ticket, nil), summary), id, false)
		return nil

	default:
		return fmt.Errorf("unsupported worker operation %q", op)
	}
}

func (w *Worker) viewTickets(ctx context.Context, sess *session.Session, from Sender, out *Outbox) error {
	mine, err := w.tickets.ListAssigned(ctx, from.Phone, ticket.StatusAssigned, ticket.StatusInProgress, ticket.StatusPaused)
	if err != nil {
		return err
	}
	if len(mine) == 0 {
		sess.State = session.StateMenu
		out.Reply(from.Phone, "No tienes tickets asignados.")
		return nil
	}
	sortTickets(mine)

	sess.State = session.StateViewingTickets
	sess.Pending = &session.AwaitingTicketChoice{Operation: session.OpView, TicketIDs: ticketIDs(mine)}
	lines := make([]string, 0, len(mine))
	for i, t := range mine {
		lines = append(lines, fmt.Sprintf("%d. %s (%s)", i+1, ticketLine(t, nil), statusLabel(t.Status)))
	}
	out.Reply(from.Phone, "Tus tickets:\n"+strings.Join(lines, "\n")+"\nResponde con el número para ver el detalle.")
	return nil
}

func (w *Worker) openTicket(ctx context.Context, sess *session.Session, from Sender, id int64, out *Outbox) error {
	t, err := w.tickets.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Assignee != from.Phone {
		return fmt.Errorf("open ticket %d: %w", id, ticket.ErrUnauthorized)
	}
	sess.ActiveTicketID = id
	sess.State = session.StateWorking

	var next string
	switch t.Status {
	case ticket.StatusAssigned:
		next = "Escribe \"tomar\" para empezar."
	case ticket.StatusInProgress:
		next = "Escribe \"fin\" al terminar o \"pausa\" para pausarlo."
	case ticket.StatusPaused:
		next = "Escribe \"reanudar\" para continuar."
	}
	out.Reply(from.Phone, strings.TrimSpace(ticketDetail(t, w.now(), nil)+"\n"+next))
	return nil
}

func (w *Worker) startShift(ctx context.Context, sess *session.Session, from Sender, out *Outbox) error {
	if sess.ShiftActive {
		out.Reply(from.Phone, "Tu turno ya estaba iniciado.")
		return nil
	}
	ok, err := w.directory.SetShiftActive(ctx, from.Phone, true)
	if err != nil {
		return fmt.Errorf("start shift: %w", err)
	}
	if !ok {
		return fmt.Errorf("start shift %s: %w", from.Phone, workers.ErrNotFound)
	}
	sess.ShiftActive = true

	assigned, err := w.tickets.ListAssigned(ctx, from.Phone, ticket.StatusAssigned)
	if err != nil {
		return err
	}
	msg := "Turno iniciado. ¡Buen trabajo!"
	if len(assigned) > 0 {
		msg += fmt.Sprintf("\nTienes %d ticket(s) asignado(s). Escribe \"1\" para verlos.", len(assigned))
	}
	sess.State = session.StateMenu
	out.Reply(from.Phone, msg)
	return nil
}

// endShift pauses every ticket still in progress instead of refusing to
// close the shift. If a pause or the directory write fails, the pauses
// already made are undone so the shift stays open with its tickets running.
func (w *Worker) endShift(ctx context.Context, sess *session.Session, from Sender, out *Outbox) error {
	running, err := w.tickets.ListAssigned(ctx, from.Phone, ticket.StatusInProgress)
	if err != nil {
		return err
	}
	paused := make([]ticket.Result, 0, len(running))
	for _, t := range running {
		res, err := w.tickets.Pause(ctx, t.ID, from.Phone)
		if err != nil {
			return w.undoPauses(ctx, from, paused, out, err)
		}
		paused = append(paused, res)
	}

	ok, err := w.directory.SetShiftActive(ctx, from.Phone, false)
	if err == nil && !ok {
		err = workers.ErrNotFound
	}
	if err != nil {
		return w.undoPauses(ctx, from, paused, out, fmt.Errorf("end shift %s: %w", from.Phone, err))
	}
	sess.ShiftActive = false
	sess.ActiveTicketID = 0
	sess.Pending = nil
	sess.State = session.StateMenu

	ids := make([]string, 0, len(paused))
	for _, res := range paused {
		recordTransition(out, from.Phone, ticket.ActionPause, res)
		ids = append(ids, fmt.Sprintf("#%d", res.Ticket.ID))
	}
	msg := "Turno terminado. ¡Hasta luego!"
	if len(ids) > 0 {
		list := strings.Join(ids, ", ")
		msg += "\nDejé en pausa: " + list
		w.notifySupervisors(out, from.Phone, fmt.Sprintf("%s terminó su turno con tickets en pausa: %s", from.Name, list), 0, false)
	}
	out.Reply(from.Phone, msg)
	return nil
}

// undoPauses resumes tickets paused by a shift end that did not complete.
// A ticket that cannot be resumed stays paused and its pause is published.
func (w *Worker) undoPauses(ctx context.Context, from Sender, paused []ticket.Result, out *Outbox, cause error) error {
	for _, res := range paused {
		if _, err := w.tickets.Resume(ctx, res.Ticket.ID, from.Phone); err != nil {
			w.logger.Printf("shift end rollback failed phone=%s ticket_id=%d err=%v", from.Phone, res.Ticket.ID, err)
			recordTransition(out, from.Phone, ticket.ActionPause, res)
		}
	}
	return cause
}

func (w *Worker) startReport(sess *session.Session, from Sender, res intent.Result, out *Outbox) error {
	draft := session.Draft{
		Detail:   res.Detail,
		Priority: res.Priority,
		Area:     res.Area,
	}
	if draft.Area == "" {
		draft.Area = from.Area
	}
	if res.Location != nil {
		draft.Location = res.Location.Name
		draft.LocationKind = res.Location.Kind
		draft.Area = res.Location.Area
	}
	sess.Draft = draft
	sess.Pending = nil
	return w.advanceReport(sess, from, out)
}

func (w *Worker) advanceReport(sess *session.Session, from Sender, out *Outbox) error {
	d := sess.Draft
	switch {
	case d.Location == "":
		sess.State = session.StateReportingLocation
		out.Reply(from.Phone, "¿Dónde está el problema? Por ejemplo \"hab 305\" o \"ascensor 2\".")
	case d.Detail == "":
		sess.State = session.StateReportingDetail
		out.Reply(from.Phone, fmt.Sprintf("¿Qué problema hay en %s?", locationLabel(d.Location, d.LocationKind)))
	default:
		sess.State = session.StateConfirmingReport
		out.Reply(from.Phone, fmt.Sprintf("Voy a reportar:\n%s\n¿Confirmas? (si/no)", draftSummary(d)))
	}
	return nil
}

func (w *Worker) captureLocation(sess *session.Session, from Sender, res intent.Result, out *Outbox) error {
	if err := res.RequireLocation(); err != nil {
		return err
	}
	sess.Draft.Location = res.Location.Name
	sess.Draft.LocationKind = res.Location.Kind
	sess.Draft.Area = res.Location.Area
	if res.Detail != "" {
		sess.Draft.Detail = res.Detail
	}
	sess.Draft.Priority = combinePriority(sess.Draft.Priority, res.Priority)
	return w.advanceReport(sess, from, out)
}

func (w *Worker) captureDetail(sess *session.Session, from Sender, text string, res intent.Result, out *Outbox) error {
	if res.Kind == intent.KindReport || (res.Location != nil && res.Detail != "") {
		return w.startReport(sess, from, res, out)
	}
	detail := intent.CleanDetail(text)
	if detail == "" {
		return res.RequireDetail()
	}
	sess.Draft.Detail = detail
	sess.Draft.Priority = combinePriority(sess.Draft.Priority, intent.ExtractPriority(text))
	return w.advanceReport(sess, from, out)
}

func (w *Worker) confirmReport(ctx context.Context, sess *session.Session, from Sender, res intent.Result, out *Outbox) error {
	switch res.Kind {
	case intent.KindYes:
		existing, dup, err := w.reported(ctx, from.Phone, sess.Draft)
		if err != nil {
			return err
		}
		if dup {
			sess.Reset()
			out.Reply(from.Phone, fmt.Sprintf("Ese reporte ya quedó registrado como ticket #%d.", existing.ID))
			return nil
		}
		created, err := w.tickets.Create(ctx, sess.Draft.NewTicket(from.Phone))
		if err != nil {
			return err
		}
		out.Changed(events.TypeTicketCreated, from.Phone, created)
		sess.Reset()
		out.Reply(from.Phone, fmt.Sprintf("Listo, creé el ticket #%d. Le aviso a supervisión.", created.ID))
		w.notifySupervisors(out, from.Phone, fmt.Sprintf("Nuevo ticket de %s: %s\nEscribe \"asignar %d\" para ver sugerencias.", from.Name, ticketLine(created, nil), created.ID), created.ID, true)
		return nil
	case intent.KindNo:
		sess.Reset()
		out.Reply(from.Phone, "Reporte descartado.\n\n"+workerMenu)
		return nil
	case intent.KindReport, intent.KindCreate, intent.KindCreateAndAssign:
		return w.startReport(sess, from, res, out)
	default:
		out.Reply(from.Phone, "Responde \"si\" para crear el ticket o \"no\" para descartarlo.")
		return nil
	}
}

// combinePriority keeps HIGH over everything and LOW over the MEDIUM default.
func combinePriority(a, b ticket.Priority) ticket.Priority {
	switch {
	case a == ticket.PriorityHigh || b == ticket.PriorityHigh:
		return ticket.PriorityHigh
	case a == ticket.PriorityLow || b == ticket.PriorityLow:
		return ticket.PriorityLow
	default:
		return ticket.PriorityMedium
	}
}
