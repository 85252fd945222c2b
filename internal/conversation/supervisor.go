package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hestia.local/dispatch/internal/events"
	"hestia.local/dispatch/internal/intent"
	"hestia.local/dispatch/internal/scoring"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

// maxListed caps ticket lists sent over chat.
const maxListed = 20

// Supervisor is command driven: lists, assignment with disambiguation and
// confirmation, overrides and manual ticket creation.
type Supervisor struct {
	core
}

func NewSupervisor(d Deps) (*Supervisor, error) {
	c, err := newCore(d)
	if err != nil {
		return nil, err
	}
	return &Supervisor{core: c}, nil
}

func (s *Supervisor) Handle(ctx context.Context, sess *session.Session, from Sender, text string) *Outbox {
	out := &Outbox{}
	snapshot := sess.Clone()
	sess.Role = session.RoleSupervisor

	all, err := s.directory.ListAll(ctx)
	if err != nil {
		s.fail(out, sess, snapshot, from.Phone, fmt.Errorf("list workers: %w", err))
		return out
	}
	res := intent.Parse(text, intent.Context{Supervisor: true, Area: from.Area, KnownNames: workers.Lexicon(all)})
	if err := s.route(ctx, sess, from, text, res, out); err != nil {
		s.fail(out, sess, snapshot, from.Phone, err)
	}
	return out
}

func (s *Supervisor) route(ctx context.Context, sess *session.Session, from Sender, text string, res intent.Result, out *Outbox) error {
	if res.Kind == intent.KindMenu {
		sess.Reset()
		out.Reply(from.Phone, supervisorHelp)
		return nil
	}

	if sess.Pending != nil {
		handled, err := s.resolvePending(ctx, sess, from, text, res, out)
		if handled || err != nil {
			return err
		}
	}

	switch res.Kind {
	case intent.KindCancel, intent.KindNo:
		sess.Pending = nil
		out.Reply(from.Phone, "No hay nada pendiente.")
		return nil
	case intent.KindYes:
		out.Reply(from.Phone, "No hay nada pendiente de confirmar.")
		return nil
	case intent.KindHelp:
		out.Reply(from.Phone, supervisorHelp)
		return nil
	case intent.KindListPending:
		return s.list(ctx, from, "sin iniciar", func(ticket.Ticket) bool { return true }, out, ticket.StatusPending, ticket.StatusAssigned)
	case intent.KindListUrgent:
		return s.list(ctx, from, "urgentes", func(t ticket.Ticket) bool { return t.Priority == ticket.PriorityHigh }, out, ticket.OpenStatuses...)
	case intent.KindListStale:
		now := s.now()
		return s.list(ctx, from, "atrasados", func(t ticket.Ticket) bool { return now.Sub(t.CreatedAt) >= s.staleAfter }, out, ticket.StatusPending, ticket.StatusAssigned)
	case intent.KindListInProgress:
		return s.list(ctx, from, "en curso", func(ticket.Ticket) bool { return true }, out, ticket.StatusInProgress, ticket.StatusPaused)
	case intent.KindAssign:
		return s.assign(ctx, sess, from, res, session.OpAssign, out)
	case intent.KindReassign:
		return s.assign(ctx, sess, from, res, session.OpReassign, out)
	case intent.KindFinish:
		return s.finish(ctx, sess, from, res, out)
	case intent.KindStatusQuery:
		return s.status(ctx, from, res, out)
	case intent.KindCreate, intent.KindReport:
		return s.create(ctx, sess, from, res, out)
	case intent.KindCreateAndAssign:
		return s.createAndAssign(ctx, sess, from, res, out)
	default:
		out.Reply(from.Phone, "No entendí.\n"+supervisorHelp)
		return nil
	}
}

// resolvePending consumes the reply to an open confirmation or selection.
// It reports false when the message is a new command that abandons it.
func (s *Supervisor) resolvePending(ctx context.Context, sess *session.Session, from Sender, text string, res intent.Result, out *Outbox) (bool, error) {
	switch p := sess.Pending.(type) {
	case *session.AwaitingConfirmation:
		switch res.Kind {
		case intent.KindYes:
			sess.Pending = nil
			return true, s.commit(ctx, sess, from, p, out)
		case intent.KindNo, intent.KindCancel:
			sess.Pending = nil
			out.Reply(from.Phone, "Cancelado, no se hizo ningún cambio.")
			return true, nil
		case intent.KindUnknown:
			out.Reply(from.Phone, "Responde \"si\" para confirmar o \"no\" para cancelar.")
			return true, nil
		default:
			sess.Pending = nil
			return false, nil
		}

	case *session.AwaitingSelection:
		if res.Kind == intent.KindCancel || res.Kind == intent.KindNo {
			sess.Pending = nil
			out.Reply(from.Phone, "Cancelado, no se hizo ningún cambio.")
			return true, nil
		}
		if n, ok := intent.ParseIndex(text); ok {
			if n < 1 || n > len(p.Candidates) {
				return true, errNoSelection
			}
			return true, s.confirm(ctx, sess, from, p.Operation, p.TicketID, p.Candidates[n-1], p.Draft, out)
		}
		if res.Kind != intent.KindUnknown {
			sess.Pending = nil
			return false, nil
		}
		return true, s.narrow(ctx, sess, from, p, text, out)

	default:
		sess.Pending = nil
		return false, nil
	}
}

// narrow filters an open selection by a further name.
func (s *Supervisor) narrow(ctx context.Context, sess *session.Session, from Sender, p *session.AwaitingSelection, query string, out *Outbox) error {
	ws := make([]workers.Worker, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		w, err := s.directory.FindByPhone(ctx, c.Phone)
		if err != nil {
			if !errors.Is(err, workers.ErrNotFound) {
				return fmt.Errorf("find worker: %w", err)
			}
			w = workers.Worker{Phone: c.Phone, Name: c.Name}
		}
		ws = append(ws, w)
	}
	matched := make(map[string]bool)
	for _, w := range workers.Match(ws, query) {
		matched[w.Phone] = true
	}

	kept := make([]session.Candidate, 0, len(matched))
	for _, c := range p.Candidates {
		if matched[c.Phone] {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return fmt.Errorf("%q: %w", query, errNoCandidates)
	case 1:
		return s.confirm(ctx, sess, from, p.Operation, p.TicketID, kept[0], p.Draft, out)
	default:
		p.Candidates = kept
		out.Reply(from.Phone, "Siguen coincidiendo varios:\n"+candidateList(kept, false)+"\nResponde con el número o \"cancelar\".")
		return nil
	}
}

// confirm opens a yes/no confirmation for one resolved worker.
func (s *Supervisor) confirm(ctx context.Context, sess *session.Session, from Sender, op session.Operation, ticketID int64, c session.Candidate, draft *session.Draft, out *Outbox) error {
	conf := &session.AwaitingConfirmation{Operation: op, TicketID: ticketID, Worker: c, Draft: draft}
	var prompt string
	switch op {
	case session.OpCreateAndAssign:
		if draft == nil {
			return fmt.Errorf("create and assign without a draft")
		}
		prompt = fmt.Sprintf("¿Crear el ticket %s y asignarlo a %s? (si/no)", draftSummary(*draft), c.Name)
	default:
		t, err := s.tickets.Get(ctx, ticketID)
		if err != nil {
			return err
		}
		conf.Ticket = &t
		if op == session.OpReassign && t.Assignee != "" {
			prompt = fmt.Sprintf("¿Reasignar el ticket %s de %s a %s? (si/no)", ticketLine(t, nil), s.nameOf(ctx, t.Assignee), c.Name)
		} else {
			prompt = fmt.Sprintf("¿Asignar el ticket %s a %s? (si/no)", ticketLine(t, nil), c.Name)
		}
	}
	sess.Pending = conf
	out.Reply(from.Phone, prompt)
	return nil
}

func (s *Supervisor) commit(ctx context.Context, sess *session.Session, from Sender, p *session.AwaitingConfirmation, out *Outbox) error {
	switch p.Operation {
	case session.OpAssign:
		res, err := s.tickets.Assign(ctx, p.TicketID, p.Worker.Phone)
		if err != nil {
			return err
		}
		s.announceAssignment(out, from, ticket.ActionAssign, res, p.Worker)
		return nil

	case session.OpReassign:
		res, err := s.tickets.Reassign(ctx, p.TicketID, p.Worker.Phone)
		if err != nil {
			return err
		}
		s.announceAssignment(out, from, ticket.ActionReassign, res, p.Worker)
		if prior := res.PriorAssignee; prior != "" && prior != p.Worker.Phone {
			out.Reply(prior, fmt.Sprintf("El ticket #%d fue reasignado a otra persona. Ya no está a tu cargo.", p.TicketID))
		}
		return nil

	case session.OpCreateAndAssign:
		if p.Draft == nil {
			return fmt.Errorf("create and assign without a draft")
		}
		existing, dup, err := s.reported(ctx, from.Phone, *p.Draft)
		if err != nil {
			return err
		}
		if dup {
			sess.ActiveTicketID = existing.ID
			out.Reply(from.Phone, fmt.Sprintf("El ticket %s ya estaba creado.", ticketLine(existing, nil)))
			return nil
		}
		created, err := s.tickets.Create(ctx, p.Draft.NewTicket(from.Phone))
		if err != nil {
			return err
		}
		out.Changed(events.TypeTicketCreated, from.Phone, created)
		sess.ActiveTicketID = created.ID
		res, err := s.tickets.Assign(ctx, created.ID, p.Worker.Phone)
		if err != nil {
			// The ticket exists; retrying the confirmation would duplicate it.
			s.logger.Printf("assign after create failed ticket_id=%d worker=%s err=%v", created.ID, p.Worker.Phone, err)
			out.Reply(from.Phone, fmt.Sprintf("Creé el ticket #%d pero no pude asignarlo. Intenta \"asignar %d a %s\".", created.ID, created.ID, p.Worker.Name))
			return nil
		}
		s.announceAssignment(out, from, ticket.ActionAssign, res, p.Worker)
		return nil

	default:
		return fmt.Errorf("unsupported supervisor operation %q", p.Operation)
	}
}

func (s *Supervisor) announceAssignment(out *Outbox, from Sender, action ticket.Action, res ticket.Result, w session.Candidate) {
	recordTransition(out, from.Phone, action, res)
	verb := "asignado"
	if action == ticket.ActionReassign {
		verb = "reasignado"
	}
	out.Reply(from.Phone, fmt.Sprintf("Ticket #%d %s a %s.", res.Ticket.ID, verb, w.Name))
	out.Reply(w.Phone, fmt.Sprintf("Te asignaron el ticket %s\nResponde \"tomar %d\" para empezar.", ticketLine(res.Ticket, nil), res.Ticket.ID))
}

// assign resolves the ticket and the worker for "asignar"/"reasignar". With
// no name the ranked suggestions are offered instead.
func (s *Supervisor) assign(ctx context.Context, sess *session.Session, from Sender, res intent.Result, op session.Operation, out *Outbox) error {
	id := res.TicketID
	if id == 0 {
		id = sess.ActiveTicketID
	}
	if id == 0 {
		return res.RequireTicketID("asignar 12 a María")
	}
	t, err := s.tickets.Get(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case op == session.OpAssign && t.Status == ticket.StatusAssigned:
		op = session.OpReassign
	case op == session.OpReassign && t.Status == ticket.StatusPending:
		op = session.OpAssign
	}
	if op == session.OpAssign && t.Status != ticket.StatusPending {
		return &ticket.TransitionError{TicketID: id, Action: ticket.ActionAssign, Current: t.Status}
	}
	if op == session.OpReassign && t.Status != ticket.StatusAssigned {
		return &ticket.TransitionError{TicketID: id, Action: ticket.ActionReassign, Current: t.Status}
	}
	sess.ActiveTicketID = id

	if res.WorkerName == "" {
		return s.suggest(ctx, sess, from, op, t, out)
	}
	return s.resolveWorker(ctx, sess, from, op, t, nil, res.WorkerName, out)
}

// resolveWorker runs the name through the directory: none is an error, one
// goes straight to confirmation, several open a numbered selection.
func (s *Supervisor) resolveWorker(ctx context.Context, sess *session.Session, from Sender, op session.Operation, t ticket.Ticket, draft *session.Draft, name string, out *Outbox) error {
	matches, err := s.directory.FindByName(ctx, name)
	if err != nil {
		return fmt.Errorf("find worker %q: %w", name, err)
	}
	switch len(matches) {
	case 0:
		return fmt.Errorf("%q: %w", name, errNoCandidates)
	case 1:
		c := session.Candidate{Phone: matches[0].Phone, Name: matches[0].Name}
		return s.confirm(ctx, sess, from, op, t.ID, c, draft, out)
	}

	ranked, err := s.engine.RankWorkers(ctx, t, matches)
	if err != nil {
		return err
	}
	cands := toCandidates(ranked)
	sess.Pending = &session.AwaitingSelection{Operation: op, TicketID: t.ID, Candidates: cands, Draft: draft}
	out.Reply(from.Phone, fmt.Sprintf("Hay %d personas que coinciden con %q:\n%s\nResponde con el número, un nombre más completo o \"cancelar\".", len(cands), name, candidateList(cands, false)))
	return nil
}

func (s *Supervisor) suggest(ctx context.Context, sess *session.Session, from Sender, op session.Operation, t ticket.Ticket, out *Outbox) error {
	ranked, err := s.engine.Suggest(ctx, t, scoring.DefaultLimit)
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		out.Reply(from.Phone, "No hay trabajadores registrados para sugerir.")
		return nil
	}
	cands := toCandidates(ranked)
	sess.Pending = &session.AwaitingSelection{Operation: op, TicketID: t.ID, Candidates: cands}
	out.Reply(from.Phone, fmt.Sprintf("Sugerencias para %s:\n%s\nResponde con el número, un nombre o \"cancelar\".", ticketLine(t, nil), candidateList(cands, true)))
	return nil
}

func toCandidates(ranked []scoring.Candidate) []session.Candidate {
	out := make([]session.Candidate, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, session.Candidate{Phone: r.Worker.Phone, Name: r.Worker.Name, Score: r.Score})
	}
	return out
}

func (s *Supervisor) finish(ctx context.Context, sess *session.Session, from Sender, res intent.Result, out *Outbox) error {
	if err := res.RequireTicketID("fin 12"); err != nil {
		return err
	}
	result, err := s.tickets.SupervisorFinish(ctx, res.TicketID)
	if err != nil {
		return err
	}
	recordTransition(out, from.Phone, ticket.ActionSupervisorFinish, result)
	if sess.ActiveTicketID == res.TicketID {
		sess.ActiveTicketID = 0
	}
	out.Reply(from.Phone, fmt.Sprintf("Ticket #%d cerrado.\n%s", res.TicketID, durationSummary(result.Ticket)))
	if a := result.Ticket.Assignee; a != "" && a != from.Phone {
		out.Reply(a, fmt.Sprintf("Supervisión cerró el ticket #%d.", res.TicketID))
	}
	return nil
}

func (s *Supervisor) status(ctx context.Context, from Sender, res intent.Result, out *Outbox) error {
	if err := res.RequireTicketID("estado 12"); err != nil {
		return err
	}
	t, err := s.tickets.Get(ctx, res.TicketID)
	if err != nil {
		return err
	}
	names, err := s.names(ctx)
	if err != nil {
		return err
	}
	out.Reply(from.Phone, ticketDetail(t, s.now(), names))
	return nil
}

func (s *Supervisor) list(ctx context.Context, from Sender, title string, keep func(ticket.Ticket) bool, out *Outbox, statuses ...ticket.Status) error {
	all, err := s.tickets.List(ctx, statuses...)
	if err != nil {
		return err
	}
	selected := make([]ticket.Ticket, 0, len(all))
	for _, t := range all {
		if keep(t) {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		out.Reply(from.Phone, fmt.Sprintf("No hay tickets %s.", title))
		return nil
	}
	sortTickets(selected)

	names, err := s.names(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	shown := selected
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	lines := make([]string, 0, len(shown)+2)
	lines = append(lines, fmt.Sprintf("Tickets %s (%d):", title, len(selected)))
	for _, t := range shown {
		line := ticketLine(t, names)
		switch t.Status {
		case ticket.StatusPending, ticket.StatusAssigned:
			line += fmt.Sprintf(" · %s esperando", formatDuration(t.WaitingSince(now)))
		case ticket.StatusInProgress:
			line += fmt.Sprintf(" · %s en curso", formatDuration(t.Elapsed(now)))
		case ticket.StatusPaused:
			line += " · en pausa"
		}
		lines = append(lines, line)
	}
	if rest := len(selected) - len(shown); rest > 0 {
		lines = append(lines, fmt.Sprintf("… y %d más", rest))
	}
	out.Reply(from.Phone, strings.Join(lines, "\n"))
	return nil
}

func draftFromResult(res intent.Result) session.Draft {
	d := session.Draft{Detail: res.Detail, Priority: res.Priority, Area: res.Area}
	if res.Location != nil {
		d.Location = res.Location.Name
		d.LocationKind = res.Location.Kind
		d.Area = res.Location.Area
	}
	return d
}

// create opens a ticket straight away and offers ranked suggestions for it.
func (s *Supervisor) create(ctx context.Context, sess *session.Session, from Sender, res intent.Result, out *Outbox) error {
	if err := res.RequireLocation(); err != nil {
		return err
	}
	if err := res.RequireDetail(); err != nil {
		return err
	}
	created, err := s.tickets.Create(ctx, draftFromResult(res).NewTicket(from.Phone))
	if err != nil {
		return err
	}
	out.Changed(events.TypeTicketCreated, from.Phone, created)
	sess.ActiveTicketID = created.ID
	out.Reply(from.Phone, fmt.Sprintf("Ticket %s creado.", ticketLine(created, nil)))
	if err := s.suggest(ctx, sess, from, session.OpAssign, created, out); err != nil {
		// The ticket is already stored; only the suggestions are lost.
		s.logger.Printf("suggest after create failed ticket_id=%d err=%v", created.ID, err)
		out.Reply(from.Phone, fmt.Sprintf("Escribe \"asignar %d a <nombre>\" para asignarlo.", created.ID))
	}
	return nil
}

// createAndAssign resolves the worker before anything is written; the ticket
// is only created once the supervisor confirms.
func (s *Supervisor) createAndAssign(ctx context.Context, sess *session.Session, from Sender, res intent.Result, out *Outbox) error {
	if err := res.RequireLocation(); err != nil {
		return err
	}
	if err := res.RequireDetail(); err != nil {
		return err
	}
	draft := draftFromResult(res)
	provisional := ticket.Ticket{Location: draft.Location, LocationKind: draft.LocationKind, Detail: draft.Detail, Priority: draft.Priority, Area: draft.Area}
	return s.resolveWorker(ctx, sess, from, session.OpCreateAndAssign, provisional, &draft, res.WorkerName, out)
}
