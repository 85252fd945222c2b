package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hestia.local/dispatch/internal/scoring"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

const (
	supervisorPhone = "+56900000001"
	pedroRojas      = "+56911111111"
	pedroDiaz       = "+56922222222"
	mariaSoto       = "+56933333333"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	t          *testing.T
	clock      *fakeClock
	store      ticket.Store
	tickets    *ticket.Manager
	directory  *workers.MemoryDirectory
	worker     *Worker
	supervisor *Supervisor
	sessions   map[string]*session.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	return newHarnessWithStore(t, clock, ticket.NewMemoryStore(ticket.WithMemoryClock(clock.Now)))
}

func newHarnessWithStore(t *testing.T, clock *fakeClock, store ticket.Store) *harness {
	t.Helper()
	return newHarnessWithDirectory(t, clock, store, nil)
}

// newHarnessWithDirectory lets wrap intercept the directory the orchestrators
// see; h.directory stays the unwrapped one.
func newHarnessWithDirectory(t *testing.T, clock *fakeClock, store ticket.Store, wrap func(workers.Directory) workers.Directory) *harness {
	t.Helper()
	directory := workers.NewMemoryDirectory(
		workers.Worker{Phone: pedroRojas, Name: "Pedro Rojas", Area: ticket.AreaHousekeeping, ShiftActive: true},
		workers.Worker{Phone: pedroDiaz, Name: "Pedro Díaz", Area: ticket.AreaMaintenance, ShiftActive: true},
		workers.Worker{Phone: mariaSoto, Name: "María Soto", Nicknames: []string{"Mari"}, Area: ticket.AreaHousekeeping, ShiftActive: true},
	)
	var seen workers.Directory = directory
	if wrap != nil {
		seen = wrap(directory)
	}
	manager := ticket.NewManager(store, ticket.WithClock(clock.Now))
	deps := Deps{
		Tickets:     manager,
		Directory:   seen,
		Engine:      scoring.NewEngine(store, seen),
		Supervisors: []string{supervisorPhone},
		Clock:       clock.Now,
	}
	w, err := NewWorker(deps)
	if err != nil {
		t.Fatalf("new worker orchestrator: %v", err)
	}
	s, err := NewSupervisor(deps)
	if err != nil {
		t.Fatalf("new supervisor orchestrator: %v", err)
	}
	return &harness{
		t:          t,
		clock:      clock,
		store:      store,
		tickets:    manager,
		directory:  directory,
		worker:     w,
		supervisor: s,
		sessions:   make(map[string]*session.Session),
	}
}

func (h *harness) session(phone string) *session.Session {
	sess, ok := h.sessions[phone]
	if !ok {
		fresh := session.New(phone)
		sess = &fresh
		h.sessions[phone] = sess
	}
	return sess
}

func (h *harness) fromWorker(phone, text string) *Outbox {
	h.t.Helper()
	w, err := h.directory.FindByPhone(context.Background(), phone)
	if err != nil {
		h.t.Fatalf("find worker %s: %v", phone, err)
	}
	from := Sender{Phone: phone, Name: w.Name, Role: session.RoleWorker, Area: w.Area}
	return h.worker.Handle(context.Background(), h.session(phone), from, text)
}

func (h *harness) fromSupervisor(text string) *Outbox {
	h.t.Helper()
	from := Sender{Phone: supervisorPhone, Name: "Supervisión", Role: session.RoleSupervisor}
	return h.supervisor.Handle(context.Background(), h.session(supervisorPhone), from, text)
}

func (h *harness) createTicket(location, detail string, priority ticket.Priority) ticket.Ticket {
	h.t.Helper()
	created, err := h.tickets.Create(context.Background(), ticket.NewTicket{
		Location:     location,
		LocationKind: ticket.LocationRoom,
		Detail:       detail,
		Priority:     priority,
		Area:         ticket.AreaHousekeeping,
		CreatedBy:    supervisorPhone,
	})
	if err != nil {
		h.t.Fatalf("create ticket: %v", err)
	}
	return created
}

// startedTicket creates a ticket already accepted by worker.
func (h *harness) startedTicket(location, worker string) ticket.Ticket {
	h.t.Helper()
	ctx := context.Background()
	created := h.createTicket(location, "revisar", ticket.PriorityMedium)
	if _, err := h.tickets.Assign(ctx, created.ID, worker); err != nil {
		h.t.Fatalf("assign: %v", err)
	}
	res, err := h.tickets.Accept(ctx, created.ID, worker)
	if err != nil {
		h.t.Fatalf("accept: %v", err)
	}
	return res.Ticket
}

func (h *harness) get(id int64) ticket.Ticket {
	h.t.Helper()
	got, err := h.tickets.Get(context.Background(), id)
	if err != nil {
		h.t.Fatalf("get ticket %d: %v", id, err)
	}
	return got
}

func lastReply(t *testing.T, out *Outbox, phone string) string {
	t.Helper()
	replies := out.Replies(phone)
	if len(replies) == 0 {
		t.Fatalf("expected a reply to %s, got messages %+v", phone, out.Messages)
	}
	return replies[len(replies)-1]
}

func assertContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in reply:\n%s", want, got)
		}
	}
}

// failingStore rejects Create while failCreate is set.
type failingStore struct {
	*ticket.MemoryStore
	failCreate bool
}

func (s *failingStore) Create(ctx context.Context, in ticket.NewTicket) (ticket.Ticket, error) {
	if s.failCreate {
		return ticket.Ticket{}, errors.New("database is locked")
	}
	return s.MemoryStore.Create(ctx, in)
}

// shiftLockedDirectory rejects shift changes while failShift is set.
type shiftLockedDirectory struct {
	workers.Directory
	failShift bool
}

func (d *shiftLockedDirectory) SetShiftActive(ctx context.Context, phone string, active bool) (bool, error) {
	if d.failShift {
		return false, errors.New("directory unavailable")
	}
	return d.Directory.SetShiftActive(ctx, phone, active)
}
