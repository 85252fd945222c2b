package reminder

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"hestia.local/dispatch/internal/hours"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

const (
	onShift  = "+56911111111"
	offShift = "+56922222222"
	boss     = "+56900000001"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][]string
	ch   chan struct{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[string][]string), ch: make(chan struct{}, 16)}
}

func (r *recordingSender) Send(_ context.Context, _ string, to, body string) {
	r.mu.Lock()
	r.sent[to] = append(r.sent[to], body)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recordingSender) to(phone string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent[phone]...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) Chan() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {}

type fixture struct {
	clock    *clock
	tickets  *ticket.Manager
	sessions *session.MemoryStore
	notices  *hours.MemoryNoticeStore
	sender   *recordingSender
	sweeper  *Sweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	directory := workers.NewMemoryDirectory(
		workers.Worker{Phone: onShift, Name: "Pedro Rojas", Area: ticket.AreaHousekeeping, ShiftActive: true},
		workers.Worker{Phone: offShift, Name: "Pedro Díaz", Area: ticket.AreaMaintenance},
	)
	manager := ticket.NewManager(ticket.NewMemoryStore(ticket.WithMemoryClock(c.Now)), ticket.WithClock(c.Now))
	window, err := hours.NewWindow("07:00", "23:00", time.UTC)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	f := &fixture{
		clock:    c,
		tickets:  manager,
		sessions: session.NewMemoryStore(),
		notices:  hours.NewMemoryNoticeStore(),
		sender:   newRecordingSender(),
	}
	f.sweeper = New(manager, directory, f.sessions, f.sender, nil,
		WithReminderAfter(15*time.Minute),
		WithNotices(f.notices, window),
		WithClock(c.Now),
	)
	return f
}

func (f *fixture) assigned(t *testing.T, location, worker string) ticket.Ticket {
	t.Helper()
	ctx := context.Background()
	created, err := f.tickets.Create(ctx, ticket.NewTicket{
		Location:     location,
		LocationKind: ticket.LocationRoom,
		Detail:       "revisar minibar",
		Priority:     ticket.PriorityMedium,
		Area:         ticket.AreaHousekeeping,
		CreatedBy:    boss,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := f.tickets.Assign(ctx, created.ID, worker)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	return res.Ticket
}

func TestSweepRemindsOnShiftWorkersOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.assigned(t, "305", onShift)
	f.assigned(t, "306", offShift)

	f.clock.Set(f.clock.Now().Add(10 * time.Minute))
	if report, err := f.sweeper.Sweep(ctx); err != nil || report.Reminded != 0 {
		t.Fatalf("expected no reminder before the threshold, got %+v err=%v", report, err)
	}

	f.clock.Set(f.clock.Now().Add(6 * time.Minute))
	report, err := f.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Reminded != 1 {
		t.Fatalf("expected one reminder, got %+v", report)
	}
	got := f.sender.to(onShift)
	if len(got) != 1 || !strings.Contains(got[0], "Hab 305") || !strings.Contains(got[0], "tomar 1") {
		t.Fatalf("unexpected reminder: %v", got)
	}
	if len(f.sender.to(offShift)) != 0 {
		t.Fatalf("expected no reminder for off-shift worker")
	}

	sess, err := f.sessions.Load(ctx, onShift)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess.LastReminderAt == nil || !sess.LastReminderAt.Equal(f.clock.Now()) {
		t.Fatalf("expected last reminder stamped, got %v", sess.LastReminderAt)
	}

	f.clock.Set(f.clock.Now().Add(5 * time.Minute))
	if report, _ := f.sweeper.Sweep(ctx); report.Reminded != 0 {
		t.Fatalf("expected the reminder gap to be honoured, got %+v", report)
	}

	f.clock.Set(f.clock.Now().Add(10 * time.Minute))
	if report, _ := f.sweeper.Sweep(ctx); report.Reminded != 1 {
		t.Fatalf("expected a second reminder after the gap, got %+v", report)
	}

	if _, err := f.tickets.Accept(ctx, first.ID, onShift); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.clock.Set(f.clock.Now().Add(time.Hour))
	if report, _ := f.sweeper.Sweep(ctx); report.Reminded != 0 {
		t.Fatalf("expected no reminder once the ticket is taken, got %+v", report)
	}
}

func TestSweepFlushesNoticesOnlyInHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.Set(time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC))

	if _, err := f.notices.Defer(ctx, hours.Notice{Recipient: boss, Body: "Nuevo ticket #7", TicketID: 7}); err != nil {
		t.Fatalf("defer: %v", err)
	}

	report, err := f.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Flushed != 0 || len(f.sender.to(boss)) != 0 {
		t.Fatalf("expected nothing flushed at night, got %+v", report)
	}

	f.clock.Set(time.Date(2026, 3, 2, 7, 1, 0, 0, time.UTC))
	report, err = f.sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Flushed != 1 {
		t.Fatalf("expected one notice flushed, got %+v", report)
	}
	if got := f.sender.to(boss); len(got) != 1 || got[0] != "Nuevo ticket #7" {
		t.Fatalf("unexpected flushed messages: %v", got)
	}
	pending, err := f.notices.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected notices marked delivered, got %+v", pending)
	}
}

func TestSweeperRunsOnTicks(t *testing.T) {
	f := newFixture(t)
	f.assigned(t, "305", onShift)
	f.clock.Set(f.clock.Now().Add(20 * time.Minute))

	ticker := &manualTicker{ch: make(chan time.Time, 1)}
	f.sweeper.tickerFactory = func(time.Duration) sweepTicker { return ticker }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.sweeper.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.sweeper.Start(ctx); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	ticker.ch <- time.Now()
	select {
	case <-f.sender.ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the sweep")
	}
	f.sweeper.Stop()
	f.sweeper.Stop()

	if got := f.sender.to(onShift); len(got) != 1 {
		t.Fatalf("expected one reminder from the tick, got %v", got)
	}
}
