// Package reminder runs the periodic sweep: it flushes supervisor notices
// held outside operating hours and nudges workers about assigned tickets
// they have not taken.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"hestia.local/dispatch/internal/hours"
	"hestia.local/dispatch/internal/ids"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

const (
	DefaultInterval = time.Minute
	DefaultAfter    = 15 * time.Minute
)

var ErrAlreadyStarted = errors.New("reminder sweeper already started")

// Sender is the outbound send(to, body) contract.
type Sender interface {
	Send(ctx context.Context, traceID, to, body string)
}

type Sweeper struct {
	tickets   *ticket.Manager
	directory workers.Directory
	sessions  session.Store
	sender    Sender
	logger    *log.Logger

	locker   session.Locker
	notices  hours.NoticeStore
	window   hours.Window
	interval time.Duration
	after    time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	now           func() time.Time
	tickerFactory func(interval time.Duration) sweepTicker
}

type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithReminderAfter sets both the age an assigned ticket must reach and the
// minimum gap between two reminders to the same worker.
func WithReminderAfter(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.after = d
		}
	}
}

func WithNotices(store hours.NoticeStore, window hours.Window) Option {
	return func(s *Sweeper) {
		s.notices = store
		s.window = window
	}
}

func WithLocker(l session.Locker) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func New(tickets *ticket.Manager, directory workers.Directory, sessions session.Store, sender Sender, logger *log.Logger, opts ...Option) *Sweeper {
	if tickets == nil || directory == nil || sessions == nil || sender == nil {
		panic("reminder: tickets, directory, sessions and sender are required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Sweeper{
		tickets:   tickets,
		directory: directory,
		sessions:  sessions,
		sender:    sender,
		logger:    logger,
		locker:    session.NewLocalLocker(),
		window:    hours.AlwaysOpen(),
		interval:  DefaultInterval,
		after:     DefaultAfter,
		now: func() time.Time {
			return time.Now().UTC()
		},
		tickerFactory: func(interval time.Duration) sweepTicker {
			return newRealTicker(interval)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Sweeper) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	ticker := s.tickerFactory(s.interval)
	s.running = true
	s.stopCh = stopCh
	s.doneCh = doneCh
	s.mu.Unlock()

	go s.run(ctx, ticker, stopCh, doneCh)
	return nil
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.running = false
	s.stopCh = nil
	s.doneCh = nil
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (s *Sweeper) run(ctx context.Context, ticker sweepTicker, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.Chan():
			report, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Printf("sweep failed err=%v", err)
				continue
			}
			if report.Flushed > 0 || report.Reminded > 0 {
				s.logger.Printf("sweep flushed=%d reminded=%d", report.Flushed, report.Reminded)
			}
		}
	}
}

// Report counts what one sweep sent.
type Report struct {
	Flushed  int
	Reminded int
}

// Sweep runs one pass. Failures on single notices or workers are logged and
// skipped; only listing failures abort the pass.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	var report Report
	now := s.now()

	flushed, err := s.flush(ctx, now)
	report.Flushed = flushed
	if err != nil {
		return report, err
	}
	reminded, err := s.remind(ctx, now)
	report.Reminded = reminded
	return report, err
}

func (s *Sweeper) flush(ctx context.Context, now time.Time) (int, error) {
	if s.notices == nil || !s.window.Contains(now) {
		return 0, nil
	}
	pending, err := s.notices.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list deferred notices: %w", err)
	}
	sent := 0
	for _, n := range pending {
		// Marked first so a failing store never repeats a notice.
		if err := s.notices.MarkDelivered(ctx, n.ID, now); err != nil {
			s.logger.Printf("mark notice delivered failed notice_id=%d err=%v", n.ID, err)
			continue
		}
		s.sender.Send(ctx, ids.New(), n.Recipient, n.Body)
		sent++
	}
	return sent, nil
}

func (s *Sweeper) remind(ctx context.Context, now time.Time) (int, error) {
	assigned, err := s.tickets.List(ctx, ticket.StatusAssigned)
	if err != nil {
		return 0, err
	}

	due := make(map[string][]ticket.Ticket)
	for _, t := range assigned {
		if t.Assignee == "" || t.WaitingSince(now) < s.after {
			continue
		}
		due[t.Assignee] = append(due[t.Assignee], t)
	}

	phones := make([]string, 0, len(due))
	for phone := range due {
		phones = append(phones, phone)
	}
	sort.Strings(phones)

	reminded := 0
	for _, phone := range phones {
		ok, err := s.remindWorker(ctx, phone, due[phone], now)
		if err != nil {
			s.logger.Printf("reminder failed phone=%s err=%v", phone, err)
			continue
		}
		if ok {
			reminded++
		}
	}
	return reminded, nil
}

func (s *Sweeper) remindWorker(ctx context.Context, phone string, due []ticket.Ticket, now time.Time) (bool, error) {
	w, err := s.directory.FindByPhone(ctx, phone)
	if err != nil {
		return false, err
	}
	if !w.ShiftActive {
		return false, nil
	}

	unlock, err := s.locker.Lock(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	sess, err := s.sessions.Load(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if sess.LastReminderAt != nil && now.Sub(*sess.LastReminderAt) < s.after {
		return false, nil
	}

	stamp := now.UTC()
	sess.LastReminderAt = &stamp
	if _, err := s.sessions.Save(ctx, phone, sess); err != nil {
		return false, fmt.Errorf("stamp reminder: %w", err)
	}
	s.sender.Send(ctx, ids.New(), phone, reminderBody(due))
	return true, nil
}

func reminderBody(due []ticket.Ticket) string {
	sort.Slice(due, func(i, j int) bool {
		if ri, rj := due[i].Priority.Rank(), due[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return due[i].ID < due[j].ID
	})
	lines := make([]string, 0, len(due)+2)
	if len(due) == 1 {
		lines = append(lines, "Recordatorio: tienes un ticket asignado sin tomar.")
	} else {
		lines = append(lines, fmt.Sprintf("Recordatorio: tienes %d tickets asignados sin tomar.", len(due)))
	}
	for _, t := range due {
		loc := t.Location
		if t.LocationKind == ticket.LocationRoom {
			loc = "Hab " + loc
		}
		lines = append(lines, fmt.Sprintf("#%d %s: %s", t.ID, loc, t.Detail))
	}
	lines = append(lines, fmt.Sprintf("Responde \"tomar %d\" para empezar.", due[0].ID))
	return strings.Join(lines, "\n")
}

type sweepTicker interface {
	Chan() <-chan time.Time
	Stop()
}

type realTicker struct {
	ticker *time.Ticker
}

func newRealTicker(interval time.Duration) *realTicker {
	return &realTicker{ticker: time.NewTicker(interval)}
}

func (t *realTicker) Chan() <-chan time.Time {
	return t.ticker.C
}

func (t *realTicker) Stop() {
	t.ticker.Stop()
}
