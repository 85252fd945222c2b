// Package gateway routes inbound messages to the conversation orchestrators
// one sender at a time and delivers what they produce.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"hestia.local/dispatch/internal/conversation"
	"hestia.local/dispatch/internal/events"
	"hestia.local/dispatch/internal/hours"
	"hestia.local/dispatch/internal/ids"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/workers"
)

const (
	defaultMaxAttempts = 3

	notRegisteredReply = "Tu número no está registrado. Pide a supervisión que te agregue."
	audioReprompt      = "No pude entender el audio. ¿Puedes escribirlo?"
	failureReply       = "No pude procesar tu mensaje. Intenta de nuevo en un momento."
)

// Outbound is the dispatcher as seen by the router.
type Outbound interface {
	Send(ctx context.Context, traceID, to, body string)
	Dispatch(ctx context.Context, event events.Event)
}

type Deps struct {
	Logger     *log.Logger
	Scheduler  *session.Scheduler
	Locker     session.Locker
	Sessions   session.Store
	Directory  workers.Directory
	Worker     conversation.Orchestrator
	Supervisor conversation.Orchestrator
	// Supervisors is the roster of supervisor phones; it wins over the
	// worker directory.
	Supervisors []string
	Outbound    Outbound
	// Notices holds deferrable messages produced outside Hours. Nil sends
	// everything immediately.
	Notices     hours.NoticeStore
	Hours       hours.Window
	Clock       func() time.Time
	MaxAttempts int
}

type Router struct {
	logger      *log.Logger
	scheduler   *session.Scheduler
	locker      session.Locker
	sessions    session.Store
	directory   workers.Directory
	worker      conversation.Orchestrator
	supervisor  conversation.Orchestrator
	supervisors map[string]struct{}
	outbound    Outbound
	notices     hours.NoticeStore
	window      hours.Window
	now         func() time.Time
	maxAttempts int
}

func New(d Deps) (*Router, error) {
	switch {
	case d.Sessions == nil:
		return nil, fmt.Errorf("session store is required")
	case d.Directory == nil:
		return nil, fmt.Errorf("worker directory is required")
	case d.Worker == nil || d.Supervisor == nil:
		return nil, fmt.Errorf("both orchestrators are required")
	case d.Outbound == nil:
		return nil, fmt.Errorf("outbound dispatcher is required")
	}
	r := &Router{
		logger:      d.Logger,
		scheduler:   d.Scheduler,
		locker:      d.Locker,
		sessions:    d.Sessions,
		directory:   d.Directory,
		worker:      d.Worker,
		supervisor:  d.Supervisor,
		supervisors: make(map[string]struct{}, len(d.Supervisors)),
		outbound:    d.Outbound,
		notices:     d.Notices,
		window:      d.Hours,
		now:         d.Clock,
		maxAttempts: d.MaxAttempts,
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard, "", 0)
	}
	if r.scheduler == nil {
		r.scheduler = session.NewScheduler(r.logger, 0)
	}
	if r.locker == nil {
		r.locker = session.NewLocalLocker()
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	for _, phone := range d.Supervisors {
		if phone = workers.NormalizePhone(phone); phone != "" {
			r.supervisors[phone] = struct{}{}
		}
	}
	return r, nil
}

// Accept validates msg and queues it behind earlier messages from the same
// sender. It returns session.ErrSessionQueueFull when that queue is full.
func (r *Router) Accept(ctx context.Context, msg Inbound) (Inbound, error) {
	msg = msg.Normalize()
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	if msg.ID == "" {
		msg.ID = ids.New()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = r.now()
	}
	if err := ctx.Err(); err != nil {
		return msg, err
	}
	err := r.scheduler.Enqueue(msg.SenderPhone, func(taskCtx context.Context) {
		r.Process(taskCtx, msg)
	})
	return msg, err
}

// Close stops accepting messages and drains the sender queues.
func (r *Router) Close(ctx context.Context) error {
	return r.scheduler.Close(ctx)
}

// Process handles one message synchronously under the sender's lock.
func (r *Router) Process(ctx context.Context, msg Inbound) {
	msg = msg.Normalize()
	phone := msg.SenderPhone
	if msg.ID == "" {
		msg.ID = ids.New()
	}

	unlock, err := r.locker.Lock(ctx, phone)
	if err != nil {
		r.logger.Printf("session lock failed message_id=%s phone=%s err=%v", msg.ID, phone, err)
		r.outbound.Send(ctx, msg.ID, phone, failureReply)
		return
	}
	defer unlock()

	from, err := r.resolve(ctx, phone)
	if errors.Is(err, workers.ErrNotFound) {
		r.logger.Printf("unregistered sender message_id=%s phone=%s", msg.ID, phone)
		r.outbound.Send(ctx, msg.ID, phone, notRegisteredReply)
		return
	}
	if err != nil {
		r.logger.Printf("sender lookup failed message_id=%s phone=%s err=%v", msg.ID, phone, err)
		r.outbound.Send(ctx, msg.ID, phone, failureReply)
		return
	}

	if msg.needsTranscript() {
		r.logger.Printf("audio without transcript message_id=%s phone=%s media_ref=%s", msg.ID, phone, msg.MediaRef)
		r.outbound.Send(ctx, msg.ID, phone, audioReprompt)
		return
	}

	out, err := r.run(ctx, msg, from)
	if err != nil {
		r.logger.Printf("message failed message_id=%s phone=%s role=%s err=%v", msg.ID, phone, from.Role, err)
		r.outbound.Send(ctx, msg.ID, phone, failureReply)
		return
	}
	r.deliver(ctx, msg.ID, out)
}

func (r *Router) resolve(ctx context.Context, phone string) (conversation.Sender, error) {
	if _, ok := r.supervisors[phone]; ok {
		from := conversation.Sender{Phone: phone, Name: "Supervisión", Role: session.RoleSupervisor}
		if w, err := r.directory.FindByPhone(ctx, phone); err == nil {
			from.Name = w.Name
			from.Area = w.Area
		}
		return from, nil
	}
	w, err := r.directory.FindByPhone(ctx, phone)
	if err != nil {
		return conversation.Sender{}, err
	}
	return conversation.Sender{Phone: phone, Name: w.Name, Role: session.RoleWorker, Area: w.Area}, nil
}

// run loads, handles and saves, re-running on a version conflict. Once the
// orchestrator has committed ticket changes the message is neither re-run nor
// reported as failed: its outbox is delivered and only the session update is
// lost.
func (r *Router) run(ctx context.Context, msg Inbound, from conversation.Sender) (*conversation.Outbox, error) {
	orchestrator := r.worker
	if from.Role == session.RoleSupervisor {
		orchestrator = r.supervisor
	}

	for attempt := 1; ; attempt++ {
		sess, err := r.sessions.Load(ctx, from.Phone)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if from.Role == session.RoleWorker {
			r.syncShift(ctx, &sess)
		}

		out := orchestrator.Handle(ctx, &sess, from, msg.Text)
		_, err = r.sessions.Save(ctx, from.Phone, sess)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, session.ErrVersionConflict) {
			r.forget(from.Phone)
			if len(out.Changes) > 0 {
				r.logger.Printf("session save failed after commit message_id=%s phone=%s changes=%d err=%v", msg.ID, from.Phone, len(out.Changes), err)
				return out, nil
			}
			return nil, fmt.Errorf("save session: %w", err)
		}
		if len(out.Changes) > 0 {
			r.logger.Printf("session conflict after commit message_id=%s phone=%s changes=%d", msg.ID, from.Phone, len(out.Changes))
			return out, nil
		}
		if attempt >= r.maxAttempts {
			return nil, fmt.Errorf("save session after %d attempts: %w", attempt, err)
		}
		r.logger.Printf("session conflict message_id=%s phone=%s attempt=%d", msg.ID, from.Phone, attempt)
	}
}

// invalidator is implemented by session stores that cache reads.
type invalidator interface {
	Invalidate(phone string)
}

// forget drops any cached copy of a session whose write failed; the write
// may or may not have reached the database.
func (r *Router) forget(phone string) {
	if c, ok := r.sessions.(invalidator); ok {
		c.Invalidate(phone)
	}
}

// syncShift copies the directory's shift flag, which roster imports and
// other instances may have changed.
func (r *Router) syncShift(ctx context.Context, sess *session.Session) {
	w, err := r.directory.FindByPhone(ctx, sess.Phone)
	if err != nil {
		return
	}
	sess.ShiftActive = w.ShiftActive
}

func (r *Router) deliver(ctx context.Context, traceID string, out *conversation.Outbox) {
	if out == nil {
		return
	}
	now := r.now()
	for _, m := range out.Messages {
		if m.Deferrable && r.notices != nil && !r.window.Contains(now) {
			n, err := r.notices.Defer(ctx, hours.Notice{Recipient: m.To, Body: m.Body, TicketID: m.TicketID, CreatedAt: now})
			if err == nil {
				r.logger.Printf("notice deferred notice_id=%d to=%s ticket_id=%d until=%s", n.ID, m.To, m.TicketID, r.window.NextOpen(now).Format(time.RFC3339))
				continue
			}
			r.logger.Printf("defer notice failed to=%s ticket_id=%d err=%v", m.To, m.TicketID, err)
		}
		r.outbound.Send(ctx, traceID, m.To, m.Body)
	}
	for _, c := range out.Changes {
		r.outbound.Dispatch(ctx, events.TicketChanged(traceID, c.Type, c.Actor, c.Ticket))
	}
}
