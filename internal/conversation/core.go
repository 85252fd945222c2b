package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"hestia.local/dispatch/internal/events"
	"hestia.local/dispatch/internal/scoring"
	"hestia.local/dispatch/internal/session"
	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

// DefaultStaleAfter is how long an unaccepted ticket waits before it is
// listed as stale.
const DefaultStaleAfter = 30 * time.Minute

// Deps are the collaborators shared by both orchestrators.
type Deps struct {
	Tickets   *ticket.Manager
	Directory workers.Directory
	Engine    *scoring.Engine
	// Supervisors receive report, take and finish notifications.
	Supervisors []string
	Logger      *log.Logger
	Clock       func() time.Time
	// Location is the hotel's timezone, used for greeting dates.
	Location   *time.Location
	StaleAfter time.Duration
}

type core struct {
	tickets     *ticket.Manager
	directory   workers.Directory
	engine      *scoring.Engine
	supervisors []string
	logger      *log.Logger
	now         func() time.Time
	location    *time.Location
	staleAfter  time.Duration
}

func newCore(d Deps) (core, error) {
	if d.Tickets == nil {
		return core{}, fmt.Errorf("ticket manager is required")
	}
	if d.Directory == nil {
		return core{}, fmt.Errorf("worker directory is required")
	}
	c := core{
		tickets:    d.Tickets,
		directory:  d.Directory,
		engine:     d.Engine,
		logger:     d.Logger,
		now:        d.Clock,
		location:   d.Location,
		staleAfter: d.StaleAfter,
	}
	if c.engine == nil {
		return core{}, fmt.Errorf("scoring engine is required")
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard, "", 0)
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.location == nil {
		c.location = time.UTC
	}
	if c.staleAfter <= 0 {
		c.staleAfter = DefaultStaleAfter
	}
	for _, phone := range d.Supervisors {
		if phone = workers.NormalizePhone(phone); phone != "" {
			c.supervisors = append(c.supervisors, phone)
		}
	}
	return c, nil
}

// fail turns err into a reply. Anything other than a user error restores the
// session snapshot so the user can retry the same message.
func (c core) fail(out *Outbox, sess *session.Session, snapshot session.Session, to string, err error) {
	if !userError(err) {
		c.logger.Printf("operation failed phone=%s state=%s err=%v", sess.Phone, sess.State, err)
		restore(sess, snapshot)
		out.discardMessages()
	}
	out.Reply(to, errorReply(err))
}

func restore(sess *session.Session, snapshot session.Session) {
	*sess = snapshot.Clone()
}

// notifySupervisors sends body to every supervisor except the actor.
func (c core) notifySupervisors(out *Outbox, actor, body string, ticketID int64, deferrable bool) {
	for _, phone := range c.supervisors {
		if phone == actor {
			continue
		}
		if deferrable {
			out.Alert(phone, body, ticketID)
			continue
		}
		out.Reply(phone, body)
	}
}

// names maps phone to display name for the whole directory.
func (c core) names(ctx context.Context) (map[string]string, error) {
	all, err := c.directory.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	out := make(map[string]string, len(all))
	for _, w := range all {
		out[w.Phone] = w.Name
	}
	return out, nil
}

func (c core) nameOf(ctx context.Context, phone string) string {
	w, err := c.directory.FindByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, workers.ErrNotFound) {
			c.logger.Printf("worker lookup failed phone=%s err=%v", phone, err)
		}
		return phone
	}
	return w.Name
}

// reported finds an open ticket the same sender already filed from this
// draft. A confirmation whose session write was lost arrives again with the
// draft still in place.
func (c core) reported(ctx context.Context, createdBy string, d session.Draft) (ticket.Ticket, bool, error) {
	open, err := c.tickets.List(ctx, ticket.OpenStatuses...)
	if err != nil {
		return ticket.Ticket{}, false, err
	}
	for _, t := range open {
		if t.CreatedBy == createdBy && t.Location == d.Location && t.Detail == d.Detail {
			return t, true, nil
		}
	}
	return ticket.Ticket{}, false, nil
}

func (c core) today() string {
	return c.now().In(c.location).Format(time.DateOnly)
}

// recordTransition publishes a committed transition.
func recordTransition(out *Outbox, actor string, action ticket.Action, res ticket.Result) {
	out.Changed(events.ForAction(action), actor, res.Ticket)
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
