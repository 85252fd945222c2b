// Package intent turns free-text messages into structured fields through
// ordered rule tables. Every function is pure and deterministic.
package intent

import (
	"errors"
	"fmt"
	"strings"

	"hestia.local/dispatch/internal/textnorm"
	"hestia.local/dispatch/internal/ticket"
)

var ErrAmbiguous = errors.New("could not understand message")

// AmbiguousError names the field that could not be extracted and an example
// the user can follow.
type AmbiguousError struct {
	Field   string
	Example string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("missing %s (e.g. %q)", e.Field, e.Example)
}

func (e *AmbiguousError) Unwrap() error {
	return ErrAmbiguous
}

// Context is what the parser knows about the sender.
type Context struct {
	Supervisor bool
	// Area is used as the ticket area when no location is found.
	Area ticket.Area
	// KnownNames are worker names and nicknames for the name lexicon.
	KnownNames []string
}

type Result struct {
	Kind       Kind
	Location   *Location
	Detail     string
	Priority   ticket.Priority
	Area       ticket.Area
	TicketID   int64
	WorkerName string
}

func (r Result) HasTicketID() bool { return r.TicketID > 0 }

func (r Result) RequireTicketID(example string) error {
	if r.TicketID > 0 {
		return nil
	}
	return &AmbiguousError{Field: "ticket_id", Example: example}
}

func (r Result) RequireLocation() error {
	if r.Location != nil {
		return nil
	}
	return &AmbiguousError{Field: "location", Example: "hab 305 fuga de agua"}
}

func (r Result) RequireDetail() error {
	if r.Detail != "" {
		return nil
	}
	return &AmbiguousError{Field: "detail", Example: "fuga de agua en el baño"}
}

func (r Result) RequireWorkerName(example string) error {
	if r.WorkerName != "" {
		return nil
	}
	return &AmbiguousError{Field: "worker_name", Example: example}
}

// Parse extracts every field from text. Ticket commands ("fin 305") never
// produce a location; everything else is read as a potential report.
func Parse(text string, ctx Context) Result {
	t := textnorm.New(strings.TrimSpace(text))
	res := Result{
		Kind:     classifyKeyword(normalizeCommand(text), ctx),
		Priority: ticket.PriorityMedium,
		Area:     ctx.Area,
	}
	if res.Area == "" {
		res.Area = ticket.AreaHousekeeping
	}

	if res.Kind.IsTicketCommand() {
		parseTicketCommand(t, ctx, &res)
		return res
	}

	switch res.Kind {
	case KindUnknown, KindReport:
	default:
		return res
	}

	loc, sp, ok := extractLocation(t.Folded)
	if !ok {
		if res.Kind == KindReport {
			res.Detail = CleanDetail(t.Original)
			res.Priority = ExtractPriority(res.Detail)
		}
		return res
	}
	res.Location = &loc
	res.Area = loc.Area

	remaining := textnorm.New(textnorm.Squash(t.Without(sp.start, sp.end)))
	if cl, found := findAssignClause(remaining, ctx.KnownNames, true); found {
		res.WorkerName = cl.name
		remaining = textnorm.New(remaining.Slice(0, cl.start))
		if res.Kind == KindUnknown {
			res.Kind = KindCreateAndAssign
		}
	}
	res.Detail = CleanDetail(remaining.Original)
	res.Priority = ExtractPriority(t.Original)
	if res.Kind == KindUnknown {
		res.Kind = KindCreate
	}
	return res
}

func parseTicketCommand(t textnorm.Text, ctx Context, res *Result) {
	if id, ok := ExtractTicketID(t.Original); ok {
		res.TicketID = id
	} else if id, ok := anyTicketNumber(t.Folded); ok {
		res.TicketID = id
	}
	if res.Kind != KindAssign && res.Kind != KindReassign {
		return
	}
	if cl, ok := findAssignClause(t, ctx.KnownNames, false); ok {
		res.WorkerName = nameFromRegion(cl.name, ctx.KnownNames)
		return
	}
	// "asignar 12 Pedro": whatever follows the verb and the number.
	tokens := tokenize(t)
	var rest []string
	for i, tk := range tokens {
		_, linker := assignLinkers[tk.folded]
		if i == 0 || linker || isNumberToken(tk.folded) || tk.folded == "ticket" || tk.folded == "el" {
			continue
		}
		rest = append(rest, tk.original)
	}
	if len(rest) > 0 && len(rest) <= maxNameTokens {
		res.WorkerName = nameFromRegion(strings.Join(rest, " "), ctx.KnownNames)
	}
}

func nameFromRegion(region string, lexicon []string) string {
	if name, ok := ExtractWorkerName(region, lexicon); ok {
		return name
	}
	return textnorm.Squash(region)
}

func isNumberToken(s string) bool {
	s = strings.TrimPrefix(s, "#")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var (
	leadingDetailNoise  = wordSet(`reportar reporte report crear nuevo nueva new create problema problem ticket en in at on la el los las de del the hay there is are -`)
	trailingDetailNoise = wordSet(`en in at on la el de del the a to y and por favor please`)
)

// CleanDetail trims command words and dangling prepositions left at the
// edges after the location phrase is removed.
func CleanDetail(s string) string {
	words := strings.Fields(textnorm.Squash(s))
	for len(words) > 0 {
		if _, drop := leadingDetailNoise[trimWord(words[0])]; !drop {
			break
		}
		words = words[1:]
	}
	for len(words) > 0 {
		if _, drop := trailingDetailNoise[trimWord(words[len(words)-1])]; !drop {
			break
		}
		words = words[:len(words)-1]
	}
	return textnorm.Squash(strings.Join(words, " "))
}

func trimWord(w string) string {
	return strings.Trim(textnorm.Fold(w), ",.;:!?¡¿")
}

func wordSet(words string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		out[w] = struct{}{}
	}
	return out
}
