package intent

import (
	"regexp"
	"strings"

	"hestia.local/dispatch/internal/textnorm"
)

type Kind string

const (
	KindUnknown         Kind = "unknown"
	KindMenu            Kind = "menu"
	KindCancel          Kind = "cancel"
	KindYes             Kind = "yes"
	KindNo              Kind = "no"
	KindHelp            Kind = "help"
	KindShiftStart      Kind = "shift_start"
	KindShiftEnd        Kind = "shift_end"
	KindFinish          Kind = "finish"
	KindPause           Kind = "pause"
	KindResume          Kind = "resume"
	KindTake            Kind = "take"
	KindReassign        Kind = "reassign"
	KindAssign          Kind = "assign"
	KindStatusQuery     Kind = "status_query"
	KindListPending     Kind = "list_pending"
	KindListUrgent      Kind = "list_urgent"
	KindListStale       Kind = "list_stale"
	KindListInProgress  Kind = "list_in_progress"
	KindViewTickets     Kind = "view_tickets"
	KindReport          Kind = "report"
	KindCreate          Kind = "create"
	KindCreateAndAssign Kind = "create_and_assign"
)

// IsTicketCommand reports kinds that act on an existing ticket id. Location
// extraction is skipped for them so "fin 305" never reads as a room.
func (k Kind) IsTicketCommand() bool {
	switch k {
	case KindFinish, KindPause, KindResume, KindTake, KindAssign, KindReassign, KindStatusQuery:
		return true
	default:
		return false
	}
}

type roleMask uint8

const (
	forWorker roleMask = 1 << iota
	forSupervisor
	forAll = forWorker | forSupervisor
)

type kindRule struct {
	kind    Kind
	roles   roleMask
	pattern *regexp.Regexp
}

// kindRules is evaluated top to bottom against the folded, trimmed message;
// the first matching rule wins. Shift rules sit above finish so "fin de
// turno" is not read as finishing a ticket.
var kindRules = []kindRule{
	{KindMenu, forAll, regexp.MustCompile(`^(menu|inicio|home|volver al menu)$`)},
	{KindCancel, forAll, regexp.MustCompile(`^(cancelar|cancela|cancelo|cancel|anular|salir)$`)},
	{KindYes, forAll, regexp.MustCompile(`^(si|s|yes|y|ok|okay|dale|confirmar|confirmo|confirm|correcto|de acuerdo)$`)},
	{KindNo, forAll, regexp.MustCompile(`^(no|n|nop|nope|negativo)$`)},
	{KindHelp, forAll, regexp.MustCompile(`^(ayuda|help)$`)},
	{KindShiftStart, forWorker, regexp.MustCompile(`^((iniciar|inicio|empezar|comenzar|comienzo|start|begin)( de| mi| el)? (turno|shift)|entrada|llegue)$`)},
	{KindShiftEnd, forWorker, regexp.MustCompile(`^((terminar|termino|finalizar|fin|cerrar|end|stop|finish)( de| mi| el)? (turno|shift)|salida|me voy)$`)},
	{KindFinish, forAll, regexp.MustCompile(`^(fin|finalizar|finalizado|finalice|terminar|terminado|termine|listo|cerrar|finish|finished|done|close)\b`)},
	{KindPause, forWorker, regexp.MustCompile(`^(pausa|pausar|pauso|pause|hold)\b`)},
	{KindResume, forWorker, regexp.MustCompile(`^(reanudar|reanudo|continuar|continuo|retomar|retomo|resume|continue)\b`)},
	{KindTake, forWorker, regexp.MustCompile(`^(tomar|tomo|aceptar|acepto|take|accept)\b`)},
	{KindReassign, forSupervisor, regexp.MustCompile(`^(reasignar|reasigna|reassign)\b`)},
	{KindAssign, forSupervisor, regexp.MustCompile(`^(asignar|asigna|assign)\b`)},
	{KindStatusQuery, forSupervisor, regexp.MustCompile(`^(estado|status|como va|info)\b`)},
	{KindListPending, forSupervisor, regexp.MustCompile(`^(pendientes|pending|tickets|lista|ver tickets|ver pendientes)$`)},
	{KindListUrgent, forSupervisor, regexp.MustCompile(`^(urgentes|urgent|ver urgentes)$`)},
	{KindListStale, forSupervisor, regexp.MustCompile(`^(atrasados|retrasados|demorados|stale|late)$`)},
	{KindListInProgress, forSupervisor, regexp.MustCompile(`^(en curso|en progreso|in progress|activos)$`)},
	{KindViewTickets, forWorker, regexp.MustCompile(`^(mis tickets|ver mis tickets|mis tareas|my tickets|tickets)$`)},
	{KindReport, forWorker, regexp.MustCompile(`^(reportar|reporte|report)\b`)},
}

// Classify returns the command kind for text. Messages that match no keyword
// rule are classified by their entities: a location plus a trailing
// assignment clause is create-and-assign, a location alone is create.
func Classify(text string, ctx Context) Kind {
	return Parse(text, ctx).Kind
}

func classifyKeyword(folded string, ctx Context) Kind {
	mask := forWorker
	if ctx.Supervisor {
		mask = forSupervisor
	}
	for _, rule := range kindRules {
		if rule.roles&mask == 0 {
			continue
		}
		if rule.pattern.MatchString(folded) {
			return rule.kind
		}
	}
	return KindUnknown
}

// normalizeCommand folds text and trims punctuation around it.
func normalizeCommand(text string) string {
	folded := textnorm.Squash(textnorm.Fold(text))
	return strings.Trim(folded, "!¡?¿ ")
}
