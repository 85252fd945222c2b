package conversation

import (
	"errors"
	"fmt"

	"hestia.local/dispatch/internal/intent"
	"hestia.local/dispatch/internal/ticket"
	"hestia.local/dispatch/internal/workers"
)

var (
	errNoCandidates = errors.New("no matching workers")
	errNoSelection  = errors.New("selection out of range")
)

// userError is a failure the user caused and can fix; the session may still
// advance past it.
func userError(err error) bool {
	return errors.Is(err, intent.ErrAmbiguous) ||
		errors.Is(err, ticket.ErrInvalidTransition) ||
		errors.Is(err, ticket.ErrNotFound) ||
		errors.Is(err, ticket.ErrUnauthorized) ||
		errors.Is(err, workers.ErrNotFound) ||
		errors.Is(err, errNoCandidates) ||
		errors.Is(err, errNoSelection)
}

func errorReply(err error) string {
	var ambiguous *intent.AmbiguousError
	var transition *ticket.TransitionError
	switch {
	case errors.As(err, &ambiguous):
		return fmt.Sprintf("No te entendí. Ejemplo: %q", ambiguous.Example)
	case errors.As(err, &transition):
		return fmt.Sprintf("El ticket #%d está %s, no se puede %s.", transition.TicketID, statusLabel(transition.Current), actionLabel(transition.Action))
	case errors.Is(err, ticket.ErrNotFound):
		return "No encontré ese ticket. Revisa el número e intenta de nuevo."
	case errors.Is(err, ticket.ErrUnauthorized):
		return "Ese ticket no está asignado a ti."
	case errors.Is(err, workers.ErrNotFound), errors.Is(err, errNoCandidates):
		return "No encontré a nadie con ese nombre. Prueba con el nombre o apodo, por ejemplo \"asignar 12 a María\"."
	case errors.Is(err, errNoSelection):
		return "Ese número no está en la lista. Responde con un número de la lista o \"cancelar\"."
	default:
		return "No pude completar la operación. Intenta de nuevo en un momento."
	}
}

func statusLabel(s ticket.Status) string {
	switch s {
	case ticket.StatusPending:
		return "pendiente"
	case ticket.StatusAssigned:
		return "asignado"
	case ticket.StatusInProgress:
		return "en curso"
	case ticket.StatusPaused:
		return "en pausa"
	case ticket.StatusResolved:
		return "resuelto"
	default:
		return string(s)
	}
}

func actionLabel(a ticket.Action) string {
	switch a {
	case ticket.ActionAssign:
		return "asignar"
	case ticket.ActionReassign:
		return "reasignar"
	case ticket.ActionAccept:
		return "tomar"
	case ticket.ActionPause:
		return "pausar"
	case ticket.ActionResume:
		return "reanudar"
	default:
		return "finalizar"
	}
}
