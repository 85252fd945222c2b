package intent

import (
	"regexp"
	"strconv"
	"strings"

	"hestia.local/dispatch/internal/textnorm"
)

var (
	verbTicketPattern = regexp.MustCompile(`\b(?:fin|finalizar|finalice|terminar|termine|terminado|listo|cerrar|finish|done|close|tomar|tomo|aceptar|acepto|take|accept|asignar|asigna|assign|reasignar|reasigna|reassign|pausa|pausar|pause|reanudar|reanudo|continuar|retomar|resume|estado|status)\b\s*(?:(?:el|la|del)\s+)?(?:(?:ticket|tarea|numero|nro|no)\.?\s*)?#?\s*(\d{1,4})\b`)
	hashTicketPattern = regexp.MustCompile(`(?:\bticket\s*|#\s*)(\d{1,6})\b`)
	lonelyNumber      = regexp.MustCompile(`(?:^|\s)(\d{1,4})(?:\s|$)`)
	indexPattern      = regexp.MustCompile(`^#?\s*(\d{1,2})$`)
)

// ExtractTicketID accepts a 1-4 digit number adjacent to a ticket verb
// ("fin 42", "asignar el ticket 12"), then "#N" or "ticket N" anywhere.
func ExtractTicketID(text string) (int64, bool) {
	folded := textnorm.Fold(text)
	if m := verbTicketPattern.FindStringSubmatch(folded); m != nil {
		return parseID(m[1])
	}
	if m := hashTicketPattern.FindStringSubmatch(folded); m != nil {
		return parseID(m[1])
	}
	return 0, false
}

// anyTicketNumber is the fallback for verb commands where the number is not
// adjacent to the verb ("asignar a Pedro 12").
func anyTicketNumber(folded string) (int64, bool) {
	if m := lonelyNumber.FindStringSubmatch(folded); m != nil {
		return parseID(m[1])
	}
	return 0, false
}

// ParseIndex reads a reply that is only a list position ("2", "#2").
func ParseIndex(text string) (int, bool) {
	m := indexPattern.FindStringSubmatch(strings.TrimSpace(textnorm.Fold(text)))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
