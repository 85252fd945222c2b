package intent

import (
	"regexp"

	"hestia.local/dispatch/internal/textnorm"
	"hestia.local/dispatch/internal/ticket"
)

var (
	// deferralPattern is removed before the urgent check so "no urgente"
	// never counts as urgent vocabulary.
	deferralPattern = regexp.MustCompile(`\b(no (?:es )?urgente|not urgent|cuando (?:puedas|pueda|puedan)|when you can|mas tarde|later|sin apuro|sin prisa|no rush|manana)\b`)
	urgentPattern   = regexp.MustCompile(`\b(fuga\w*|leak\w*|gotea\w*|inund\w*|flood\w*|rot[oa]s?|broken|quebrad[oa]s?|olor\w*|smell\w*|tapad[oa]s?|blocked|clogged|atascad[oa]s?|stuck|corto ?circuito|chispa\w*|humo|smoke|fuego|fire|urgente|urgent|emergencia|emergency|ahora|now|asap|inmediat\w*)\b`)
)

// ExtractPriority: urgent vocabulary forces HIGH, deferral vocabulary forces
// LOW, anything else is MEDIUM. Urgent wins when both appear.
func ExtractPriority(text string) ticket.Priority {
	folded := textnorm.Fold(text)
	deferred := deferralPattern.MatchString(folded)
	remainder := deferralPattern.ReplaceAllString(folded, " ")
	switch {
	case urgentPattern.MatchString(remainder):
		return ticket.PriorityHigh
	case deferred:
		return ticket.PriorityLow
	default:
		return ticket.PriorityMedium
	}
}
