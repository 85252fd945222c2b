package intent

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"hestia.local/dispatch/internal/textnorm"
)

// assignLinkers introduce a trailing assignment clause ("... a Pedro").
var assignLinkers = map[string]struct{}{
	"a": {}, "to": {}, "para": {}, "al": {},
}

const maxNameTokens = 3

// nameStopWords are capitalized words that are never worker names.
var nameStopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		asignar asigna assign reasignar reasigna reassign fin finalizar terminar finish tomar take
		aceptar accept pausa pause reanudar resume estado status ticket tarea hab habitacion cuarto
		room unit pieza suite el la los las un una de del en y a to para por favor gracias hola
		buenos buenas dias tardes noches si no ok urgente urgent hay the please menu
		ascensor elevador elevator lobby recepcion piscina pool gimnasio gym restaurante cocina
		estacionamiento parking pasillo spa terraza lavanderia escalera escaleras piso floor`) {
		nameStopWords[w] = struct{}{}
	}
}

type clause struct {
	start int // offset of the linker word in the folded text
	name  string
}

type token struct {
	folded   string
	original string
	start    int
	end      int
}

func tokenize(t textnorm.Text) []token {
	var out []token
	start := -1
	for i, r := range t.Folded {
		sep := unicode.IsSpace(r) || r == ',' || r == ';' || r == '.' || r == ':' || r == '!' || r == '?'
		if sep {
			if start >= 0 {
				out = append(out, newToken(t, start, i))
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, newToken(t, start, len(t.Folded)))
	}
	return out
}

func newToken(t textnorm.Text, start, end int) token {
	return token{folded: t.Folded[start:end], original: t.Slice(start, end), start: start, end: end}
}

// findAssignClause looks for a trailing "a <name>" clause of at most
// maxNameTokens words. In strict mode the name must be a known worker or a
// capitalized non-stop word, so "olor a humedad" is not an assignment.
func findAssignClause(t textnorm.Text, lexicon []string, strict bool) (clause, bool) {
	tokens := tokenize(t)
	for i := len(tokens) - 2; i >= 0 && i >= len(tokens)-1-maxNameTokens; i-- {
		if _, ok := assignLinkers[tokens[i].folded]; !ok {
			continue
		}
		rest := tokens[i+1:]
		if !nameLike(rest) {
			continue
		}
		name := t.Slice(rest[0].start, rest[len(rest)-1].end)
		if strict && !plausibleName(name, rest, lexicon) {
			continue
		}
		return clause{start: tokens[i].start, name: name}, true
	}
	return clause{}, false
}

func nameLike(tokens []token) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, tk := range tokens {
		if strings.IndexFunc(tk.folded, unicode.IsDigit) >= 0 {
			return false
		}
	}
	return true
}

func plausibleName(name string, tokens []token, lexicon []string) bool {
	if _, ok := lexiconMatch(textnorm.New(name), lexicon); ok {
		return true
	}
	return capitalizedName(tokens) != ""
}

// ExtractWorkerName checks the known-name lexicon first (longest match wins),
// then falls back to the first capitalized token that is not a stop word.
func ExtractWorkerName(text string, lexicon []string) (string, bool) {
	t := textnorm.New(text)
	if name, ok := lexiconMatch(t, lexicon); ok {
		return name, true
	}
	if name := capitalizedName(tokenize(t)); name != "" {
		return name, true
	}
	return "", false
}

func lexiconMatch(t textnorm.Text, lexicon []string) (string, bool) {
	keys := make([]string, 0, len(lexicon))
	for _, name := range lexicon {
		if k := textnorm.Squash(textnorm.Fold(name)); k != "" {
			keys = append(keys, k)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	haystack := t.Folded
	for _, key := range keys {
		from := 0
		for {
			idx := strings.Index(haystack[from:], key)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(key)
			if wordBoundary(haystack, start, end) {
				return t.Slice(start, end), true
			}
			from = start + 1
		}
	}
	return "", false
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func capitalizedName(tokens []token) string {
	for i, tk := range tokens {
		r, _ := utf8.DecodeRuneInString(tk.original)
		if !unicode.IsUpper(r) {
			continue
		}
		if _, stop := nameStopWords[tk.folded]; stop {
			continue
		}
		name := tk.original
		// Keep a following capitalized surname ("Pedro Soto").
		if i+1 < len(tokens) {
			next, _ := utf8.DecodeRuneInString(tokens[i+1].original)
			if _, stop := nameStopWords[tokens[i+1].folded]; unicode.IsUpper(next) && !stop {
				name += " " + tokens[i+1].original
			}
		}
		return name
	}
	return ""
}
