package workers

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"hestia.local/dispatch/internal/textnorm"
)

// SimilarityFloor is the minimum fuzzy similarity accepted as a name match.
const SimilarityFloor = 0.7

// Match resolves a free-text name against workers in three tiers: exact
// (full name, first name or nickname), then substring or nickname prefix,
// then fuzzy similarity above SimilarityFloor. The first non-empty tier wins.
func Match(all []Worker, query string) []Worker {
	q := textnorm.Squash(textnorm.Fold(query))
	if q == "" {
		return nil
	}

	var exact, partial []Worker
	type scored struct {
		w   Worker
		sim float64
	}
	var fuzzy []scored

	for _, w := range all {
		keys := nameKeys(w)
		if containsKey(keys, q) {
			exact = append(exact, w)
			continue
		}
		if partialMatch(keys, q) {
			partial = append(partial, w)
			continue
		}
		if sim := bestSimilarity(keys, q); sim >= SimilarityFloor {
			fuzzy = append(fuzzy, scored{w: w, sim: sim})
		}
	}

	switch {
	case len(exact) > 0:
		return sortByName(exact)
	case len(partial) > 0:
		return sortByName(partial)
	case len(fuzzy) > 0:
		sort.SliceStable(fuzzy, func(i, j int) bool {
			if fuzzy[i].sim != fuzzy[j].sim {
				return fuzzy[i].sim > fuzzy[j].sim
			}
			return fuzzy[i].w.Name < fuzzy[j].w.Name
		})
		out := make([]Worker, 0, len(fuzzy))
		for _, f := range fuzzy {
			out = append(out, f.w)
		}
		return out
	default:
		return nil
	}
}

// Similarity is 1 - levenshtein(a, b) / max rune length.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func nameKeys(w Worker) []string {
	keys := make([]string, 0, 2+len(w.Nicknames))
	full := textnorm.Squash(textnorm.Fold(w.Name))
	if full != "" {
		keys = append(keys, full)
	}
	if first := textnorm.Fold(w.FirstName()); first != "" && first != full {
		keys = append(keys, first)
	}
	for _, n := range w.Nicknames {
		if n = textnorm.Squash(textnorm.Fold(n)); n != "" {
			keys = append(keys, n)
		}
	}
	return keys
}

func containsKey(keys []string, q string) bool {
	for _, k := range keys {
		if k == q {
			return true
		}
	}
	return false
}

// minPartialRunes keeps one or two letter queries from matching every name.
const minPartialRunes = 3

func partialMatch(keys []string, q string) bool {
	if utf8.RuneCountInString(q) < minPartialRunes {
		return false
	}
	for _, k := range keys {
		if strings.Contains(k, q) || strings.HasPrefix(q, k+" ") {
			return true
		}
	}
	return false
}

func bestSimilarity(keys []string, q string) float64 {
	best := 0.0
	for _, k := range keys {
		if sim := Similarity(k, q); sim > best {
			best = sim
		}
		for _, token := range strings.Fields(k) {
			if sim := Similarity(token, q); sim > best {
				best = sim
			}
		}
	}
	return best
}

func sortByName(in []Worker) []Worker {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Name != in[j].Name {
			return in[i].Name < in[j].Name
		}
		return in[i].Phone < in[j].Phone
	})
	return in
}

// Lexicon lists every name a worker may be addressed by: full names, first
// names and nicknames, without duplicates.
func Lexicon(all []Worker) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(all)*2)
	add := func(name string) {
		name = strings.TrimSpace(name)
		key := textnorm.Fold(name)
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	for _, w := range all {
		add(w.Name)
		add(w.FirstName())
		for _, n := range w.Nicknames {
			add(n)
		}
	}
	return out
}
