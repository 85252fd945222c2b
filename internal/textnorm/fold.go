// Package textnorm folds free text for keyword matching while keeping a
// rune-for-rune mapping back to the original message.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks ("Habitación" -> "habitacion").
// The result has exactly as many runes as s.
func Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteRune(foldRune(r))
	}
	return b.String()
}

func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		return unicode.ToLower(r)
	}
	for _, c := range norm.NFD.String(string(r)) {
		if !unicode.Is(unicode.Mn, c) {
			return unicode.ToLower(c)
		}
	}
	return unicode.ToLower(r)
}

// Text pairs an original message with its folded form.
type Text struct {
	Original string
	Folded   string
	runes    []rune
}

func New(s string) Text {
	return Text{
		Original: s,
		Folded:   Fold(s),
		runes:    []rune(s),
	}
}

// Slice returns the original substring for a byte range of Folded.
func (t Text) Slice(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(t.Folded) {
		end = len(t.Folded)
	}
	if start >= end {
		return ""
	}
	from := utf8.RuneCountInString(t.Folded[:start])
	to := from + utf8.RuneCountInString(t.Folded[start:end])
	return string(t.runes[from:to])
}

// Without returns the original text with the folded byte range removed.
func (t Text) Without(start, end int) string {
	if start < 0 || start >= end || end > len(t.Folded) {
		return t.Original
	}
	from := utf8.RuneCountInString(t.Folded[:start])
	to := from + utf8.RuneCountInString(t.Folded[start:end])
	return string(t.runes[:from]) + " " + string(t.runes[to:])
}

// Fields splits folded text into words, dropping punctuation.
func Fields(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '#'
	})
}

// Squash collapses runs of whitespace and trims separators left behind after
// removing a phrase from a message.
func Squash(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " ,.;:-–—")
}
