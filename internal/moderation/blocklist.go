// Package moderation decides whether a chat line is dropped before dispatch.
package moderation

import (
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Checker reports whether text must not be processed.
type Checker interface {
	IsBlocked(text string) bool
}

// Blocklist matches text against a dictionary of blocked words. An empty
// dictionary never blocks anything.
type Blocklist struct {
	matcher *goahocorasick.Machine
}

// NewBlocklist builds the automaton for words. Blank entries are ignored.
func NewBlocklist(words []string) (*Blocklist, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		if norm := normalize(w); len(norm) > 0 {
			patterns = append(patterns, norm)
		}
	}
	if len(patterns) == 0 {
		return &Blocklist{}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Blocklist{matcher: m}, nil
}

// IsBlocked reports whether text contains a blocked word.
func (b *Blocklist) IsBlocked(text string) bool {
	if b == nil || b.matcher == nil {
		return false
	}
	norm := normalize(text)
	if len(norm) == 0 {
		return false
	}
	return len(b.matcher.MultiPatternSearch(norm, true)) > 0
}

// normalize lowercases text and drops spacing and punctuation so that
// "b a d" and "B.A.D" match "bad".
func normalize(text string) []rune {
	text = strings.TrimSpace(text)
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	return out
}
