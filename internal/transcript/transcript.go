// Package transcript merges finalized recognition fragments into one running text.
package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Policy controls how a new fragment is joined onto an existing transcript.
type Policy struct {
	// InsertPeriods terminates an unpunctuated transcript with ". " before the
	// next fragment instead of joining with a single space.
	InsertPeriods bool
}

// DefaultPolicy joins unpunctuated text with a single space.
var DefaultPolicy = Policy{}

// Append merges candidate onto current using DefaultPolicy.
func Append(candidate, current string) string {
	return DefaultPolicy.Append(candidate, current)
}

// Append merges candidate onto current. Blank candidates are ignored.
// current is kept as is, so the result is never shorter than it; only the
// first character of candidate is ever changed.
func (p Policy) Append(candidate, current string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return current
	}

	trimmed := strings.TrimRightFunc(current, unicode.IsSpace)
	if trimmed == "" {
		return current + Capitalize(candidate)
	}

	sep := " "
	if len(trimmed) < len(current) {
		sep = ""
	}
	switch {
	case EndsSentence(trimmed):
		return current + sep + Capitalize(candidate)
	case p.InsertPeriods:
		tail := current[len(trimmed):]
		if tail == "" {
			tail = " "
		}
		return trimmed + "." + tail + Capitalize(candidate)
	default:
		return current + sep + candidate
	}
}

// EndsSentence reports whether the last non-space character of s is
// sentence punctuation.
func EndsSentence(s string) bool {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return r == '.' || r == '?' || r == '!'
}

// Capitalize upper-cases the first character of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Display combines the finalized transcript with the in-flight partial guess.
func Display(final, partial string) string {
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return final
	}
	if strings.TrimSpace(final) == "" {
		return partial
	}
	return final + " " + partial
}
