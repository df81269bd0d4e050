// Package sanitize normalizes user-supplied text before it reaches the store.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Sanitizer strips markup and normalizes Unicode in free text and names.
// It is safe for concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
	tag    language.Tag
}

// New returns a Sanitizer that title-cases and folds names using the rules
// of the given locale.
func New(tag language.Tag) *Sanitizer {
	return &Sanitizer{
		policy: bluemonday.StrictPolicy(),
		tag:    tag,
	}
}

// NewForLocale parses a BCP 47 locale such as "pt-BR". Unknown locales fall
// back to language.Und.
func NewForLocale(locale string) *Sanitizer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return New(tag)
}

// maxDecodePasses bounds how many levels of entity encoding Text unwraps.
const maxDecodePasses = 8

// Text removes every HTML tag, decodes entities, normalizes to NFC and trims
// surrounding whitespace. Entities are decoded before tags are stripped and
// the two steps repeat until the text stops changing, so encoded markup is
// removed as well and Text(Text(x)) == Text(x).
func (s *Sanitizer) Text(in string) string {
	if in == "" {
		return ""
	}

	out := in
	stable := false
	for i := 0; i < maxDecodePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(html.UnescapeString(out)))
		if next == out {
			stable = true
			break
		}
		out = next
	}
	if !stable {
		// Still encoded markup: keep it escaped rather than live.
		out = s.policy.Sanitize(html.UnescapeString(out))
	}
	return strings.TrimSpace(norm.NFC.String(out))
}

// Key returns the case-insensitive comparison key of a name. Two names with
// the same key are considered the same participant.
func (s *Sanitizer) Key(name string) string {
	// Casers hold state and must not be shared between goroutines.
	return cases.Fold().String(s.Text(name))
}

// Title returns the display form of a name, e.g. "maria clara" becomes
// "Maria Clara".
func (s *Sanitizer) Title(name string) string {
	return cases.Title(s.tag).String(s.Text(name))
}
