// Package token defines the canonical "collection:id" object reference used
// throughout lineage, and decoders for the heterogeneous reference formats
// found in source rows.
package token

import (
	"strings"

	"github.com/teranos/lineage/errors"
)

// Separator splits collection from id in the canonical string form.
const Separator = ":"

// Token identifies one object in a source relation. Tokens are comparable
// and can be used as map keys.
type Token struct {
	Collection string
	ID         string
}

// New returns a Token for collection and id.
func New(collection, id string) Token {
	return Token{Collection: collection, ID: id}
}

// Parse decodes the canonical "collection:id" form.
// A string is well-formed iff it contains exactly one ":" separating two
// non-empty parts.
func Parse(s string) (Token, error) {
	if strings.Count(s, Separator) != 1 {
		return Token{}, errors.MalformedToken(s)
	}
	collection, id, _ := strings.Cut(s, Separator)
	if collection == "" || id == "" {
		return Token{}, errors.MalformedToken(s)
	}
	return Token{Collection: collection, ID: id}, nil
}

// MustParse is Parse that panics on malformed input. For tests and constants.
func MustParse(s string) Token {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Format encodes t in canonical form. Format(Parse(s)) == s for every
// well-formed s.
func Format(t Token) string {
	return t.Collection + Separator + t.ID
}

// String implements fmt.Stringer.
func (t Token) String() string {
	return Format(t)
}

// IsZero reports whether t is the zero Token.
func (t Token) IsZero() bool {
	return t.Collection == "" && t.ID == ""
}

// Valid reports whether t would survive a Format/Parse round trip.
func (t Token) Valid() bool {
	return t.Collection != "" && t.ID != "" &&
		!strings.Contains(t.Collection, Separator) && !strings.Contains(t.ID, Separator)
}

// MarshalText implements encoding.TextMarshaler so tokens render as
// "collection:id" in JSON/YAML map keys and values.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(Format(t)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Token) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
