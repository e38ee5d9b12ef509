package token

import (
	"strings"
)

// DefaultAliases maps known object kinds to their collection when the
// discovered collection list has no match.
var DefaultAliases = map[string]string{
	"strain":   "sdt_strain",
	"sample":   "sdt_sample",
	"genome":   "sdt_genome",
	"asv":      "sdt_asv",
	"assembly": "sdt_assembly",
	"reads":    "sdt_reads",
}

// NDArrayCollection receives every "Brick"/"Brick-<n>" reference.
const NDArrayCollection = "ddt_ndarray"

// Decoder maps external object references ("Reads:100", "Brick-0000001:5",
// "sdt_genome:9") onto canonical Tokens.
//
// Resolution order for the type part of a reference:
//  1. "Brick" or "Brick-*" decodes to NDArrayCollection.
//  2. A discovered collection whose prefix-stripped name equals the type
//     (case-insensitive).
//  3. The first discovered collection containing the type as a substring
//     (case-insensitive), in discovery order.
//  4. The alias table.
//
// Anything else is unmappable and decodes to ok=false.
type Decoder struct {
	collections []string
	aliases     map[string]string
}

// NewDecoder builds a decoder over the discovered collection names.
// A nil aliases map uses DefaultAliases.
func NewDecoder(collections []string, aliases map[string]string) *Decoder {
	if aliases == nil {
		aliases = DefaultAliases
	}
	return &Decoder{
		collections: append([]string(nil), collections...),
		aliases:     aliases,
	}
}

// Decode maps one reference. A reference whose id contains another ":" has
// no canonical form and is unmappable.
func (d *Decoder) Decode(ref string) (Token, bool) {
	typePart, idPart, found := strings.Cut(strings.TrimSpace(ref), Separator)
	if !found || typePart == "" || idPart == "" || strings.Contains(idPart, Separator) {
		return Token{}, false
	}

	if typePart == "Brick" || strings.HasPrefix(typePart, "Brick-") {
		return Token{Collection: NDArrayCollection, ID: idPart}, true
	}

	if collection, ok := d.lookup(typePart); ok {
		return Token{Collection: collection, ID: idPart}, true
	}
	return Token{}, false
}

// DecodeAll decodes refs in order, dropping unmappable ones. The second
// return value lists what was dropped.
func (d *Decoder) DecodeAll(refs []string) ([]Token, []string) {
	tokens := make([]Token, 0, len(refs))
	var skipped []string
	for _, ref := range refs {
		t, ok := d.Decode(ref)
		if !ok {
			skipped = append(skipped, ref)
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens, skipped
}

// Collections returns the discovered collection names the decoder matches against.
func (d *Decoder) Collections() []string {
	return append([]string(nil), d.collections...)
}

func (d *Decoder) lookup(typePart string) (string, bool) {
	typeLower := strings.ToLower(typePart)

	for _, collection := range d.collections {
		if stripPrefix(strings.ToLower(collection)) == typeLower {
			return collection, true
		}
	}
	for _, collection := range d.collections {
		if strings.Contains(strings.ToLower(collection), typeLower) {
			return collection, true
		}
	}
	if alias, ok := d.aliases[typeLower]; ok {
		return alias, true
	}
	return "", false
}

func stripPrefix(collection string) string {
	collection = strings.TrimPrefix(collection, "sdt_")
	return strings.TrimPrefix(collection, "ddt_")
}
