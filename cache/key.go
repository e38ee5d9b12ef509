// Package cache persists remote table responses as one JSON file per request.
//
// Files are named by a content hash of the outbound request so logically
// identical requests share an entry regardless of payload key order. Keys are
// compatible with existing .berdl_cache directories written by other BERDL
// clients.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/teranos/lineage/errors"
)

// Query is the fully-resolved outbound request an entry was stored for.
type Query struct {
	URL     string          `json:"url"`
	Payload json.RawMessage `json:"payload"`
}

// NewQuery marshals payload and pairs it with url.
func NewQuery(url string, payload any) (Query, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Query{}, errors.Wrapf(err, "failed to marshal payload for %s", url)
	}
	return Query{URL: url, Payload: raw}, nil
}

// Key returns the hex sha256 of the canonical {url, payload} document.
func (q Query) Key() (string, error) {
	var payload any
	if len(q.Payload) > 0 {
		dec := json.NewDecoder(bytes.NewReader(q.Payload))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return "", errors.Wrap(err, "failed to decode payload for cache key")
		}
	}

	var buf bytes.Buffer
	doc := map[string]any{"url": q.URL, "payload": payload}
	if err := writeCanonical(&buf, doc); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// writeCanonical renders v with sorted object keys, ", " and ": " separators
// and ASCII-only strings.
func writeCanonical(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(x.String())
	case string:
		writeASCIIString(buf, x)
	case []any:
		buf.WriteByte('[')
		for i, elem := range x {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeASCIIString(buf, k)
			buf.WriteString(": ")
			if err := writeCanonical(buf, x[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return errors.Newf("cannot canonicalize value of type %T", v)
	}
	return nil
}

func writeASCIIString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				buf.WriteRune(r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				fmt.Fprintf(buf, `\u%04x\u%04x`, hi, lo)
			default:
				fmt.Fprintf(buf, `\u%04x`, r)
			}
		}
	}
	buf.WriteByte('"')
}
