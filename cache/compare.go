package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Comparer decides whether a replayed response matches a cached one.
// Numbers match by value, and a number written with fewer decimal places
// matches the other rounded to that precision (1.5 matches 1.50 and 1.498).
type Comparer struct {
	// NormalizeString, when set, is applied to both sides of every string
	// comparison (for example to fold host-specific URL prefixes).
	NormalizeString func(string) string
}

// Equal decodes both documents and compares them.
func (c Comparer) Equal(expected, actual json.RawMessage) (bool, string, error) {
	e, err := decodeNumbers(expected)
	if err != nil {
		return false, "", err
	}
	a, err := decodeNumbers(actual)
	if err != nil {
		return false, "", err
	}
	if c.equal(e, a) {
		return true, "", nil
	}
	if diff := c.firstDiff(e, a, "$"); diff != "" {
		return false, diff, nil
	}
	return false, "mismatch", nil
}

func decodeNumbers(raw json.RawMessage) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c Comparer) equal(expected, actual any) bool {
	switch e := expected.(type) {
	case string:
		a, ok := actual.(string)
		return ok && c.normalize(e) == c.normalize(a)
	case json.Number:
		a, ok := actual.(json.Number)
		return ok && numbersMatch(e, a)
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok || len(e) != len(a) {
			return false
		}
		for k, ev := range e {
			av, ok := a[k]
			if !ok || !c.equal(ev, av) {
				return false
			}
		}
		return true
	case []any:
		a, ok := actual.([]any)
		if !ok || len(e) != len(a) {
			return false
		}
		for i := range e {
			if !c.equal(e[i], a[i]) {
				return false
			}
		}
		return true
	default:
		return expected == actual
	}
}

// firstDiff returns a JSONPath-like location of the first mismatch.
func (c Comparer) firstDiff(expected, actual any, path string) string {
	if c.equal(expected, actual) {
		return ""
	}
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			break
		}
		missing, extra := keyDiff(e, a)
		if len(missing) > 0 || len(extra) > 0 {
			return fmt.Sprintf("%s: key mismatch missing=%v extra=%v", path, missing, extra)
		}
		keys := make([]string, 0, len(e))
		for k := range e {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if sub := c.firstDiff(e[k], a[k], path+"."+k); sub != "" {
				return sub
			}
		}
		return path + ": dict mismatch"
	case []any:
		a, ok := actual.([]any)
		if !ok {
			break
		}
		if len(e) != len(a) {
			return fmt.Sprintf("%s: list length %d != %d", path, len(e), len(a))
		}
		for i := range e {
			if sub := c.firstDiff(e[i], a[i], fmt.Sprintf("%s[%d]", path, i)); sub != "" {
				return sub
			}
		}
		return path + ": list mismatch"
	}
	return fmt.Sprintf("%s: %v != %v", path, expected, actual)
}

func keyDiff(expected, actual map[string]any) (missing, extra []string) {
	for k := range expected {
		if _, ok := actual[k]; !ok {
			missing = append(missing, k)
		}
	}
	for k := range actual {
		if _, ok := expected[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func (c Comparer) normalize(s string) string {
	if c.NormalizeString == nil {
		return s
	}
	return c.NormalizeString(s)
}

// PrefixNormalizer rewrites any occurrence of from (with or without a
// trailing slash) to to.
func PrefixNormalizer(from, to string) func(string) string {
	from = strings.TrimSuffix(from, "/")
	to = strings.TrimSuffix(to, "/")
	return func(s string) string {
		if !strings.Contains(s, from) {
			return s
		}
		s = strings.ReplaceAll(s, from+"/", to+"/")
		return strings.ReplaceAll(s, from, to)
	}
}

func numbersMatch(a, b json.Number) bool {
	ra, okA := new(big.Rat).SetString(a.String())
	rb, okB := new(big.Rat).SetString(b.String())
	if !okA || !okB {
		return false
	}
	if ra.Cmp(rb) == 0 {
		return true
	}
	placesA, placesB := decimalPlaces(a.String()), decimalPlaces(b.String())
	if placesA == placesB {
		return false
	}
	if placesA < placesB {
		return roundTo(rb, placesA).Cmp(ra) == 0
	}
	return roundTo(ra, placesB).Cmp(rb) == 0
}

// decimalPlaces counts fractional digits of a JSON number literal the way
// its shortest float rendering would: trailing zeros do not count ("2.10"
// has the precision of 2.1) but a float literal keeps at least one place.
func decimalPlaces(lit string) int {
	mantissa, exp := lit, 0
	if i := strings.IndexAny(lit, "eE"); i >= 0 {
		mantissa = lit[:i]
		fmt.Sscanf(lit[i+1:], "%d", &exp)
	}
	frac := 0
	if i := strings.IndexByte(mantissa, '.'); i >= 0 {
		frac = len(strings.TrimRight(mantissa[i+1:], "0"))
	}
	if places := frac - exp; places > 0 {
		return places
	}
	if strings.ContainsAny(lit, ".eE") {
		return 1
	}
	return 0
}

// roundTo rounds r to places decimal digits, half to even.
func roundTo(r *big.Rat, places int) *big.Rat {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(places)), nil)
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(scale))

	num, den := scaled.Num(), scaled.Denom()
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	twiceRem := new(big.Int).Mul(new(big.Int).Abs(rem), big.NewInt(2))
	switch cmp := twiceRem.Cmp(den); {
	case cmp > 0, cmp == 0 && quo.Bit(0) == 1:
		if num.Sign() < 0 {
			quo.Sub(quo, big.NewInt(1))
		} else {
			quo.Add(quo, big.NewInt(1))
		}
	}
	return new(big.Rat).SetFrac(quo, scale)
}
