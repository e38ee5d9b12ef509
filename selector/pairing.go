package selector

import (
	"regexp"
	"strings"

	"github.com/teranos/lineage/walker"
)

// Mate labels.
const (
	MateForward = "R1"
	MateReverse = "R2"
)

var mateSuffix = regexp.MustCompile(`(?i)[_-](R[12]|fwd|rev|forward|reverse|paired|unpaired)([^a-z0-9].*)?$`)

var (
	forwardMarkers = []string{"_r1", "_fwd", "_forward", "_1.fastq", "_1.fq"}
	reverseMarkers = []string{"_r2", "_rev", "_reverse", "_2.fastq", "_2.fq"}
)

// BaseName strips a mate suffix ("_R1.fastq.gz", "-rev", "_paired") from name.
func BaseName(name string) string {
	return mateSuffix.ReplaceAllString(name, "")
}

// hasMarker reports whether name contains one of markers followed by a
// non-alphanumeric byte or the end of name, so "_r1" does not match "_r10".
func hasMarker(name string, markers []string) bool {
	name = strings.ToLower(name)
	for _, m := range markers {
		for from := 0; ; {
			i := strings.Index(name[from:], m)
			if i < 0 {
				break
			}
			end := from + i + len(m)
			if end == len(name) || !isAlnum(name[end]) {
				return true
			}
			from += i + 1
		}
	}
	return false
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

type group struct {
	base    string
	members []walker.Candidate
}

// Pair groups candidates by base name. A group of two or more yields its
// forward and reverse halves; a singleton yields itself. When at least one
// group has both halves identified by name, singleton groups are dropped.
func Pair(set []walker.Candidate) []Selected {
	var groups []*group
	byBase := make(map[string]*group)
	for _, c := range set {
		name := DisplayName(c.Artifact)
		base := BaseName(name)
		if base == "" {
			groups = append(groups, &group{base: name, members: []walker.Candidate{c}})
			continue
		}
		g, ok := byBase[base]
		if !ok {
			g = &group{base: base}
			byBase[base] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, c)
	}

	type result struct {
		selected []Selected
		single   bool
	}
	results := make([]result, 0, len(groups))
	anyIdentified := false

	for _, g := range groups {
		if len(g.members) == 1 {
			results = append(results, result{
				selected: []Selected{{Candidate: g.members[0], Group: g.base}},
				single:   true,
			})
			continue
		}

		fwd, rev := -1, -1
		for i, c := range g.members {
			name := DisplayName(c.Artifact)
			if hasMarker(name, forwardMarkers) {
				fwd = i
			} else if hasMarker(name, reverseMarkers) {
				rev = i
			}
		}
		identified := fwd >= 0 && rev >= 0
		if fwd < 0 {
			fwd = firstOther(len(g.members), rev)
		}
		if rev < 0 {
			rev = firstOther(len(g.members), fwd)
		}
		anyIdentified = anyIdentified || identified
		results = append(results, result{
			selected: []Selected{
				{Candidate: g.members[fwd], Group: g.base, Mate: MateForward},
				{Candidate: g.members[rev], Group: g.base, Mate: MateReverse},
			},
		})
	}

	var out []Selected
	for _, r := range results {
		if anyIdentified && r.single {
			continue
		}
		out = append(out, r.selected...)
	}
	return out
}

// firstOther returns the first index in [0,n) that is not taken.
func firstOther(n, taken int) int {
	for i := 0; i < n; i++ {
		if i != taken {
			return i
		}
	}
	return 0
}
