// Package selector reduces the raw candidates of a walk to the artifacts a
// report should use. The reduction is a fixed sequence of total filters;
// none of them errors and none of them can grow the set.
package selector

import (
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/lineage/logger"
	"github.com/teranos/lineage/token"
	"github.com/teranos/lineage/walker"
)

// Predicate accepts or rejects an artifact. Missing fields must be treated
// as "does not match".
type Predicate func(walker.Artifact) bool

// AcceptAll is the predicate that keeps everything.
func AcceptAll(walker.Artifact) bool { return true }

// DefaultExtensions are the sequence file extensions LinkPredicate accepts.
var DefaultExtensions = []string{".fastq", ".fq"}

// LinkPredicate accepts artifacts whose link mentions Host and one of
// Extensions, both case-insensitive. An empty Host accepts any host.
type LinkPredicate struct {
	Host       string
	Extensions []string
}

// Match implements Predicate.
func (p LinkPredicate) Match(a walker.Artifact) bool {
	link := strings.ToLower(a.Link)
	if link == "" {
		return false
	}
	if p.Host != "" && !strings.Contains(link, strings.ToLower(p.Host)) {
		return false
	}
	exts := p.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		if strings.Contains(link, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// Selected is a chosen candidate. Group and Mate are set by pairing: Group
// is the shared base name and Mate is "R1" or "R2" for the halves of a pair.
type Selected struct {
	walker.Candidate
	Group string `json:"group,omitempty"`
	Mate  string `json:"mate,omitempty"`
}

// Paired reports whether s is half of a pair.
func (s Selected) Paired() bool { return s.Mate != "" }

// Step names, in pipeline order.
const (
	StepLinkValidity = "link_validity"
	StepTransfer     = "transfer_preference"
	StepNonDerived   = "non_derived_preference"
	StepMinimality   = "ancestral_minimality"
	StepDedupe       = "dedupe"
	StepPairing      = "pairing"
)

// StepCount records the set size after one step.
type StepCount struct {
	Step  string `json:"step"`
	Count int    `json:"count"`
}

// Report describes one reduction.
type Report struct {
	Input int         `json:"input"`
	Steps []StepCount `json:"steps"`
}

// Selector runs the pipeline. The zero value accepts every artifact.
type Selector struct {
	Accept Predicate
	Logger *zap.SugaredLogger
}

// New returns a selector filtering with accept.
func New(accept Predicate, l *zap.SugaredLogger) *Selector {
	return &Selector{Accept: accept, Logger: logger.Named(l, "selector")}
}

// Select reduces candidates. An empty input yields an empty result.
func (s *Selector) Select(candidates []walker.Candidate) []Selected {
	out, _ := s.Reduce(candidates)
	return out
}

// Reduce is Select that also reports the size after every step.
func (s *Selector) Reduce(candidates []walker.Candidate) ([]Selected, Report) {
	report := Report{Input: len(candidates)}
	record := func(step string, n int) {
		report.Steps = append(report.Steps, StepCount{Step: step, Count: n})
	}

	accept := s.Accept
	if accept == nil {
		accept = AcceptAll
	}

	set := FilterValid(candidates, accept)
	record(StepLinkValidity, len(set))
	set = PreferTransfer(set)
	record(StepTransfer, len(set))
	set = PreferNonDerived(set)
	record(StepNonDerived, len(set))
	set = Minimal(set)
	record(StepMinimality, len(set))
	set = Dedupe(set)
	record(StepDedupe, len(set))
	out := Pair(set)
	record(StepPairing, len(out))

	if s.Logger != nil {
		s.Logger.Debugw("Selected artifacts", "input", report.Input, "steps", report.Steps)
	}
	return out, report
}

// FilterValid keeps candidates whose artifact satisfies accept.
func FilterValid(set []walker.Candidate, accept Predicate) []walker.Candidate {
	var out []walker.Candidate
	for _, c := range set {
		if accept(c.Artifact) {
			out = append(out, c)
		}
	}
	return out
}

// PreferTransfer keeps the candidates produced by a transfer step when there
// are any, and the whole set otherwise.
func PreferTransfer(set []walker.Candidate) []walker.Candidate {
	var preferred []walker.Candidate
	for _, c := range set {
		if c.ViaTransfer {
			preferred = append(preferred, c)
		}
	}
	if len(preferred) == 0 {
		return set
	}
	return preferred
}

// PreferNonDerived drops candidates produced by a lossy transform when at
// least one other candidate remains.
func PreferNonDerived(set []walker.Candidate) []walker.Candidate {
	var kept []walker.Candidate
	for _, c := range set {
		if !c.ViaLossyTransform {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return set
	}
	return kept
}

// Minimal drops every candidate whose path passes through another candidate
// of the set, keeping those nearest to the start.
func Minimal(set []walker.Candidate) []walker.Candidate {
	var out []walker.Candidate
	for i, c := range set {
		redundant := false
		for j, other := range set {
			if i == j || other.Token == c.Token {
				continue
			}
			if pathContains(c.Path, c.Token, other.Token) {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, c)
		}
	}
	return out
}

// pathContains reports whether path holds t anywhere other than as self.
func pathContains(path []token.Token, self, t token.Token) bool {
	for _, p := range path {
		if p == t && p != self {
			return true
		}
	}
	return false
}

// Dedupe keeps the first candidate for every token.
func Dedupe(set []walker.Candidate) []walker.Candidate {
	seen := make(map[token.Token]struct{}, len(set))
	var out []walker.Candidate
	for _, c := range set {
		if _, dup := seen[c.Token]; dup {
			continue
		}
		seen[c.Token] = struct{}{}
		out = append(out, c)
	}
	return out
}

// DisplayName is the name pairing works on: the artifact name, or the file
// name of its link.
func DisplayName(a walker.Artifact) string {
	if a.Name != "" {
		return a.Name
	}
	link := a.Link
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		link = u.Path
	}
	if link == "" {
		return ""
	}
	return path.Base(link)
}
