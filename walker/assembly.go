package walker

import (
	"strings"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/token"
)

type processKey struct {
	obj       token.Token
	processID string
}

// errFound stops a walk early once the answer is known.
var errFound = errors.New("coassembly found")

// IsCoassemblyProcess reports whether rec consumed more than one reads object.
func (w *Walker) IsCoassemblyProcess(rec *provenance.ProcessRecord) bool {
	reads := 0
	for _, in := range rec.Inputs {
		if w.classifier.IsReads(in.Collection) {
			reads++
		}
	}
	return reads > 1
}

// HasCoassembly reports whether any assembly upstream of start (start
// included) was produced from more than one reads object.
func (w *Walker) HasCoassembly(start token.Token) bool {
	visited := make(map[processKey]struct{})

	visit := func(_ any, obj token.Token, _ int, _ []token.Token) (any, bool, error) {
		if w.classifier.IsAssembly(obj.Collection) {
			for _, e := range w.index.ProducedBy(obj) {
				if w.IsCoassemblyProcess(e.Process) {
					return nil, false, errFound
				}
			}
		}
		return nil, true, nil
	}
	follow := func(f *frame, e provenance.ProcessEdge) ([]token.Token, any) {
		key := processKey{obj: f.obj, processID: e.Process.ID}
		if _, seen := visited[key]; seen {
			return nil, nil
		}
		visited[key] = struct{}{}
		return e.Process.Inputs, nil
	}

	return w.dfs(start, w.index.ProducedBy, visit, follow) == errFound
}

// AssemblyProcesses returns, in discovery order, the processes upstream of
// start that either are named as an assembly step or produced an assembly
// object. Each process appears once.
func (w *Walker) AssemblyProcesses(start token.Token) []*provenance.ProcessRecord {
	visitedObjs := make(map[token.Token]struct{})
	visitedProcs := make(map[string]struct{})
	var out []*provenance.ProcessRecord

	visit := func(_ any, obj token.Token, _ int, _ []token.Token) (any, bool, error) {
		if _, seen := visitedObjs[obj]; seen {
			return nil, false, nil
		}
		visitedObjs[obj] = struct{}{}
		return nil, true, nil
	}
	follow := func(f *frame, e provenance.ProcessEdge) ([]token.Token, any) {
		if _, seen := visitedProcs[e.Process.ID]; seen {
			return nil, nil
		}
		visitedProcs[e.Process.ID] = struct{}{}
		if strings.Contains(strings.ToLower(e.Process.Name), "assembly") || w.classifier.IsAssembly(f.obj.Collection) {
			out = append(out, e.Process)
		}
		return e.Process.Inputs, nil
	}

	_ = w.dfs(start, w.index.ProducedBy, visit, follow)
	return out
}

// SampleHit is a sample object found upstream, with the protocol of the
// process that consumed it on the way from start.
type SampleHit struct {
	Token    token.Token   `json:"token"`
	Protocol string        `json:"protocol,omitempty"`
	Depth    int           `json:"depth"`
	Path     []token.Token `json:"path"`
}

// Samples walks every producedBy edge upstream of start and returns the
// sample objects reached, each once. The protocol carried to an input is
// taken from the producing process only when leaving a sample; otherwise
// the inherited protocol passes through unchanged.
func (w *Walker) Samples(start token.Token) []SampleHit {
	visited := make(map[token.Token]struct{})
	var hits []SampleHit

	visit := func(parent any, obj token.Token, depth int, path []token.Token) (any, bool, error) {
		if _, seen := visited[obj]; seen {
			return nil, false, nil
		}
		visited[obj] = struct{}{}
		protocol, _ := parent.(string)
		if w.classifier.IsSample(obj.Collection) {
			hits = append(hits, SampleHit{Token: obj, Protocol: protocol, Depth: depth, Path: path})
		}
		return protocol, true, nil
	}
	follow := func(f *frame, e provenance.ProcessEdge) ([]token.Token, any) {
		current, _ := f.state.(string)
		if w.classifier.IsSample(f.obj.Collection) && len(e.Process.Protocols) > 0 {
			return e.Process.Inputs, strings.Join(e.Process.Protocols, ", ")
		}
		return e.Process.Inputs, current
	}

	_ = w.dfs(start, w.index.ProducedBy, visit, follow)
	return hits
}

// Processes returns the processes that produced obj, in load order.
func (w *Walker) Processes(obj token.Token) []*provenance.ProcessRecord {
	edges := w.index.ProducedBy(obj)
	out := make([]*provenance.ProcessRecord, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Process)
	}
	return out
}
