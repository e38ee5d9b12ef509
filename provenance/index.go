package provenance

import (
	"sort"

	"github.com/teranos/lineage/token"
)

// ProcessEdge links an object to a process. In the consumedBy direction
// Output names the specific output the consuming process produced; in the
// producedBy direction it is the indexed object itself.
type ProcessEdge struct {
	Process *ProcessRecord
	Output  token.Token
}

// Stats summarises an index.
type Stats struct {
	Records      int `json:"records"`
	Processes    int `json:"processes"`
	Produced     int `json:"produced_objects"`
	Consumed     int `json:"consumed_objects"`
	ForwardEdges int `json:"forward_edges"`
	ReverseEdges int `json:"reverse_edges"`
	Duplicates   int `json:"duplicates"`
}

// Index is the bidirectional provenance index. Read-only after Build and
// safe for concurrent readers.
type Index struct {
	producedBy map[token.Token][]ProcessEdge
	consumedBy map[token.Token][]ProcessEdge
	processes  map[string]*ProcessRecord
	stats      Stats
}

type forwardKey struct {
	object    token.Token
	processID string
}

type reverseKey struct {
	input     token.Token
	processID string
	output    token.Token
}

// Build indexes records. A process is indexed under a given output at most
// once, so building from a list containing duplicates yields the same index.
func Build(records []ProcessRecord) *Index {
	ix := &Index{
		producedBy: make(map[token.Token][]ProcessEdge),
		consumedBy: make(map[token.Token][]ProcessEdge),
		processes:  make(map[string]*ProcessRecord),
	}
	seenForward := make(map[forwardKey]struct{})
	seenReverse := make(map[reverseKey]struct{})

	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			continue
		}
		ix.stats.Records++
		if _, ok := ix.processes[rec.ID]; !ok {
			ix.processes[rec.ID] = rec
		}

		for _, out := range rec.Outputs {
			if !out.Valid() {
				continue
			}
			fk := forwardKey{object: out, processID: rec.ID}
			if _, dup := seenForward[fk]; dup {
				ix.stats.Duplicates++
				continue
			}
			seenForward[fk] = struct{}{}
			ix.producedBy[out] = append(ix.producedBy[out], ProcessEdge{Process: rec, Output: out})
			ix.stats.ForwardEdges++

			for _, in := range rec.Inputs {
				if !in.Valid() {
					continue
				}
				rk := reverseKey{input: in, processID: rec.ID, output: out}
				if _, dup := seenReverse[rk]; dup {
					continue
				}
				seenReverse[rk] = struct{}{}
				ix.consumedBy[in] = append(ix.consumedBy[in], ProcessEdge{Process: rec, Output: out})
				ix.stats.ReverseEdges++
			}
		}
	}

	ix.stats.Processes = len(ix.processes)
	ix.stats.Produced = len(ix.producedBy)
	ix.stats.Consumed = len(ix.consumedBy)
	return ix
}

// ProducedBy returns the edges of processes that output t, in load order.
func (ix *Index) ProducedBy(t token.Token) []ProcessEdge {
	return ix.producedBy[t]
}

// ConsumedBy returns the edges of processes that took t as input, one per
// output of each such process.
func (ix *Index) ConsumedBy(t token.Token) []ProcessEdge {
	return ix.consumedBy[t]
}

// Process looks up a record by id.
func (ix *Index) Process(id string) (*ProcessRecord, bool) {
	rec, ok := ix.processes[id]
	return rec, ok
}

// Processes returns every indexed record ordered by id.
func (ix *Index) Processes() []*ProcessRecord {
	out := make([]*ProcessRecord, 0, len(ix.processes))
	for _, rec := range ix.processes {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Objects returns every token appearing as an input or output, sorted.
func (ix *Index) Objects() []token.Token {
	seen := make(map[token.Token]struct{}, len(ix.producedBy)+len(ix.consumedBy))
	for t := range ix.producedBy {
		seen[t] = struct{}{}
	}
	for t := range ix.consumedBy {
		seen[t] = struct{}{}
	}
	out := make([]token.Token, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Stats reports index sizes.
func (ix *Index) Stats() Stats {
	return ix.stats
}
