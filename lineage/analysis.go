package lineage

import (
	"context"

	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/remote"
	"github.com/teranos/lineage/token"
	"github.com/teranos/lineage/walker"
)

// Trace returns the full process tree around start.
func (e *Engine) Trace(ctx context.Context, start token.Token, dir walker.Direction) (*walker.Trace, error) {
	w, err := e.Walker(ctx)
	if err != nil {
		return nil, err
	}
	return w.Trace(start, dir)
}

// HasCoassembly reports whether start descends from an assembly built out
// of more than one reads object.
func (e *Engine) HasCoassembly(ctx context.Context, start token.Token) (bool, error) {
	w, err := e.Walker(ctx)
	if err != nil {
		return false, err
	}
	return w.HasCoassembly(start), nil
}

// AssemblyProcesses returns the assembly steps upstream of start.
func (e *Engine) AssemblyProcesses(ctx context.Context, start token.Token) ([]*provenance.ProcessRecord, error) {
	w, err := e.Walker(ctx)
	if err != nil {
		return nil, err
	}
	return w.AssemblyProcesses(start), nil
}

// Processes returns the processes that produced start.
func (e *Engine) Processes(ctx context.Context, start token.Token) ([]*provenance.ProcessRecord, error) {
	w, err := e.Walker(ctx)
	if err != nil {
		return nil, err
	}
	return w.Processes(start), nil
}

// Sample is a sample object upstream of a start token.
type Sample struct {
	Token    token.Token       `json:"token"`
	Name     string            `json:"name,omitempty"`
	Protocol string            `json:"protocol,omitempty"`
	Depth    int               `json:"depth"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Samples returns the sample objects upstream of start that have a row,
// each once, in discovery order. Without a row fetcher every hit is kept
// unhydrated.
func (e *Engine) Samples(ctx context.Context, start token.Token) ([]Sample, error) {
	w, err := e.Walker(ctx)
	if err != nil {
		return nil, err
	}

	var out []Sample
	for _, hit := range w.Samples(start) {
		s := Sample{Token: hit.Token, Protocol: hit.Protocol, Depth: hit.Depth}
		if e.rows != nil {
			wanted := append([]string{remote.IDColumn(hit.Token.Collection), remote.NameColumn(hit.Token.Collection)}, SampleColumns...)
			row, err := e.rows.row(ctx, hit.Token, wanted)
			if err != nil {
				return nil, err
			}
			if row == nil {
				continue
			}
			s.Name, _ = row.Text(remote.NameColumn(hit.Token.Collection))
			for _, col := range SampleColumns {
				if v, ok := row.Text(col); ok && v != "" {
					if s.Fields == nil {
						s.Fields = make(map[string]string)
					}
					s.Fields[col] = v
				}
			}
		}
		out = append(out, s)
	}
	return out, nil
}
