package walker

import (
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/token"
)

// Direction selects which index a walk follows.
type Direction string

const (
	DirectionUp   Direction = "up"   // producedBy, towards ancestors
	DirectionDown Direction = "down" // consumedBy, towards descendants
)

// ParseDirection accepts "up"/"upstream" and "down"/"downstream".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up", "upstream":
		return DirectionUp, nil
	case "down", "downstream":
		return DirectionDown, nil
	}
	return "", errors.Wrapf(errors.ErrInvalidRequest, "unknown direction %q", s)
}

// TraceNode is one occurrence of an object in a trace tree. The same object
// may occur several times; only its process edges are deduplicated.
type TraceNode struct {
	Token token.Token  `json:"token"`
	Steps []*TraceStep `json:"steps,omitempty"` // empty: no process in this direction
}

// TraceStep is one process edge out of a node.
type TraceStep struct {
	Process  *provenance.ProcessRecord `json:"process"`
	Position int                       `json:"position"` // 1-based among the node's edges
	Of       int                       `json:"of"`
	// AlreadyTraversed marks an edge expanded elsewhere in the tree.
	AlreadyTraversed bool `json:"already_traversed,omitempty"`
	// Children are the process inputs (up) or the output reached (down).
	Children []*TraceNode `json:"children,omitempty"`
}

// Trace is a full provenance tree rooted at one object.
type Trace struct {
	Direction Direction  `json:"direction"`
	Root      *TraceNode `json:"root"`
	Traversed int        `json:"processes_traversed"`
}

type traceKey struct {
	obj       token.Token
	processID string
	output    token.Token
}

// Trace builds the full tree of processes around start. Upstream, an
// (object, process) pair is expanded once; downstream the key also includes
// the output the edge leads to.
func (w *Walker) Trace(start token.Token, dir Direction) (*Trace, error) {
	edgesOf := w.index.ProducedBy
	if dir == DirectionDown {
		edgesOf = w.index.ConsumedBy
	} else if dir != DirectionUp {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "unknown direction %q", dir)
	}

	trace := &Trace{Direction: dir}
	visited := make(map[traceKey]struct{})

	visit := func(parent any, obj token.Token, _ int, _ []token.Token) (any, bool, error) {
		node := &TraceNode{Token: obj}
		if step, ok := parent.(*TraceStep); ok {
			step.Children = append(step.Children, node)
		} else {
			trace.Root = node
		}
		return node, true, nil
	}

	follow := func(f *frame, e provenance.ProcessEdge) ([]token.Token, any) {
		node := f.state.(*TraceNode)
		step := &TraceStep{
			Process:  e.Process,
			Position: f.edge,
			Of:       len(f.edges),
		}
		node.Steps = append(node.Steps, step)

		key := traceKey{obj: f.obj, processID: e.Process.ID}
		if dir == DirectionDown {
			key.output = e.Output
		}
		if _, seen := visited[key]; seen {
			step.AlreadyTraversed = true
			return nil, nil
		}
		visited[key] = struct{}{}
		trace.Traversed++

		if dir == DirectionDown {
			return []token.Token{e.Output}, step
		}
		return e.Process.Inputs, step
	}

	if err := w.dfs(start, edgesOf, visit, follow); err != nil {
		return nil, err
	}
	return trace, nil
}

// Walk calls fn for every node of the tree in pre-order with its depth.
func (t *Trace) Walk(fn func(node *TraceNode, depth int)) {
	if t == nil || t.Root == nil {
		return
	}
	type item struct {
		node  *TraceNode
		depth int
	}
	stack := []item{{t.Root, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(it.node, it.depth)
		for i := len(it.node.Steps) - 1; i >= 0; i-- {
			children := it.node.Steps[i].Children
			for j := len(children) - 1; j >= 0; j-- {
				stack = append(stack, item{children[j], it.depth + 1})
			}
		}
	}
}
