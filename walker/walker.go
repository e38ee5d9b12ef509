// Package walker traverses a provenance index upstream (towards ancestors)
// and downstream (towards descendants). Every traversal is iterative and
// keeps its own visited set, so calls are reentrant and terminate on cyclic
// graphs.
package walker

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/teranos/lineage/logger"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/token"
)

// Artifact is the denormalized view of an object a caller is looking for.
type Artifact struct {
	Name string            `json:"name,omitempty"`
	Link string            `json:"link,omitempty"`
	Tags map[string]string `json:"tags,omitempty"` // e.g. read_type, sequencing_technology
}

// Candidate is an object reached by a walk that satisfied the caller's
// match function. Never mutated after creation.
type Candidate struct {
	Token     token.Token   `json:"token"`
	Artifact  Artifact      `json:"artifact"`
	Depth     int           `json:"depth"`
	Path      []token.Token `json:"path"` // start..Token inclusive
	Protocols []string      `json:"protocols,omitempty"`

	ViaTransfer       bool `json:"via_transfer,omitempty"`        // produced by a copy/transfer step
	ViaLossyTransform bool `json:"via_lossy_transform,omitempty"` // produced by trimming or similar
}

// MatchFunc decides whether t is an artifact of interest and returns its
// denormalized fields. Errors abort the walk.
type MatchFunc func(ctx context.Context, t token.Token) (Artifact, bool, error)

// MatchCollection matches every object of collection without hydration.
func MatchCollection(collection string) MatchFunc {
	return func(_ context.Context, t token.Token) (Artifact, bool, error) {
		return Artifact{}, t.Collection == collection, nil
	}
}

// Walker traverses one index. Safe for concurrent use.
type Walker struct {
	index      *provenance.Index
	classifier Classifier
	maxDepth   int
	logger     *zap.SugaredLogger
}

// Option configures a Walker.
type Option func(*Walker)

// WithClassifier replaces DefaultClassifier.
func WithClassifier(c Classifier) Option {
	return func(w *Walker) { w.classifier = c }
}

// WithMaxDepth bounds how many edges a walk may follow from its start.
// Zero means unbounded.
func WithMaxDepth(depth int) Option {
	return func(w *Walker) { w.maxDepth = depth }
}

// WithLogger sets the walker's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Walker) { w.logger = logger.Named(l, "walker") }
}

// New returns a walker over ix.
func New(ix *provenance.Index, opts ...Option) *Walker {
	w := &Walker{
		index:      ix,
		classifier: DefaultClassifier{},
		logger:     logger.Named(nil, "walker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Classifier returns the walker's classifier.
func (w *Walker) Classifier() Classifier { return w.classifier }

// Index returns the underlying index.
func (w *Walker) Index() *provenance.Index { return w.index }

// frame is one level of the explicit DFS stack. It holds the state a
// recursive formulation would keep in its locals: which producing or
// consuming edge comes next, and which of that edge's neighbours.
type frame struct {
	obj   token.Token
	depth int
	path  []token.Token
	state any

	edges []provenance.ProcessEdge
	edge  int

	next      []token.Token
	nextState any
	nextIdx   int
}

// visitFunc is called when the walk reaches obj. parent is the state the
// previous level attached to its children. Returning expand=false stops the
// walk below obj.
type visitFunc func(parent any, obj token.Token, depth int, path []token.Token) (state any, expand bool, err error)

// followFunc picks the neighbours to visit through edge, in order, and the
// state they inherit.
type followFunc func(f *frame, edge provenance.ProcessEdge) (next []token.Token, childState any)

// dfs visits objects in the same order as the recursive pre-order walk
// "visit(obj); for each edge: for each neighbour: recurse".
func (w *Walker) dfs(
	start token.Token,
	edgesOf func(token.Token) []provenance.ProcessEdge,
	visit visitFunc,
	follow followFunc,
) error {
	var stack []*frame

	push := func(parent any, obj token.Token, depth int, parentPath []token.Token) error {
		path := make([]token.Token, len(parentPath)+1)
		copy(path, parentPath)
		path[len(parentPath)] = obj

		state, expand, err := visit(parent, obj, depth, path)
		if err != nil || !expand {
			return err
		}
		if w.maxDepth > 0 && depth >= w.maxDepth {
			return nil
		}
		edges := edgesOf(obj)
		if logger.Enabled(logger.OutputTraversal) {
			w.logger.Debugw("Visit",
				logger.FieldCategory, logger.CategoryName(logger.OutputTraversal),
				logger.FieldToken, obj.String(),
				logger.FieldDepth, depth,
				logger.FieldEdges, len(edges))
		}
		stack = append(stack, &frame{
			obj:   obj,
			depth: depth,
			path:  path,
			state: state,
			edges: edges,
		})
		return nil
	}

	if err := push(nil, start, 0, nil); err != nil {
		return err
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.nextIdx < len(f.next) {
			child := f.next[f.nextIdx]
			f.nextIdx++
			if err := push(f.nextState, child, f.depth+1, f.path); err != nil {
				return err
			}
			continue
		}
		if f.edge >= len(f.edges) {
			stack = stack[:len(stack)-1]
			continue
		}
		e := f.edges[f.edge]
		f.edge++
		f.next, f.nextState = follow(f, e)
		f.nextIdx = 0
	}
	return nil
}

// Upstream walks producedBy edges from start and returns, in discovery
// order, every visited object accepted by match.
//
// From an intermediate collection every input is followed. From a terminal
// collection only inputs of reprocessing steps are followed. From any other
// collection only inputs that are themselves terminal or assembly objects
// are followed.
func (w *Walker) Upstream(ctx context.Context, start token.Token, match MatchFunc) ([]Candidate, error) {
	visited := make(map[token.Token]struct{})
	var candidates []Candidate

	visit := func(_ any, obj token.Token, depth int, path []token.Token) (any, bool, error) {
		if _, seen := visited[obj]; seen {
			return nil, false, nil
		}
		visited[obj] = struct{}{}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		c, ok, err := w.candidate(ctx, obj, depth, path, match)
		if err != nil {
			return nil, false, err
		}
		if ok {
			candidates = append(candidates, c)
		}
		return nil, true, nil
	}

	follow := func(f *frame, e provenance.ProcessEdge) ([]token.Token, any) {
		switch {
		case w.classifier.IsIntermediate(f.obj.Collection):
			return e.Process.Inputs, nil
		case w.classifier.IsTerminal(f.obj.Collection):
			if w.classifier.IsReprocessing(e.Process.Name) {
				return e.Process.Inputs, nil
			}
			return nil, nil
		default:
			var next []token.Token
			for _, in := range e.Process.Inputs {
				if w.classifier.IsTerminal(in.Collection) || w.classifier.IsAssembly(in.Collection) {
					next = append(next, in)
				}
			}
			return next, nil
		}
	}

	if err := w.dfs(start, w.index.ProducedBy, visit, follow); err != nil {
		return nil, err
	}
	w.logger.Debugw("Upstream walk finished",
		logger.FieldToken, start.String(),
		"visited", len(visited),
		"candidates", len(candidates))
	return candidates, nil
}

// ProcessFilter restricts which processes a downstream walk passes through.
type ProcessFilter func(processName string) bool

// Downstream walks consumedBy edges from start. A non-nil through filter
// limits the walk to processes whose name it accepts.
func (w *Walker) Downstream(ctx context.Context, start token.Token, match MatchFunc, through ProcessFilter) ([]Candidate, error) {
	visited := make(map[token.Token]struct{})
	var candidates []Candidate

	visit := func(_ any, obj token.Token, depth int, path []token.Token) (any, bool, error) {
		if _, seen := visited[obj]; seen {
			return nil, false, nil
		}
		visited[obj] = struct{}{}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		c, ok, err := w.candidate(ctx, obj, depth, path, match)
		if err != nil {
			return nil, false, err
		}
		if ok {
			candidates = append(candidates, c)
		}
		return nil, true, nil
	}

	follow := func(_ *frame, e provenance.ProcessEdge) ([]token.Token, any) {
		if through != nil && !through(e.Process.Name) {
			return nil, nil
		}
		return []token.Token{e.Output}, nil
	}

	if err := w.dfs(start, w.index.ConsumedBy, visit, follow); err != nil {
		return nil, err
	}
	w.logger.Debugw("Downstream walk finished",
		logger.FieldToken, start.String(),
		"visited", len(visited),
		"candidates", len(candidates))
	return candidates, nil
}

// candidate evaluates match for obj and, when accepted, fills in the flags
// and protocols of the processes that produced it.
func (w *Walker) candidate(ctx context.Context, obj token.Token, depth int, path []token.Token, match MatchFunc) (Candidate, bool, error) {
	artifact, ok, err := match(ctx, obj)
	if err != nil || !ok {
		return Candidate{}, false, err
	}

	c := Candidate{
		Token:    obj,
		Artifact: artifact,
		Depth:    depth,
		Path:     path,
	}
	protocols := make(map[string]struct{})
	for _, e := range w.index.ProducedBy(obj) {
		if w.classifier.IsTransfer(e.Process.Name) {
			c.ViaTransfer = true
		}
		if w.classifier.IsLossyTransform(e.Process.Name) {
			c.ViaLossyTransform = true
		}
		for _, p := range e.Process.Protocols {
			protocols[p] = struct{}{}
		}
	}
	for p := range protocols {
		c.Protocols = append(c.Protocols, p)
	}
	sort.Strings(c.Protocols)
	return c, true, nil
}
