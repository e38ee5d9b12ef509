// Package lineage is the entry point report generators use: given a start
// object it walks the provenance graph and returns the representative
// artifacts upstream or downstream of it.
package lineage

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/lineage/logger"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/selector"
	"github.com/teranos/lineage/token"
	"github.com/teranos/lineage/walker"
)

// Query describes the artifacts a discovery is looking for.
type Query struct {
	// Collection restricts hydration to one collection. Empty means every
	// visited object is hydrated.
	Collection string
	// Accept is the link-validity predicate. Nil accepts everything.
	Accept selector.Predicate
	// Through limits downstream walks to matching processes. Nil follows all.
	Through walker.ProcessFilter
}

// ReadsCollection holds raw sequencing reads.
const ReadsCollection = "sdt_reads"

// FastqReads finds reads whose link points at a FASTQ file on host.
func FastqReads(host string) Query {
	return Query{
		Collection: ReadsCollection,
		Accept:     selector.LinkPredicate{Host: host, Extensions: selector.DefaultExtensions}.Match,
	}
}

// Engine answers ancestry questions for one run. Safe for concurrent use.
type Engine struct {
	session     *provenance.Session
	rows        *rowCache
	classifier  walker.Classifier
	tags        []string
	maxDepth    int
	parallelism int
	logger      *zap.SugaredLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClassifier replaces walker.DefaultClassifier.
func WithClassifier(c walker.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithTagColumns replaces DefaultTagColumns.
func WithTagColumns(cols ...string) Option {
	return func(e *Engine) { e.tags = cols }
}

// WithMaxDepth bounds every walk. Zero is unbounded.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) { e.maxDepth = depth }
}

// WithParallelism sets how many start tokens DiscoverMany walks at once.
func WithParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = n }
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.logger = logger.Named(l, "lineage") }
}

// New returns an engine over session. rows hydrates artifacts; when nil,
// artifacts carry no fields and only Query.Collection decides a match.
func New(session *provenance.Session, rows RowFetcher, opts ...Option) *Engine {
	e := &Engine{
		session:     session,
		classifier:  walker.DefaultClassifier{},
		tags:        DefaultTagColumns,
		parallelism: 1,
		logger:      logger.Named(nil, "lineage"),
	}
	if rows != nil {
		e.rows = newRowCache(rows)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parallelism < 1 {
		e.parallelism = 1
	}
	return e
}

// Walker returns a walker over the run's index, loading it if needed.
func (e *Engine) Walker(ctx context.Context) (*walker.Walker, error) {
	ix, err := e.session.Index(ctx)
	if err != nil {
		return nil, err
	}
	return walker.New(ix,
		walker.WithClassifier(e.classifier),
		walker.WithMaxDepth(e.maxDepth),
		walker.WithLogger(e.logger),
	), nil
}

func (e *Engine) match(q Query) walker.MatchFunc {
	return func(ctx context.Context, t token.Token) (walker.Artifact, bool, error) {
		if q.Collection != "" && t.Collection != q.Collection {
			return walker.Artifact{}, false, nil
		}
		if e.rows == nil {
			return walker.Artifact{}, true, nil
		}
		return e.rows.hydrate(ctx, t, e.tags)
	}
}

// DiscoverUpstreamArtifacts returns the selected ancestors of start that
// satisfy q. An empty result is not an error.
func (e *Engine) DiscoverUpstreamArtifacts(ctx context.Context, start token.Token, q Query) ([]selector.Selected, error) {
	return e.Discover(ctx, walker.DirectionUp, start, q)
}

// DiscoverDownstreamArtifacts returns the selected descendants of start
// that satisfy q.
func (e *Engine) DiscoverDownstreamArtifacts(ctx context.Context, start token.Token, q Query) ([]selector.Selected, error) {
	return e.Discover(ctx, walker.DirectionDown, start, q)
}

// Discover walks from start in dir and reduces the candidates.
func (e *Engine) Discover(ctx context.Context, dir walker.Direction, start token.Token, q Query) ([]selector.Selected, error) {
	begin := time.Now()
	w, err := e.Walker(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []walker.Candidate
	if dir == walker.DirectionDown {
		candidates, err = w.Downstream(ctx, start, e.match(q), q.Through)
	} else {
		candidates, err = w.Upstream(ctx, start, e.match(q))
	}
	if err != nil {
		return nil, err
	}

	selected, report := selector.New(q.Accept, e.logger).Reduce(candidates)
	e.logger.Infow("Discovered artifacts",
		logger.FieldToken, start.String(),
		"direction", dir,
		"candidates", report.Input,
		"selected", len(selected),
		logger.FieldDurationMS, time.Since(begin).Milliseconds())
	if selected == nil {
		selected = []selector.Selected{}
	}
	return selected, nil
}

// Result is the outcome for one start token of DiscoverMany.
type Result struct {
	Start     token.Token         `json:"start"`
	Artifacts []selector.Selected `json:"artifacts"`
	Err       error               `json:"-"`
}

// DiscoverMany runs Discover for every start token, up to the configured
// parallelism at once. A failure for one token is recorded in its Result
// and does not stop the others. Results keep the order of starts.
func (e *Engine) DiscoverMany(ctx context.Context, dir walker.Direction, starts []token.Token, q Query) ([]Result, error) {
	// Load once up front so concurrent walks share one index build.
	if _, err := e.session.Index(ctx); err != nil {
		return nil, err
	}

	results := make([]Result, len(starts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	for i, start := range starts {
		i, start := i, start
		g.Go(func() error {
			artifacts, err := e.Discover(gCtx, dir, start, q)
			results[i] = Result{Start: start, Artifacts: artifacts, Err: err}
			if err != nil {
				e.logger.Warnw("Discovery failed",
					logger.FieldToken, start.String(),
					logger.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
