package graph

import (
	"time"

	"go.uber.org/zap"

	"github.com/teranos/lineage/logger"
	"github.com/teranos/lineage/token"
)

// Labeler renders an object for display, for example with its name.
type Labeler func(token.Token) string

// Builder converts traces into graphs.
type Builder struct {
	label         Labeler
	types         map[string]TypeDefinition
	relationships map[string]RelationshipDefinition
	now           func() time.Time
	logger        *zap.SugaredLogger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLabeler sets how object nodes are labelled. The default is the token.
func WithLabeler(l Labeler) Option {
	return func(b *Builder) { b.label = l }
}

// WithTypeDefinitions replaces DefaultTypeDefinitions.
func WithTypeDefinitions(defs map[string]TypeDefinition) Option {
	return func(b *Builder) { b.types = defs }
}

// WithClock replaces time.Now for Meta.GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(b *Builder) { b.logger = logger.Named(l, "graph") }
}

// NewBuilder returns a Builder with the default type and relationship
// definitions.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		label:         token.Token.String,
		types:         DefaultTypeDefinitions,
		relationships: DefaultRelationshipDefinitions,
		now:           time.Now,
		logger:        logger.Named(nil, "graph"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}
