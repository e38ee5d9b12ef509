package provenance

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/teranos/lineage/logger"
)

// Session owns the provenance index for one run. The index is built at most
// once; concurrent callers share the in-flight load. Failed loads are not
// memoized.
type Session struct {
	source RecordSource
	logger *zap.SugaredLogger

	group singleflight.Group
	mu    sync.RWMutex
	index *Index
}

// NewSession returns a session that loads from source on first use.
func NewSession(source RecordSource, l *zap.SugaredLogger) *Session {
	return &Session{
		source: source,
		logger: logger.Named(l, "session"),
	}
}

// NewSessionWithIndex returns a session pre-populated with ix.
func NewSessionWithIndex(ix *Index) *Session {
	return &Session{index: ix, logger: logger.Named(nil, "session")}
}

// Index returns the run's index, loading it on first call.
func (s *Session) Index(ctx context.Context) (*Index, error) {
	s.mu.RLock()
	ix := s.index
	s.mu.RUnlock()
	if ix != nil {
		return ix, nil
	}

	v, err, shared := s.group.Do("index", func() (interface{}, error) {
		s.mu.RLock()
		ix := s.index
		s.mu.RUnlock()
		if ix != nil {
			return ix, nil
		}

		records, err := s.source.LoadRecords(ctx)
		if err != nil {
			return nil, err
		}
		ix = Build(records)

		s.mu.Lock()
		s.index = ix
		s.mu.Unlock()

		st := ix.Stats()
		s.logger.Infow("Built provenance index",
			logger.FieldRecords, st.Records,
			logger.FieldEdges, st.ForwardEdges,
			"reverse_edges", st.ReverseEdges,
			"duplicates", st.Duplicates)
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debugw("Shared in-flight index load")
	}
	return v.(*Index), nil
}

// Reset drops the memoized index so the next call reloads.
func (s *Session) Reset() {
	s.mu.Lock()
	s.index = nil
	s.mu.Unlock()
}
