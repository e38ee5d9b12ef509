package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/logger"
)

const entryExt = ".json"

// envelope is the on-disk shape of a cache file.
type envelope struct {
	Query    Query           `json:"query"`
	Response json.RawMessage `json:"response"`
}

// Entry is one stored response as seen by Entries.
type Entry struct {
	Key      string
	Path     string
	Query    Query
	Response json.RawMessage
	ModTime  time.Time
}

// Stats summarises a cache directory.
type Stats struct {
	Entries int
	Bytes   int64
	Expired int
	// Legacy counts files holding a bare response without the query envelope.
	Legacy  int
	Corrupt int
}

// Store is a directory of cache files. Safe for concurrent use by multiple
// goroutines and processes: every write lands via rename.
type Store struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.SugaredLogger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL expires entries whose modification time is older than ttl.
// Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock replaces time.Now for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger. Nil keeps the global logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.Named("cache")
		}
	}
}

// New returns a Store rooted at dir. The directory is created on first write.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		now:    time.Now,
		logger: logger.Named(nil, "cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the cache directory.
func (s *Store) Dir() string { return s.dir }

// TTL returns the configured expiry, zero when entries never expire.
func (s *Store) TTL() time.Duration { return s.ttl }

// Path returns the file backing key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key+entryExt)
}

// Get returns the stored response for q. Missing, expired, unreadable and
// undecodable entries are all misses. A legacy bare-response file is
// returned and rewritten in envelope form.
func (s *Store) Get(q Query) (json.RawMessage, bool) {
	key, err := q.Key()
	if err != nil {
		s.logger.Debugw("Cache key failed", logger.FieldURL, q.URL, logger.FieldError, err)
		return nil, false
	}
	path := s.Path(key)

	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if s.expired(info.ModTime()) {
		s.logger.Debugw("Cache entry expired",
			logger.FieldCacheKey, key,
			logger.FieldAge, s.now().Sub(info.ModTime()).String())
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	env, legacy, err := decodeEntry(data)
	if err != nil {
		s.logger.Debugw("Cache entry unreadable", logger.FieldCacheKey, key, logger.FieldError, err)
		return nil, false
	}
	if legacy {
		if err := s.write(path, envelope{Query: q, Response: env.Response}); err != nil {
			s.logger.Debugw("Legacy cache entry upgrade failed", logger.FieldCacheKey, key, logger.FieldError, err)
		}
	}

	s.logger.Debugw("Cache hit", logger.FieldURL, q.URL, logger.FieldCacheKey, key)
	return env.Response, true
}

// Put stores response for q, replacing any previous entry atomically.
func (s *Store) Put(q Query, response json.RawMessage) error {
	key, err := q.Key()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create cache directory %s", s.dir)
	}
	if err := s.write(s.Path(key), envelope{Query: q, Response: response}); err != nil {
		return errors.Wrapf(err, "failed to store cache entry %s", key)
	}
	return nil
}

// Entries returns every enveloped entry in filename order, including expired
// ones. Legacy and corrupt files are skipped since their query is unknown.
func (s *Store) Entries() ([]Entry, error) {
	paths, err := s.files()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		env, legacy, err := decodeEntry(data)
		if err != nil || legacy {
			continue
		}
		entries = append(entries, Entry{
			Key:      strings.TrimSuffix(filepath.Base(path), entryExt),
			Path:     path,
			Query:    env.Query,
			Response: env.Response,
			ModTime:  info.ModTime(),
		})
	}
	return entries, nil
}

// Stats scans the directory.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	paths, err := s.files()
	if err != nil {
		return st, err
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		st.Entries++
		st.Bytes += info.Size()
		if s.expired(info.ModTime()) {
			st.Expired++
		}
		data, err := os.ReadFile(path)
		if err != nil {
			st.Corrupt++
			continue
		}
		_, legacy, err := decodeEntry(data)
		switch {
		case err != nil:
			st.Corrupt++
		case legacy:
			st.Legacy++
		}
	}
	return st, nil
}

func (s *Store) expired(modTime time.Time) bool {
	return s.ttl > 0 && s.now().Sub(modTime) > s.ttl
}

func (s *Store) files() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read cache directory %s", s.dir)
	}
	var paths []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entryExt) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, de.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) write(path string, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "failed to marshal cache entry")
	}
	return writeFileAtomic(path, data, 0o644)
}

// decodeEntry parses a cache file. legacy is true when the file holds a bare
// response, in which case env.Response is the whole document.
func decodeEntry(data []byte) (env envelope, legacy bool, err error) {
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) == nil {
		_, hasQuery := fields["query"]
		response, hasResponse := fields["response"]
		if hasQuery && hasResponse {
			if err := json.Unmarshal(fields["query"], &env.Query); err != nil {
				return envelope{}, false, errors.Wrap(err, "malformed query envelope")
			}
			env.Response = response
			return env, false, nil
		}
	}
	if !json.Valid(data) {
		return envelope{}, false, errors.New("invalid JSON")
	}
	env.Response = json.RawMessage(data)
	return env, true, nil
}

// writeFileAtomic writes data next to path and renames it into place so
// readers never observe a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
